package conf

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sleepmon/internal/secrets"
)

func TestResolveSecrets(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/run/secrets/mysql", []byte("dbpass\n"), 0o600))
	env := map[string]string{"MQTT_PASSWORD": "mqttpass", "PUSH_TOKEN": "abc123"}
	r := secrets.New(fs).WithEnv(func(k string) string { return env[k] })

	s := &Settings{
		MQTT: MQTTSettings{Enabled: true, Username: "sleepmon", Password: "${MQTT_PASSWORD}"},
		Storage: StorageSettings{Index: IndexSettings{
			Enabled: true,
			Type:    IndexMySQL,
			MySQL:   MySQLSettings{Password: "ignored", PasswordFile: "/run/secrets/mysql"},
		}},
		Notification: NotificationSettings{
			Enabled: true,
			URLs:    []string{"ntfy://ntfy.sh/${PUSH_TOKEN}", "logger://"},
		},
		Sentry: SentrySettings{Enabled: false, DSN: "${UNSET_DSN}"},
	}

	require.NoError(t, resolveSecrets(s, r))
	assert.Equal(t, "mqttpass", s.MQTT.Password)
	assert.Equal(t, "sleepmon", s.MQTT.Username)
	assert.Equal(t, "dbpass", s.Storage.Index.MySQL.Password)
	assert.Equal(t, []string{"ntfy://ntfy.sh/abc123", "logger://"}, s.Notification.URLs)
	assert.Equal(t, "${UNSET_DSN}", s.Sentry.DSN, "disabled features are left alone")

	s.Sentry.Enabled = true
	err := resolveSecrets(s, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNSET_DSN")
}
