package conf

import (
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/secrets"
)

// resolveSecrets expands ${VAR} references in credential fields and reads
// password files. Only fields of enabled features are resolved, so an unset
// variable for a disabled broker does not stop the monitor from loading.
func resolveSecrets(s *Settings, r *secrets.Resolver) error {
	r.Warn = func(path string) {
		GetLogger().Warn("secret file is readable by group or other", logger.String("path", path))
	}

	var err error
	if s.MQTT.Enabled {
		if s.MQTT.Password, err = r.Resolve(s.MQTT.PasswordFile, s.MQTT.Password); err != nil {
			return err
		}
		if s.MQTT.Username, err = r.Expand(s.MQTT.Username); err != nil {
			return err
		}
	}

	if s.Storage.Index.Enabled && s.Storage.Index.Type == IndexMySQL {
		my := &s.Storage.Index.MySQL
		if my.Password, err = r.Resolve(my.PasswordFile, my.Password); err != nil {
			return err
		}
		if my.Username, err = r.Expand(my.Username); err != nil {
			return err
		}
	}

	if s.Sentry.Enabled {
		if s.Sentry.DSN, err = r.Expand(s.Sentry.DSN); err != nil {
			return err
		}
	}

	if s.Notification.Enabled {
		for i, u := range s.Notification.URLs {
			if s.Notification.URLs[i], err = r.Expand(u); err != nil {
				return err
			}
		}
	}
	return nil
}
