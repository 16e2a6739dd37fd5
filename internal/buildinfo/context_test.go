package buildinfo

import (
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
		systemID  string
	}{
		{"nil context", nil, UnknownValue, UnknownValue, UnknownValue},
		{"empty values", NewContext("", "", ""), UnknownValue, UnknownValue, UnknownValue},
		{"set values", NewContext("v1.0.0", "2025-01-01", "abc"), "v1.0.0", "2025-01-01", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.buildDate, tt.ctx.GetBuildDate())
			assert.Equal(t, tt.systemID, tt.ctx.GetSystemID())
		})
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	fields := NewContext("v2", "", "id").Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "version", fields[0].Key)
	assert.Equal(t, "v2", fields[0].Value)
	assert.Equal(t, UnknownValue, fields[1].Value)
}

func TestLoadSystemIDIsStable(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	first, err := LoadSystemID(fs, "/etc/sleepmon")
	require.NoError(t, err)
	require.NoError(t, uuid.Validate(first))

	second, err := LoadSystemID(fs, "/etc/sleepmon")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadSystemIDReplacesGarbage(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg/"+SystemIDFile, []byte("not-a-uuid"), 0o644))

	id, err := LoadSystemID(fs, "/cfg")
	require.NoError(t, err)
	require.NoError(t, uuid.Validate(id))

	data, err := afero.ReadFile(fs, "/cfg/"+SystemIDFile)
	require.NoError(t, err)
	assert.Equal(t, id+"\n", string(data))
}
