// Package secrets resolves credentials referenced from the config file.
// Values may name environment variables with ${VAR} or ${VAR:-default}, and
// passwords may be read from a file such as a Docker or Kubernetes secret.
// Secret values are never logged or included in errors.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/tphakala/sleepmon/internal/errors"
)

// maxFileSize caps how much of a secret file is read.
const maxFileSize = 64 * 1024

// Resolver expands and reads secrets. The zero value is not usable; use New.
type Resolver struct {
	fs     afero.Fs
	getenv func(string) string

	// Warn receives the path of secret files readable by group or other.
	Warn func(path string)
}

// New returns a Resolver reading files from fs and variables from the
// process environment.
func New(fs afero.Fs) *Resolver {
	return &Resolver{fs: fs, getenv: os.Getenv}
}

// WithEnv returns a copy of r that looks variables up through getenv.
func (r *Resolver) WithEnv(getenv func(string) string) *Resolver {
	c := *r
	c.getenv = getenv
	return &c
}

// Expand substitutes ${VAR} and ${VAR:-default} references in s. A reference
// to an unset variable without a default is an error naming the variable.
func (r *Resolver) Expand(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var missing []string
	out := os.Expand(s, func(key string) string {
		name, def, hasDefault := strings.Cut(key, ":-")
		if v := r.getenv(name); v != "" {
			return v
		}
		if !hasDefault {
			missing = append(missing, name)
		}
		return def
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Context("variables", strings.Join(missing, ",")).
			Build()
	}
	return out, nil
}

// ReadFile returns the contents of a secret file with trailing newlines
// removed.
func (r *Resolver) ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)
	fileErr := func(msg string, err error) error {
		b := errors.Newf("secret file %s: %s", clean, msg)
		if err != nil {
			b = errors.New(err)
		}
		return b.Component("secrets").
			Category(errors.CategoryConfiguration).
			Context("path", clean).
			Build()
	}

	info, err := r.fs.Stat(clean)
	if err != nil {
		return "", fileErr("", err)
	}
	if !info.Mode().IsRegular() {
		return "", fileErr("not a regular file", nil)
	}
	if info.Size() > maxFileSize {
		return "", fileErr("too large", nil)
	}
	if info.Mode().Perm()&0o077 != 0 && r.Warn != nil {
		r.Warn(clean)
	}

	data, err := afero.ReadFile(r.fs, clean)
	if err != nil {
		return "", fileErr("", err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileErr("empty", nil)
	}
	return secret, nil
}

// Resolve returns the secret from file when set, otherwise value with
// variables expanded.
func (r *Resolver) Resolve(file, value string) (string, error) {
	if file != "" {
		return r.ReadFile(file)
	}
	return r.Expand(value)
}
