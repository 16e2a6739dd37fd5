package sensor

import (
	"bytes"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

// DefaultSysfsRoot is the sysfs GPIO class directory.
const DefaultSysfsRoot = "/sys/class/gpio"

// exportWait bounds how long OpenPin waits for udev to create the pin
// directory after an export.
var exportWait = 500 * time.Millisecond

// PinConfig describes a sysfs GPIO input.
type PinConfig struct {
	Number    int
	ActiveLow bool     // invert the raw level
	Root      string   // defaults to DefaultSysfsRoot
	Fs        afero.Fs // defaults to the OS filesystem
}

// Pin reads a GPIO input line through sysfs.
type Pin struct {
	mu        sync.Mutex
	fs        afero.Fs
	root      string
	number    int
	activeLow bool
	exported  bool // exported by us, unexported on Close
	closed    bool
}

// OpenPin exports the pin when needed and configures it as an input.
func OpenPin(cfg PinConfig) (*Pin, error) {
	if cfg.Number < 0 {
		return nil, errors.ValidationError(fmt.Sprintf("invalid gpio pin %d", cfg.Number))
	}
	p := &Pin{
		fs:        cfg.Fs,
		root:      cfg.Root,
		number:    cfg.Number,
		activeLow: cfg.ActiveLow,
	}
	if p.fs == nil {
		p.fs = afero.NewOsFs()
	}
	if p.root == "" {
		p.root = DefaultSysfsRoot
	}

	if err := p.export(); err != nil {
		return nil, err
	}
	if err := afero.WriteFile(p.fs, p.path("direction"), []byte("in"), 0o644); err != nil {
		p.unexport()
		return nil, p.fileError(err, "direction")
	}

	GetLogger().Debug("gpio pin opened",
		logger.Int("pin", p.number),
		logger.Bool("active_low", p.activeLow),
		logger.Bool("exported", p.exported))
	return p, nil
}

func (p *Pin) dir() string {
	return filepath.Join(p.root, "gpio"+strconv.Itoa(p.number))
}

func (p *Pin) path(name string) string {
	return filepath.Join(p.dir(), name)
}

func (p *Pin) export() error {
	if ok, _ := afero.DirExists(p.fs, p.dir()); ok {
		return nil
	}
	if err := afero.WriteFile(p.fs, filepath.Join(p.root, "export"), []byte(strconv.Itoa(p.number)), 0o200); err != nil {
		return p.fileError(err, "export")
	}
	p.exported = true

	deadline := time.Now().Add(exportWait)
	for {
		if ok, _ := afero.DirExists(p.fs, p.dir()); ok {
			return nil
		}
		if time.Now().After(deadline) {
			p.unexport()
			return errors.New(errors.NewStd("gpio pin directory did not appear after export")).
				Component("sensor").
				Category(errors.CategorySensor).
				Context("pin", p.number).
				Timing("export", exportWait).
				Build()
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (p *Pin) unexport() {
	if !p.exported {
		return
	}
	if err := afero.WriteFile(p.fs, filepath.Join(p.root, "unexport"), []byte(strconv.Itoa(p.number)), 0o200); err != nil {
		GetLogger().Warn("failed to unexport gpio pin", logger.Int("pin", p.number), logger.Error(err))
	}
	p.exported = false
}

// Read returns the logical level of the pin.
func (p *Pin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false, ErrUnavailable
	}
	raw, err := afero.ReadFile(p.fs, p.path("value"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, unavailable("sensor", err)
		}
		return false, p.fileError(err, "value")
	}

	var high bool
	switch v := bytes.TrimSpace(raw); {
	case bytes.Equal(v, []byte("1")):
		high = true
	case bytes.Equal(v, []byte("0")):
		high = false
	default:
		return false, errors.New(errors.NewStd("unexpected gpio value")).
			Component("sensor").
			Category(errors.CategorySensor).
			Context("pin", p.number).
			Context("value", string(v)).
			Build()
	}
	return high != p.activeLow, nil
}

// Close releases the pin. It is safe to call more than once.
func (p *Pin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.unexport()
	return nil
}

func (p *Pin) fileError(err error, file string) error {
	return errors.New(err).
		Component("sensor").
		Category(errors.CategorySensor).
		Context("pin", p.number).
		Context("file", file).
		Build()
}

// PinOpener returns an Opener for cfg.
func PinOpener(cfg PinConfig) Opener {
	return func() (Signal, error) {
		return OpenPin(cfg)
	}
}
