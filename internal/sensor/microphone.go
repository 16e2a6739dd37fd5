package sensor

import (
	"encoding/binary"
	"math"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

const (
	defaultSampleRate     = 48000
	defaultLevelThreshold = 60.0
)

// MicrophoneConfig selects the capture device and the level that counts as
// a raw acoustic trigger.
type MicrophoneConfig struct {
	Device         string  // substring of the device name, empty for the default device
	SampleRate     uint32  // defaults to 48000
	LevelThreshold float64 // 0-100, see Level
}

// Microphone captures 16-bit mono audio and latches a trigger whenever a
// buffer's level reaches the threshold. Read consumes the latch.
type Microphone struct {
	mu        sync.Mutex
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	threshold float64
	triggered atomic.Bool
	stopped   atomic.Bool
	closed    bool
	log       logger.Logger
}

// OpenMicrophone initializes the capture device and starts it.
func OpenMicrophone(cfg MicrophoneConfig) (*Microphone, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.LevelThreshold <= 0 {
		cfg.LevelThreshold = defaultLevelThreshold
	}

	m := &Microphone{
		threshold: cfg.LevelThreshold,
		log:       GetLogger().With(logger.String("source", "microphone")),
	}

	mctx, err := malgo.InitContext([]malgo.Backend{captureBackend()}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, audioError(err, "init_context", cfg.Device)
	}
	m.ctx = mctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	if cfg.Device != "" {
		info, err := findCaptureDevice(mctx, cfg.Device)
		if err != nil {
			m.releaseContext()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.onData,
		Stop: m.onStop,
	})
	if err != nil {
		m.releaseContext()
		return nil, audioError(err, "init_device", cfg.Device)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.releaseContext()
		return nil, audioError(err, "start_device", cfg.Device)
	}

	m.log.Info("microphone capture started",
		logger.String("device", cfg.Device),
		logger.Int("sample_rate", int(device.SampleRate())),
		logger.Float64("level_threshold", m.threshold))
	return m, nil
}

func findCaptureDevice(mctx *malgo.AllocatedContext, name string) (*malgo.DeviceInfo, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, audioError(err, "enumerate_devices", name)
	}
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), strings.ToLower(name)) {
			return &infos[i], nil
		}
	}
	return nil, errors.New(errors.NewStd("capture device not found")).
		Component("sensor").
		Category(errors.CategoryAudioSource).
		Context("device", name).
		Context("available", len(infos)).
		Build()
}

func (m *Microphone) onData(_, samples []byte, _ uint32) {
	if Level(samples) >= m.threshold {
		m.triggered.Store(true)
	}
}

func (m *Microphone) onStop() {
	m.stopped.Store(true)
}

// Read reports whether a loud buffer arrived since the previous Read.
func (m *Microphone) Read() (bool, error) {
	if m.stopped.Load() {
		return false, ErrUnavailable
	}
	return m.triggered.Swap(false), nil
}

// Close stops capture and releases the device.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.stopped.Store(true)

	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	m.releaseContext()
	return nil
}

func (m *Microphone) releaseContext() {
	if m.ctx == nil {
		return
	}
	if err := m.ctx.Uninit(); err != nil {
		m.log.Warn("failed to uninit audio context", logger.Error(err))
	}
	m.ctx.Free()
	m.ctx = nil
}

// MicrophoneOpener returns an Opener for cfg.
func MicrophoneOpener(cfg MicrophoneConfig) Opener {
	return func() (Signal, error) {
		return OpenMicrophone(cfg)
	}
}

// Level returns the RMS level of little-endian 16-bit samples scaled to
// 0-100. The scale is linear in dBFS at 2 points per dB: -60 dBFS or quieter
// reads 0, -20 dBFS reads 80 and anything from -10 dBFS up saturates at 100.
// Clipped buffers read at least 95.
func Level(samples []byte) float64 {
	n := len(samples) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	clipping := false
	for i := 0; i < n*2; i += 2 {
		s := int16(binary.LittleEndian.Uint16(samples[i:]))
		if s == math.MaxInt16 || s == math.MinInt16 {
			clipping = true
		}
		v := float64(s)
		sum += v * v
	}

	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return 0
	}
	level := (20*math.Log10(rms/32768.0) + 60) * (100.0 / 50.0)
	if clipping {
		level = math.Max(level, 95)
	}
	return math.Min(math.Max(level, 0), 100)
}

func captureBackend() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

func audioError(err error, op, device string) error {
	return errors.New(err).
		Component("sensor").
		Category(errors.CategoryAudioSource).
		Context("operation", op).
		Context("device", device).
		Context("backend", runtime.GOOS).
		Build()
}
