package analysis

import (
	"fmt"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/sensor"
)

// Sources are the sensor openers behind the detectors and the button.
// A nil opener disables the matching component.
type Sources struct {
	Acoustic sensor.Opener
	Motion   sensor.Opener
	Button   sensor.Opener
}

// SourcesFromSettings selects the openers configured in settings. sub is the
// MQTT client used by the mqtt motion source and may be nil when MQTT is off.
func SourcesFromSettings(settings *conf.Settings, sub sensor.Subscriber) (Sources, error) {
	var src Sources

	if settings.Acoustic.Enabled {
		open, err := acousticOpener(settings.Acoustic)
		if err != nil {
			return Sources{}, err
		}
		src.Acoustic = open
	}

	if settings.Motion.Enabled {
		open, err := motionOpener(settings.Motion, sub)
		if err != nil {
			return Sources{}, err
		}
		src.Motion = open
	}

	if settings.Button.Enabled {
		src.Button = sensor.PinOpener(sensor.PinConfig{
			Number:    settings.Button.GPIOPin,
			ActiveLow: settings.Button.ActiveLow,
		})
	}

	return src, nil
}

func acousticOpener(s conf.AcousticSettings) (sensor.Opener, error) {
	switch s.Source {
	case conf.SourceGPIO:
		return sensor.PinOpener(sensor.PinConfig{Number: s.GPIOPin, ActiveLow: s.ActiveLow}), nil
	case conf.SourceMicrophone:
		return sensor.MicrophoneOpener(sensor.MicrophoneConfig{
			Device:         s.Device,
			LevelThreshold: s.LevelThreshold,
		}), nil
	default:
		return nil, sourceError("acoustic", s.Source)
	}
}

func motionOpener(s conf.MotionSettings, sub sensor.Subscriber) (sensor.Opener, error) {
	switch s.Source {
	case conf.SourceGPIO:
		return sensor.PinOpener(sensor.PinConfig{Number: s.GPIOPin, ActiveLow: s.ActiveLow}), nil
	case conf.SourceMQTT:
		if sub == nil {
			// the session still runs, the detector reports the missing broker on start
			return func() (sensor.Signal, error) {
				return nil, errors.New(sensor.ErrUnavailable).
					Component("analysis").
					Category(errors.CategorySensor).
					Context("reason", "mqtt disabled").
					Context("topic", s.Topic).
					Build()
			}, nil
		}
		return sensor.MQTTMotionOpener(sub, s.Topic, s.SignalTimeout), nil
	default:
		return nil, sourceError("motion", s.Source)
	}
}

func sourceError(detector, source string) error {
	return errors.New(fmt.Errorf("unsupported %s source %q", detector, source)).
		Component("analysis").
		Category(errors.CategoryConfiguration).
		Context("detector", detector).
		Build()
}
