package observability

import (
	"context"

	"github.com/tphakala/sleepmon/internal/controller"
	"github.com/tphakala/sleepmon/internal/observability/metrics"
	"github.com/tphakala/sleepmon/internal/session"
)

// instrumentedAnalyzer records session lifecycle metrics around an analyzer.
type instrumentedAnalyzer struct {
	controller.Analyzer
	m *metrics.SessionMetrics
}

// InstrumentAnalyzer wraps a so that starts, stops and saves are reflected in m.
func InstrumentAnalyzer(a controller.Analyzer, m *metrics.SessionMetrics) controller.Analyzer {
	return &instrumentedAnalyzer{Analyzer: a, m: m}
}

func (i *instrumentedAnalyzer) StartMonitoring() error {
	if err := i.Analyzer.StartMonitoring(); err != nil {
		return err
	}
	i.m.SetActive(true)
	return nil
}

func (i *instrumentedAnalyzer) StopMonitoring() error {
	if err := i.Analyzer.StopMonitoring(); err != nil {
		return err
	}
	i.m.SetActive(false)
	return nil
}

func (i *instrumentedAnalyzer) Persist(ctx context.Context) (*session.Result, error) {
	res, err := i.Analyzer.Persist(ctx)
	if err != nil {
		i.m.IncrementSaveErrors()
		return nil, err
	}
	if r := res.Record.Report; r != nil {
		i.m.ObserveReport(r.SleepScore, r.MonitoringDurationHours, r.MotionPercentage, r.SoundPeaksPerHour)
	}
	return res, nil
}
