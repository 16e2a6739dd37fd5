package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/sleepmon/internal/controller"
	"github.com/tphakala/sleepmon/internal/datastore"
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
)

// StatusResponse is the body of the status and toggle endpoints.
type StatusResponse struct {
	State        string     `json:"state"`
	SessionID    string     `json:"session_id,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	MotionEvents int        `json:"motion_events"`
	SoundPeaks   int        `json:"sound_peaks"`
	Pending      bool       `json:"pending_save"`
}

// lastDays serves the dashboard chart: the last n sessions, oldest first.
func (s *Server) lastDays(n int) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.cached(c, func(ctx context.Context) (any, error) {
			return s.store.Recent(ctx, n)
		})
	}
}

func (s *Server) listSessions(c echo.Context) error {
	limit, err := intParam(c, "limit", 0)
	if err != nil {
		return err
	}
	return s.cached(c, func(ctx context.Context) (any, error) {
		list, err := s.store.List(ctx)
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(list) > limit {
			list = list[:limit]
		}
		return list, nil
	})
}

func (s *Server) recentSessions(c echo.Context) error {
	n, err := intParam(c, "n", 7)
	if err != nil {
		return err
	}
	return s.cached(c, func(ctx context.Context) (any, error) {
		return s.store.Recent(ctx, n)
	})
}

func (s *Server) latestSession(c echo.Context) error {
	return s.cached(c, func(ctx context.Context) (any, error) {
		recent, err := s.store.Recent(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(recent) == 0 {
			return nil, errors.New(datastore.ErrNotFound).
				Component("api").
				Category(errors.CategoryNotFound).
				Build()
		}
		return recent[0], nil
	})
}

func (s *Server) getSession(c echo.Context) error {
	id := c.Param("id")
	return s.cached(c, func(ctx context.Context) (any, error) {
		return s.store.Load(ctx, id)
	})
}

func (s *Server) getStats(c echo.Context) error {
	if s.stats == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session index is not enabled")
	}
	days, err := intParam(c, "days", 7)
	if err != nil {
		return err
	}
	since := s.now().AddDate(0, 0, -days)
	return s.cached(c, func(ctx context.Context) (any, error) {
		return s.stats.Stats(ctx, since)
	})
}

func (s *Server) getStatus(c echo.Context) error {
	if s.toggler == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "monitoring control is not available")
	}
	return c.JSON(http.StatusOK, s.statusResponse())
}

func (s *Server) toggle(c echo.Context) error {
	if s.toggler == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "monitoring control is not available")
	}

	// the toggle runs to completion even if the client goes away
	ctx := context.WithoutCancel(c.Request().Context())
	err := s.toggler.Toggle(ctx)
	s.Invalidate()
	if err != nil {
		s.log.Warn("toggle failed", logger.Error(err))
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, s.statusResponse())
}

func (s *Server) statusResponse() StatusResponse {
	resp := StatusResponse{State: s.toggler.State().String()}
	if s.status == nil {
		return resp
	}
	st := s.status.Status()
	resp.SessionID = st.SessionID
	resp.MotionEvents = st.MotionEvents
	resp.SoundPeaks = st.SoundPeaks
	resp.Pending = !st.Persisted && st.SessionID != ""
	if !st.StartTime.IsZero() {
		start := st.StartTime
		resp.StartTime = &start
	}
	return resp
}

// cached serves the JSON result of fn, keyed by the request URI.
func (s *Server) cached(c echo.Context, fn func(ctx context.Context) (any, error)) error {
	key := c.Request().URL.RequestURI()
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return c.JSON(http.StatusOK, v)
		}
	}

	v, err := fn(c.Request().Context())
	if err != nil {
		return s.httpError(err)
	}
	if s.cache != nil {
		s.cache.SetDefault(key, v)
	}
	return c.JSON(http.StatusOK, v)
}

// httpError maps domain errors to HTTP status codes.
func (s *Server) httpError(err error) error {
	switch {
	case errors.IsNotFound(err), errors.Is(err, datastore.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	case errors.IsCategory(err, errors.CategoryValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, controller.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "monitoring has shut down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled")
	default:
		s.log.Error("request failed", logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > maxRecent {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" parameter")
	}
	return v, nil
}
