package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/sleepmon/internal/datastore"
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/session"
)

// ReportMessage is the payload published for each saved session.
type ReportMessage struct {
	Node      string               `json:"node,omitempty"`
	SessionID string               `json:"session_id"`
	Date      string               `json:"date"`
	StartTime time.Time            `json:"start_time"`
	EndTime   time.Time            `json:"end_time"`
	Report    *session.SleepReport `json:"sleep_report"`
}

// ReportPublisher publishes session reports to <topic>/report.
type ReportPublisher struct {
	client Client
	topic  string
	node   string
}

// NewReportPublisher returns a publisher on the report topic of cfg.
func NewReportPublisher(c Client, cfg Config, node string) *ReportPublisher {
	return &ReportPublisher{client: c, topic: cfg.TopicFor(TopicReport), node: node}
}

// Topic returns the report topic.
func (p *ReportPublisher) Topic() string {
	return p.topic
}

// OnReport publishes the report of a saved session.
func (p *ReportPublisher) OnReport(ctx context.Context, res *session.Result) error {
	if res == nil || res.Record == nil || res.Record.Report == nil {
		return errors.New(session.ErrNoData).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	msg := ReportMessage{
		Node:      p.node,
		SessionID: datastore.SessionID(res.Location),
		Date:      res.Record.Date(),
		StartTime: res.Record.StartTime,
		EndTime:   res.Record.EndTime,
		Report:    res.Record.Report,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "encode_report").
			Build()
	}
	return p.client.Publish(ctx, p.topic, payload)
}
