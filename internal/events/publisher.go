// Package events publishes analysis lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/metrics"
)

// TypeAnalysisCompleted is sent after a snapshot is saved.
const TypeAnalysisCompleted = "analysis.completed"

// AnalysisEvent is the payload for TypeAnalysisCompleted.
type AnalysisEvent struct {
	Type             string    `json:"type"`
	FilePath         string    `json:"file_path"`
	Version          int       `json:"version"`
	CallType         string    `json:"call_type"`
	UrgencyLevel     string    `json:"urgency_level"`
	Sentiment        string    `json:"sentiment"`
	ExtractionMethod string    `json:"extraction_method"`
	ProcessingTime   float64   `json:"processing_time"`
	Indexed          bool      `json:"indexed"`
	Timestamp        time.Time `json:"timestamp"`
}

type Config struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events to one topic. Without brokers it only logs.
type Publisher struct {
	writer  messageWriter
	topic   string
	enabled bool
	log     *logger.Logger
	metrics *metrics.AnalysisMetrics
}

func New(cfg Config, log *logger.Logger, m *metrics.AnalysisMetrics) *Publisher {
	l := logger.OrDiscard(log).Component("events")
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		l.Info("kafka disabled, using log-only mode")
		return &Publisher{topic: cfg.Topic, log: l, metrics: m}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	l.WithField("brokers", cfg.Brokers).WithField("topic", cfg.Topic).Info("kafka publisher initialized")
	return &Publisher{writer: w, topic: cfg.Topic, enabled: true, log: l, metrics: m}
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool { return p != nil && p.enabled }

// PublishAnalysis sends an analysis event keyed by source path.
func (p *Publisher) PublishAnalysis(ctx context.Context, key string, event AnalysisEvent) error {
	if event.Type == "" {
		event.Type = TypeAnalysisCompleted
	}
	return p.publish(ctx, key, event.Type, event)
}

func (p *Publisher) publish(ctx context.Context, key, eventType string, event any) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Error("failed to marshal event")
		return err
	}
	log := p.log.WithField("topic", p.topic).WithField("key", key).WithField("event_type", eventType)
	log.WithField("payload", string(payload)).Debug("publishing event")

	if !p.enabled || p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
		},
	}
	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.ObserveEvent(p.topic, err)
	if err != nil {
		log.WithError(err).Error("failed to write to kafka")
		return err
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.log.WithError(err).Error("error closing kafka writer")
		return err
	}
	return nil
}
