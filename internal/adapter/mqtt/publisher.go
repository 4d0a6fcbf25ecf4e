// Package mqtt publishes field alerts to an MQTT broker so that irrigation
// controllers and dashboards can react to them.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

const (
	alertQoS          = 1
	disconnectQuiesce = 250 // milliseconds
)

// Alert is the JSON payload of one published message.
type Alert struct {
	AnalysisID string    `json:"analysis_id"`
	PolygonID  string    `json:"polygon_id"`
	Kind       string    `json:"kind"`
	Category   string    `json:"category"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	Action     string    `json:"action,omitempty"`
	Score      int       `json:"score,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Alert kinds, also used as the last topic segment.
const (
	KindStress     = "stress"
	KindIrrigation = "irrigation"
)

// messagePublisher sends one payload to a topic.
type messagePublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Publisher implements pipeline.Loader. Every stress finding becomes an
// alert, as does an irrigation urgency of HIGH or CRITICAL.
type Publisher struct {
	pub       messagePublisher
	baseTopic string
	logger    *slog.Logger
	close     func()
}

// Config holds the broker connection settings.
type Config struct {
	Broker         string
	ClientID       string
	Topic          string
	ConnectTimeout time.Duration
}

// Connect dials the broker and returns a ready Publisher.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})

	client := paho.NewClient(opts)
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := connect(client, timeout); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	logger.Info("mqtt connected", "broker", cfg.Broker, "topic", cfg.Topic)

	p := newPublisher(&pahoPublisher{client: client}, cfg.Topic, logger)
	p.close = func() { client.Disconnect(disconnectQuiesce) }
	return p, nil
}

// connect waits for the initial connection. A failed or timed out attempt
// disconnects the client so its reconnect goroutines stop.
func connect(client paho.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("timed out after %s", timeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return err
	}
	return nil
}

func newPublisher(pub messagePublisher, baseTopic string, logger *slog.Logger) *Publisher {
	return &Publisher{pub: pub, baseTopic: baseTopic, logger: logger}
}

func (p *Publisher) Name() string { return "mqtt" }

// Load publishes the alerts derived from an assessment. A calm field
// publishes nothing.
func (p *Publisher) Load(ctx context.Context, a domain.Assessment) error {
	for _, alert := range Alerts(a) {
		payload, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}
		topic := p.topic(alert)
		if err := p.pub.Publish(ctx, topic, payload); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		p.logger.Debug("alert published", "topic", topic, "category", alert.Category, "severity", alert.Severity)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}

func (p *Publisher) topic(a Alert) string {
	return fmt.Sprintf("%s/%s/%s", p.baseTopic, a.PolygonID, a.Kind)
}

// Alerts lists the alerts an assessment raises.
func Alerts(a domain.Assessment) []Alert {
	an := a.Analysis
	var out []Alert

	if u := an.Irrigation.Urgency; u == domain.UrgencyHigh || u == domain.UrgencyCritical {
		out = append(out, Alert{
			AnalysisID: an.ID,
			PolygonID:  an.PolygonID,
			Kind:       KindIrrigation,
			Category:   "IRRIGATION",
			Severity:   string(u),
			Message:    an.Irrigation.Recommendation,
			Score:      an.Irrigation.Score,
			Timestamp:  an.AnalyzedAt,
		})
	}
	for _, f := range an.Stress {
		out = append(out, Alert{
			AnalysisID: an.ID,
			PolygonID:  an.PolygonID,
			Kind:       KindStress,
			Category:   f.Category,
			Severity:   string(f.Severity),
			Message:    f.Message,
			Action:     f.Action,
			Timestamp:  an.AnalyzedAt,
		})
	}
	return out
}

type pahoPublisher struct {
	client paho.Client
}

func (p *pahoPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, alertQoS, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
