package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// PublisherMetrics is satisfied by *metrics.Collector.
type PublisherMetrics interface {
	EventPublished(err error)
}

// NATSPublisher publishes JSON summaries under a subject prefix.
type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics PublisherMetrics
}

func NewNATSPublisher(url, prefix string, logger zerolog.Logger, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("addris-route-service"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %q: %w", url, err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, metrics: m}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("publish %s: marshal: %w", subject, err)
	}
	full := Subject(p.prefix, subject)
	err = p.nc.Publish(full, b)
	if p.metrics != nil {
		p.metrics.EventPublished(err)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	zerolog.Ctx(ctx).Debug().Str("subject", full).Int("bytes", len(b)).Msg("event published")
	return nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// Noop drops every event. Used when NATS_URL is empty.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

// Subject joins prefix and subject into a valid NATS subject.
func Subject(prefix, subject string) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{prefix, subject} {
		for _, tok := range strings.Split(s, ".") {
			if tok = subjectToken(tok); tok != "" {
				parts = append(parts, tok)
			}
		}
	}
	return strings.Join(parts, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>' or '*'
	repl := strings.NewReplacer(" ", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	return repl.Replace(s)
}
