// Package events publishes asset and share-link domain events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	SubjectVideoCreated = "video.created"
	SubjectShareCreated = "share.created"
)

// VideoCreated is emitted for every new video, whether uploaded or derived.
type VideoCreated struct {
	ID              string    `json:"id"`
	Operation       string    `json:"operation"`
	Filename        string    `json:"filename"`
	Format          string    `json:"format"`
	SizeBytes       int64     `json:"size_bytes"`
	DurationSeconds float64   `json:"duration_seconds"`
	SourceIDs       []string  `json:"source_ids,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ShareCreated is emitted when a share link is issued. The token itself is
// never published.
type ShareCreated struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	Protected bool      `json:"protected"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Nop discards every event. It is used when NATS_URL is empty.
type Nop struct{}

func (Nop) VideoCreated(context.Context, VideoCreated) error { return nil }
func (Nop) ShareCreated(context.Context, ShareCreated) error { return nil }
func (Nop) Close()                                           {}

// NATSPublisher publishes JSON events on core NATS subjects under a prefix,
// e.g. "reel.video.created".
type NATSPublisher struct {
	conn    *nats.Conn
	prefix  string
	publish func(*nats.Msg) error
	log     zerolog.Logger
}

// Connect dials url and returns a publisher that reconnects indefinitely.
func Connect(url, prefix string, log zerolog.Logger) (*NATSPublisher, error) {
	log = log.With().Str("component", "events").Logger()

	conn, err := nats.Connect(url,
		nats.Name("reel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	p := newPublisher(prefix, conn.PublishMsg, log)
	p.conn = conn
	return p, nil
}

func newPublisher(prefix string, publish func(*nats.Msg) error, log zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{prefix: prefix, publish: publish, log: log}
}

func (p *NATSPublisher) VideoCreated(ctx context.Context, e VideoCreated) error {
	return p.send(ctx, SubjectVideoCreated, e)
}

func (p *NATSPublisher) ShareCreated(ctx context.Context, e ShareCreated) error {
	return p.send(ctx, SubjectShareCreated, e)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.log.Warn().Err(err).Msg("nats drain failed")
	}
}

func (p *NATSPublisher) subject(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

func (p *NATSPublisher) send(ctx context.Context, name string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", name, err)
	}

	msg := nats.NewMsg(p.subject(name))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	if err := p.publish(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}
	return nil
}
