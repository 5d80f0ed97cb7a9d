package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

var errJetStreamNotReady = errors.New("JetStream not initialized")

// NatsBroker mirrors catalog change events to NATS and receives sync requests
type NatsBroker struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	prefix string
	url    string
	user   string
	pass   string
}

// NewNatsBroker connects to the configured NATS server
func NewNatsBroker(cfg config.Config) (*NatsBroker, error) {
	client := &NatsBroker{
		prefix: cfg.Nats.Subject,
		url:    cfg.Nats.URL(),
		user:   cfg.Nats.Username,
		pass:   cfg.Nats.Password,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

// connect connects to the NATS server
func (c *NatsBroker) connect() error {
	var err error

	opts := []nats.Option{
		nats.Name("catalog-sync-service"),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("server", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			event := log.Error().Err(err)
			if sub != nil {
				event = event.Str("subject", sub.Subject)
			}
			event.Msg("Error handling NATS message")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}

	if c.user != "" && c.pass != "" {
		opts = append(opts, nats.UserInfo(c.user, c.pass))
	}

	c.conn, err = nats.Connect(c.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(c.conn)
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	c.js = js

	log.Info().Str("server", c.conn.ConnectedUrl()).Msg("Connected to NATS")
	return nil
}

// Close drains the connection
func (c *NatsBroker) Close() error {
	if c.conn != nil && c.conn.IsConnected() {
		return c.conn.Drain()
	}
	return nil
}

// EnsureEventStream creates or updates the stream that keeps mirrored events
func (c *NatsBroker) EnsureEventStream(ctx context.Context, maxAge time.Duration) (jetstream.Stream, error) {
	if c.js == nil {
		return nil, errJetStreamNotReady
	}

	streamConfig := jetstream.StreamConfig{
		Name:     EventStreamName,
		Subjects: []string{EventSubject(c.prefix, ">")},
		Storage:  jetstream.FileStorage,
		MaxAge:   maxAge,
	}

	stream, err := c.js.CreateOrUpdateStream(ctx, streamConfig)
	if err != nil {
		log.Error().Err(err).Str("stream", streamConfig.Name).Msg("Failed to create or update stream")
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	log.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Msg("Event stream ready")

	return stream, nil
}

// PublishSync publishes a message to a subject and waits for the JetStream acknowledgement
func (c *NatsBroker) PublishSync(ctx context.Context, subject string, data []byte) error {
	if c.js == nil {
		return errJetStreamNotReady
	}

	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", subject, err)
	}

	log.Debug().Str("subject", subject).Msg("Published message to NATS and received ack")
	return nil
}

// Forward mirrors a broadcast change event onto <prefix>.events.<kind>
func (c *NatsBroker) Forward(ctx context.Context, kind string, frame []byte) error {
	return c.PublishSync(ctx, EventSubject(c.prefix, kind), frame)
}
