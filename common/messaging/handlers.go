package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// SyncTrigger requests an immediate sync cycle and reports whether it was queued
type SyncTrigger func() bool

// SubscribeSyncRequests calls trigger for every message on <prefix>.sync.run.
// Requests carrying a reply subject are answered with a SyncRunReply.
func (c *NatsBroker) SubscribeSyncRequests(trigger SyncTrigger) (*nats.Subscription, error) {
	subject := SyncRunSubject(c.prefix)

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		queued := trigger()
		log.Info().Str("subject", msg.Subject).Bool("queued", queued).Msg("Sync requested over NATS")

		if msg.Reply == "" {
			return
		}
		data, err := json.Marshal(SyncRunReply{Queued: queued})
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode sync reply")
			return
		}
		if err := msg.Respond(data); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("Failed to answer sync request")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	log.Info().Str("subject", subject).Msg("Listening for sync requests")
	return sub, nil
}
