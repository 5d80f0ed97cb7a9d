package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrDeliveryFailed is the reason a subscriber was dropped from the set
	ErrDeliveryFailed = errors.New("delivery to subscriber failed")

	// ErrBroadcasterClosed is returned once Close has been called
	ErrBroadcasterClosed = errors.New("broadcaster is closed")

	// ErrUnknownSubscriber is returned by SendTo for an id that is not registered
	ErrUnknownSubscriber = errors.New("subscriber is not registered")
)

// Subscriber receives text frames. Send is only ever called from one goroutine
// per subscriber, so implementations need no write locking of their own.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// Mirror receives a copy of every published frame, e.g. a message broker
type Mirror interface {
	Forward(ctx context.Context, kind string, frame []byte) error
}

type Options struct {
	// QueueSize bounds the frames waiting for one subscriber
	QueueSize int
	// WriteTimeout bounds a single Send
	WriteTimeout time.Duration
	Mirror       Mirror
}

// Broadcaster fans change events out to a dynamic set of subscribers.
// Each subscriber has its own queue drained by a single writer goroutine,
// so frames reach a given subscriber in publish order. A failed or backed up
// subscriber is removed without affecting the others.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool

	queueSize    int
	writeTimeout time.Duration
	mirror       Mirror

	// frames for the mirror, forwarded in publish order by one goroutine
	mirrorQueue chan mirrored
	stop        chan struct{}
}

type mirrored struct {
	kind  string
	frame []byte
}

type subscription struct {
	subscriber Subscriber
	queue      chan []byte
	done       chan struct{}
}

func NewBroadcaster(opts Options) *Broadcaster {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	b := &Broadcaster{
		subs:         make(map[string]*subscription),
		queueSize:    opts.QueueSize,
		writeTimeout: opts.WriteTimeout,
		mirror:       opts.Mirror,
		mirrorQueue:  make(chan mirrored, opts.QueueSize),
		stop:         make(chan struct{}),
	}
	go b.forward()
	return b
}

// SetMirror attaches a mirror after construction
func (b *Broadcaster) SetMirror(m Mirror) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirror = m
}

// Register adds s to the set. Registering an id twice is a no-op.
func (b *Broadcaster) Register(s Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBroadcasterClosed
	}
	if _, ok := b.subs[s.ID()]; ok {
		return nil
	}

	sub := &subscription{
		subscriber: s,
		queue:      make(chan []byte, b.queueSize),
		done:       make(chan struct{}),
	}
	b.subs[s.ID()] = sub
	go b.drain(sub)

	log.Debug().Str("subscriberID", s.ID()).Int("subscribers", len(b.subs)).Msg("Subscriber registered")
	return nil
}

// Unregister removes the subscriber with id and closes it. Unknown ids are ignored.
func (b *Broadcaster) Unregister(id string) {
	b.remove(id, nil)
}

// Len returns the number of registered subscribers
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Has reports whether id is registered
func (b *Broadcaster) Has(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subs[id]
	return ok
}

// Publish queues event for every registered subscriber and for the mirror.
// It never waits on a subscriber or the mirror. Delivery is best effort; only
// an unencodable event is an error.
func (b *Broadcaster) Publish(_ context.Context, event ChangeEvent) error {
	frame, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Event, err)
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBroadcasterClosed
	}
	var backedUp []string
	for id, sub := range b.subs {
		select {
		case sub.queue <- frame:
		default:
			backedUp = append(backedUp, id)
		}
	}
	mirror := b.mirror
	b.mu.RUnlock()

	for _, id := range backedUp {
		b.remove(id, fmt.Errorf("%w: queue full", ErrDeliveryFailed))
	}

	if mirror != nil {
		select {
		case b.mirrorQueue <- mirrored{kind: string(event.Event), frame: frame}:
		default:
			log.Warn().Str("event", string(event.Event)).Msg("Mirror queue full, change event not mirrored")
		}
	}

	return nil
}

// SendTo queues frame for a single subscriber, behind anything already queued for it
func (b *Broadcaster) SendTo(id string, frame []byte) error {
	b.mu.RLock()
	sub, ok := b.subs[id]
	if !ok {
		b.mu.RUnlock()
		return ErrUnknownSubscriber
	}
	select {
	case sub.queue <- frame:
		b.mu.RUnlock()
		return nil
	default:
		b.mu.RUnlock()
	}

	err := fmt.Errorf("%w: queue full", ErrDeliveryFailed)
	b.remove(id, err)
	return err
}

// Close drops and closes every subscriber. Later calls to Register and Publish fail.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if !b.closed {
		close(b.stop)
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[string]*subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		b.shutdown(sub)
	}
}

func (b *Broadcaster) drain(sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case frame := <-sub.queue:
			if err := b.send(sub, frame); err != nil {
				b.remove(sub.subscriber.ID(), fmt.Errorf("%w: %w", ErrDeliveryFailed, err))
				return
			}
		}
	}
}

func (b *Broadcaster) forward() {
	for {
		select {
		case <-b.stop:
			return
		case m := <-b.mirrorQueue:
			b.mu.RLock()
			mirror := b.mirror
			b.mu.RUnlock()
			if mirror == nil {
				continue
			}

			ctx, cancel := b.writeContext()
			if err := mirror.Forward(ctx, m.kind, m.frame); err != nil {
				log.Warn().Err(err).Str("event", m.kind).Msg("Failed to mirror change event")
			}
			cancel()
		}
	}
}

func (b *Broadcaster) writeContext() (context.Context, context.CancelFunc) {
	if b.writeTimeout > 0 {
		return context.WithTimeout(context.Background(), b.writeTimeout)
	}
	return context.WithCancel(context.Background())
}

func (b *Broadcaster) send(sub *subscription, frame []byte) error {
	ctx, cancel := b.writeContext()
	defer cancel()
	return sub.subscriber.Send(ctx, frame)
}

func (b *Broadcaster) remove(id string, reason error) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	remaining := len(b.subs)
	b.mu.Unlock()

	if !ok {
		return
	}
	b.shutdown(sub)

	if reason != nil {
		log.Warn().Err(reason).Str("subscriberID", id).Int("subscribers", remaining).Msg("Subscriber dropped")
		return
	}
	log.Debug().Str("subscriberID", id).Int("subscribers", remaining).Msg("Subscriber unregistered")
}

func (b *Broadcaster) shutdown(sub *subscription) {
	close(sub.done)
	if err := sub.subscriber.Close(); err != nil {
		log.Debug().Err(err).Str("subscriberID", sub.subscriber.ID()).Msg("Closing subscriber")
	}
}
