package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	id      string
	mu      sync.Mutex
	frames  [][]byte
	fail    bool
	closed  bool
	release chan struct{}
}

func newRecorder(id string) *recordingSubscriber {
	return &recordingSubscriber{id: id}
}

func (r *recordingSubscriber) ID() string { return r.id }

func (r *recordingSubscriber) Send(ctx context.Context, frame []byte) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("connection closed")
	}
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recordingSubscriber) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSubscriber) received() []ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]ChangeEvent, 0, len(r.frames))
	for _, f := range r.frames {
		var e struct {
			Event   EventKind       `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(f, &e); err == nil {
			events = append(events, ChangeEvent{Event: e.Event, Payload: e.Payload})
		}
	}
	return events
}

func (r *recordingSubscriber) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type recordingMirror struct {
	mu      sync.Mutex
	kinds   []string
	release chan struct{}
}

func (m *recordingMirror) Forward(ctx context.Context, kind string, frame []byte) error {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, kind)
	return nil
}

func (m *recordingMirror) forwarded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.kinds...)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewBroadcaster(Options{})
	assert.NoError(t, b.Publish(context.Background(), ProductsEvent(nil)))
	assert.Zero(t, b.Len())
}

func TestPublishDropsOnlyTheFailingSubscriber(t *testing.T) {
	b := NewBroadcaster(Options{QueueSize: 8})
	first, second, third := newRecorder("1"), newRecorder("2"), newRecorder("3")
	second.fail = true

	for _, s := range []*recordingSubscriber{first, second, third} {
		require.NoError(t, b.Register(s))
	}

	product := models.Product{ID: 7, Name: "Widget", Price: 9.99}
	require.NoError(t, b.Publish(context.Background(), ProductEvent(EventCreateProduct, product)))

	assert.Eventually(t, func() bool {
		return len(first.received()) == 1 && len(third.received()) == 1 && !b.Has("2")
	}, time.Second, 5*time.Millisecond)

	assert.True(t, b.Has("1"))
	assert.True(t, b.Has("3"))
	assert.Equal(t, 2, b.Len())
	assert.True(t, second.isClosed())
	assert.Equal(t, EventCreateProduct, first.received()[0].Event)
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	b := NewBroadcaster(Options{QueueSize: 128})
	sub := newRecorder("ordered")
	require.NoError(t, b.Register(sub))

	for i := 1; i <= 100; i++ {
		require.NoError(t, b.Publish(context.Background(), ProductDeletedEvent(int64(i))))
	}

	require.Eventually(t, func() bool { return len(sub.received()) == 100 }, time.Second, 5*time.Millisecond)

	for i, e := range sub.received() {
		var payload ProductIDPayload
		require.NoError(t, json.Unmarshal(e.Payload.(json.RawMessage), &payload))
		assert.Equal(t, int64(i+1), payload.ProductID)
	}
}

func TestPublishDropsBackedUpSubscriber(t *testing.T) {
	b := NewBroadcaster(Options{QueueSize: 1})
	slow := newRecorder("slow")
	slow.release = make(chan struct{})
	fast := newRecorder("fast")
	require.NoError(t, b.Register(slow))
	require.NoError(t, b.Register(fast))

	// the first frame is held by the blocked writer, the second fills the queue
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(context.Background(), ProductDeletedEvent(int64(i))))
		time.Sleep(10 * time.Millisecond)
	}
	close(slow.release)

	assert.Eventually(t, func() bool { return !b.Has("slow") }, time.Second, 5*time.Millisecond)
	assert.True(t, b.Has("fast"))
	assert.Eventually(t, func() bool { return len(fast.received()) == 3 }, time.Second, 5*time.Millisecond)
}

func TestRegisterAndUnregisterAreIdempotent(t *testing.T) {
	b := NewBroadcaster(Options{})
	sub := newRecorder("a")

	require.NoError(t, b.Register(sub))
	require.NoError(t, b.Register(sub))
	assert.Equal(t, 1, b.Len())

	b.Unregister("a")
	b.Unregister("a")
	b.Unregister("never-registered")
	assert.Zero(t, b.Len())
	assert.True(t, sub.isClosed())
}

func TestConcurrentRegisterPublishUnregister(t *testing.T) {
	b := NewBroadcaster(Options{QueueSize: 4})
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sub-%d", i)
			_ = b.Register(newRecorder(id))
			b.Unregister(id)
		}(i)
		go func() {
			defer wg.Done()
			_ = b.Publish(context.Background(), ProductsEvent(nil))
		}()
	}
	wg.Wait()
	assert.Zero(t, b.Len())
}

func TestSendToQueuesBehindPublishedFrames(t *testing.T) {
	b := NewBroadcaster(Options{})
	sub := newRecorder("echo")
	require.NoError(t, b.Register(sub))

	require.NoError(t, b.Publish(context.Background(), ProductsEvent(nil)))
	require.NoError(t, b.SendTo("echo", []byte("Echo: hi")))
	assert.ErrorIs(t, b.SendTo("missing", []byte("x")), ErrUnknownSubscriber)

	require.Eventually(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.frames) == 2
	}, time.Second, 5*time.Millisecond)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, "Echo: hi", string(sub.frames[1]))
}

func TestPublishForwardsToMirror(t *testing.T) {
	mirror := &recordingMirror{}
	b := NewBroadcaster(Options{Mirror: mirror})

	require.NoError(t, b.Publish(context.Background(), ProductDeletedEvent(1)))
	require.NoError(t, b.Publish(context.Background(), ProductsEvent(nil)))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"delete_product", "get_products"}, mirror.forwarded())
	}, time.Second, 5*time.Millisecond)
}

func TestPublishDoesNotWaitForMirror(t *testing.T) {
	mirror := &recordingMirror{release: make(chan struct{})}
	b := NewBroadcaster(Options{Mirror: mirror})
	defer b.Close()

	sub := newRecorder("a")
	require.NoError(t, b.Register(sub))

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(context.Background(), ProductDeletedEvent(int64(i))))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Eventually(t, func() bool { return len(sub.received()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, mirror.forwarded())

	close(mirror.release)
	assert.Eventually(t, func() bool { return len(mirror.forwarded()) == 3 }, time.Second, 5*time.Millisecond)
}

func TestClosedBroadcasterRejectsWork(t *testing.T) {
	b := NewBroadcaster(Options{})
	sub := newRecorder("a")
	require.NoError(t, b.Register(sub))

	b.Close()

	assert.True(t, sub.isClosed())
	assert.ErrorIs(t, b.Register(newRecorder("b")), ErrBroadcasterClosed)
	assert.ErrorIs(t, b.Publish(context.Background(), ProductsEvent(nil)), ErrBroadcasterClosed)
}

func TestEventWireFormat(t *testing.T) {
	frame, err := ProductEvent(EventCreateProduct, models.Product{ID: 1, Name: "Widget", Price: 9.99}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"create_product","payload":{"product":{"id":1,"name":"Widget","price":9.99}}}`, string(frame))

	frame, err = ProductsEvent(nil).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"get_products","payload":{"products":[]}}`, string(frame))

	frame, err = ProductDeletedEvent(3).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"delete_product","payload":{"product_id":3}}`, string(frame))
}
