package work

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/LexiconIndonesia/catalog-sync-service/common/redis"
	"github.com/rs/zerolog/log"
)

const (
	runningKey = "catalog:sync:running"
	statusKey  = "catalog:sync:last"
)

// ErrCycleRunning is returned by Start while another cycle holds the lock
var ErrCycleRunning = errors.New("a sync cycle is already running")

// StateStore is the subset of the redis client the manager relies on
type StateStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key string, value string) (bool, error)
}

// Manager tracks sync cycles in Redis. The running key is a lock shared by every
// process syncing into the same store; it expires after ttl so a crashed cycle
// cannot hold it forever.
type Manager struct {
	store StateStore
	ttl   time.Duration
}

func NewManager(store StateStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}
}

// Start takes the cycle lock for cycleID
func (m *Manager) Start(ctx context.Context, cycleID string) error {
	ok, err := m.store.SetNX(ctx, runningKey, cycleID, m.ttl)
	if err != nil {
		return fmt.Errorf("failed to start cycle %s: %w", cycleID, err)
	}
	if !ok {
		return ErrCycleRunning
	}
	return nil
}

// Finish releases the lock if cycleID still owns it
func (m *Manager) Finish(ctx context.Context, cycleID string) error {
	released, err := m.store.CompareAndDelete(ctx, runningKey, cycleID)
	if err != nil {
		return fmt.Errorf("failed to finish cycle %s: %w", cycleID, err)
	}
	if !released {
		log.Warn().Str("cycleID", cycleID).Msg("Cycle lock expired or was taken over before finishing")
	}
	return nil
}

// Running returns the id of the cycle holding the lock, if any
func (m *Manager) Running(ctx context.Context) (string, bool, error) {
	id, err := m.store.Get(ctx, runningKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read running cycle: %w", err)
	}
	return id, true, nil
}

// SaveStatus records status as the latest cycle outcome
func (m *Manager) SaveStatus(ctx context.Context, status models.SyncStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encoding cycle status: %w", err)
	}
	if err := m.store.Set(ctx, statusKey, data, 0); err != nil {
		return fmt.Errorf("failed to save cycle status: %w", err)
	}
	return nil
}

// LastStatus returns the latest recorded cycle outcome; ok is false before the first cycle
func (m *Manager) LastStatus(ctx context.Context) (models.SyncStatus, bool, error) {
	var status models.SyncStatus

	data, err := m.store.Get(ctx, statusKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return status, false, nil
		}
		return status, false, fmt.Errorf("failed to read cycle status: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return status, false, fmt.Errorf("decoding cycle status: %w", err)
	}
	return status, true, nil
}
