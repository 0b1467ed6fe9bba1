// Package credential keeps the hub access token fresh.
package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"telemetry-broker/internal/model"
)

const (
	// RenewMargin is how long before expiry a refresh is attempted.
	RenewMargin = 5 * time.Minute
	// MinDelay bounds retries when the token is expired or refreshes keep
	// failing.
	MinDelay = time.Second
	// InitialDelay is used while no expiry is known.
	InitialDelay = 30 * time.Second
)

var ErrAlreadyStarted = errors.New("credential manager already started")

// Manager owns the single credential slot. Refreshes are serialized by
// refreshMu, which is held across the remote call; the slot has its own
// lock that is never held across I/O, so readers never wait on the hub and
// always see a token together with its own expiry.
type Manager struct {
	source TokenSource
	logger *zap.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time

	refreshMu sync.Mutex

	mu   sync.RWMutex
	cred model.Credential

	startOnce sync.Once
	done      chan struct{}
}

func NewManager(source TokenSource, logger *zap.Logger) *Manager {
	return NewManagerWithClock(source, logger, time.Now, time.After)
}

func NewManagerWithClock(source TokenSource, logger *zap.Logger, now func() time.Time, after func(time.Duration) <-chan time.Time) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		source: source,
		logger: logger,
		now:    now,
		after:  after,
		done:   make(chan struct{}),
	}
}

// Start performs one synchronous refresh. Only when it succeeds is the
// background loop spawned; it runs until ctx is cancelled. A failed first
// refresh is returned to the caller, which decides whether that is fatal.
func (m *Manager) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	m.startOnce.Do(func() {
		if err = m.Refresh(ctx); err != nil {
			close(m.done)
			return
		}
		go m.run(ctx)
	})
	return err
}

// Wait blocks until the background loop has exited. It returns at once if
// the loop was never spawned because the first refresh failed.
func (m *Manager) Wait() {
	<-m.done
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	for {
		delay := m.NextDelay()
		select {
		case <-ctx.Done():
			return
		case <-m.after(delay):
		}

		if err := m.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("failed to refresh hub token",
				zap.Error(err),
				zap.Duration("retry_in", m.NextDelay()),
			)
		}
	}
}

// Refresh fetches a new token and replaces the slot. At most one refresh
// runs at a time. On failure the previous credential is left as it was.
func (m *Manager) Refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	token, err := m.source.FetchToken(ctx)
	if err != nil {
		return err
	}

	expiresAt := token.ExpiresAt
	if token.Lifetime > 0 {
		expiresAt = m.now().Add(token.Lifetime)
	}

	m.mu.Lock()
	m.cred = model.Credential{Token: token.AccessToken, ExpiresAt: expiresAt}
	m.mu.Unlock()

	m.logger.Info("hub token refreshed", zap.Time("expires_at", expiresAt))
	return nil
}

// NextDelay is the wait before the next refresh attempt: 5 minutes before
// expiry, never less than a second, or 30 seconds while no expiry is known.
func (m *Manager) NextDelay() time.Duration {
	m.mu.RLock()
	expiresAt := m.cred.ExpiresAt
	m.mu.RUnlock()

	if expiresAt.IsZero() {
		return InitialDelay
	}
	delay := expiresAt.Sub(m.now()) - RenewMargin
	if delay < MinDelay {
		return MinDelay
	}
	return delay
}

// Token returns the current token. The boolean is false until a refresh has
// succeeded. It does not wait for an in-flight refresh.
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred.Token, m.cred.Token != ""
}

// Credential returns a copy of the whole slot.
func (m *Manager) Credential() model.Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred
}
