package dm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/swuota-server/swuota-server/internal/config"
	"github.com/swuota-server/swuota-server/internal/events"
	"github.com/swuota-server/swuota-server/internal/models"
)

// Registry is the process-wide session store: one session per device
// identity (source URI plus asserted login), created on first contact.
// With a zero TTL sessions are retained for the process lifetime; a
// positive TTL enables idle eviction via Run.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	users    map[string]config.Credential
	prompts  config.PromptsConfig
	recorder events.Recorder

	ttl           time.Duration
	sweepInterval time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(users map[string]config.Credential, prompts config.PromptsConfig, recorder events.Recorder, ttl, sweepInterval time.Duration) *Registry {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Registry{
		sessions:      make(map[string]*Session),
		users:         users,
		prompts:       prompts,
		recorder:      recorder,
		ttl:           ttl,
		sweepInterval: sweepInterval,
	}
}

func sessionKey(deviceID, login string) string {
	return deviceID + "\x00" + login
}

// GetOrCreate resolves the session for a device identity, creating it on
// first contact.
func (r *Registry) GetOrCreate(deviceID, login string) *Session {
	key := sessionKey(deviceID, login)

	r.mu.RLock()
	sess, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		return sess
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[key]; ok {
		return sess
	}

	sess = newSession(deviceID, login, r.users, r.prompts, r.recorder)
	r.sessions[key] = sess
	log.Debug().
		Str("device", deviceID).
		Str("login", login).
		Msg("Session created")
	return sess
}

// Find returns the session with the given registry handle.
func (r *Registry) Find(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sess := range r.sessions {
		if sess.id == id {
			return sess, true
		}
	}
	return nil, false
}

// Evict removes the session with the given handle.
func (r *Registry) Evict(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, sess := range r.sessions {
		if sess.id == id {
			delete(r.sessions, key)
			log.Info().Str("device", sess.deviceID).Msg("Session evicted")
			return true
		}
	}
	return false
}

// Snapshot returns an ops view of every session.
func (r *Registry) Snapshot() []*models.SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	infos := make([]*models.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	return infos
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle longer than ttl and returns how many went.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, sess := range r.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(r.sessions, key)
			evicted++
		}
	}
	return evicted
}

// Run sweeps idle sessions until the context ends. No-op for a zero TTL,
// which preserves the retain-forever behavior.
func (r *Registry) Run(ctx context.Context) {
	if r.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.ttl); n > 0 {
				log.Info().Int("count", n).Msg("Evicted idle sessions")
			}
		}
	}
}
