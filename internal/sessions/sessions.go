// Package sessions records finished transcripts and per-request metrics.
// Logging is fire-and-forget: it never blocks or fails the request path.
package sessions

import (
	"context"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/internal/store"
	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// cacheSize bounds the hot-session cache.
const cacheSize = 512

// writeTimeout bounds the background persistence write.
const writeTimeout = 5 * time.Second

// Logger persists session transcripts with a small LRU in front of the
// store for hot lookups.
type Logger struct {
	store store.Store
	cache *lru.Cache[string, *models.Session]
}

// NewLogger creates a session logger over the given store.
func NewLogger(s store.Store) *Logger {
	cache, _ := lru.New[string, *models.Session](cacheSize)
	return &Logger{store: s, cache: cache}
}

// Log records the transcript and metrics for a session. The write happens
// in the background; failures are logged and dropped.
func (l *Logger) Log(sessionID string, messages []models.ChatMessage, metrics *models.SessionMetrics) {
	if sessionID == "" {
		return
	}

	session := &models.Session{
		ID:        sessionID,
		Messages:  append([]models.ChatMessage(nil), messages...),
		Metrics:   metrics,
		UpdatedAt: time.Now().UTC(),
	}
	l.cache.Add(sessionID, session)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := l.store.UpsertSession(ctx, session); err != nil {
			log.Warn().Str("session_id", sessionID).Err(err).Msg("Failed to persist session")
		}
	}()
}

// Get returns a session, preferring the cache.
func (l *Logger) Get(ctx context.Context, id string) (*models.Session, error) {
	if session, ok := l.cache.Get(id); ok {
		return session, nil
	}
	session, err := l.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	l.cache.Add(id, session)
	return session, nil
}
