// Package store defines the persistence interface for traces and sessions
// and ships the in-memory implementation used by default.
package store

import (
	"context"

	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
)

// Store persists call traces and session transcripts. Implementations must
// be safe for concurrent use.
type Store interface {
	// Traces
	CreateTrace(ctx context.Context, trace *models.Trace) error
	ListTraces(ctx context.Context, sessionID string, limit int) ([]*models.Trace, error)

	// Sessions
	UpsertSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}
