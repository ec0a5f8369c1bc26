package session

import (
	"context"

	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
)

// SnapshotRepository persists sessions beyond process memory. Load returns
// domain.ErrSessionNotFound for unknown ids.
type SnapshotRepository interface {
	Save(ctx context.Context, s *domsession.Session) error
	Load(ctx context.Context, id string) (*domsession.Session, error)
	Delete(ctx context.Context, id string) error
}
