package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/handle-crawler/internal/types"
)

// MemberStore persists member records. *db.DB implements it.
type MemberStore interface {
	SaveMember(ctx context.Context, runID uuid.UUID, position int, rec *types.MemberRecord) error
}

// Postgres stores each record as a row of the run, keeping emission order.
// Rows are written on Emit, so Flush has nothing to do.
type Postgres struct {
	mu       sync.Mutex
	store    MemberStore
	runID    uuid.UUID
	position int
}

// NewPostgres creates a sink writing to store under runID.
func NewPostgres(store MemberStore, runID uuid.UUID) *Postgres {
	return &Postgres{store: store, runID: runID}
}

// Emit saves rec at the next position.
func (p *Postgres) Emit(ctx context.Context, rec *types.MemberRecord) error {
	if rec == nil {
		return fmt.Errorf("member record is nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.SaveMember(ctx, p.runID, p.position, rec); err != nil {
		return err
	}
	p.position++
	return nil
}

// Flush is a no-op.
func (p *Postgres) Flush(context.Context) error { return nil }

// Close is a no-op; the caller owns the database connection.
func (p *Postgres) Close() error { return nil }
