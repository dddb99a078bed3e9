// Package store provides uniform, typed access to rows in the relational
// store: CRUD plus filtered list per entity (spec §4.1). It is grounded on
// the teacher's internal/registry/repository package — manual SQL over
// pgx/v5, a single ErrNotFound sentinel for read misses, and one
// repository type per entity rather than a generic DAO.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is the distinguished "not found" signal for reads that miss;
// it is never wrapped so callers can use errors.Is directly (spec §4.1).
var ErrNotFound = errors.New("store: not found")

// ErrConflict signals a uniqueness violation or a stale optimistic update.
var ErrConflict = errors.New("store: conflict")

// Store bundles the pgx pool together with one repository per entity.
// HTTP handlers and the ingest pipeline hold *Store and use its repository
// fields; the builder depends on narrower per-entity interfaces instead.
type Store struct {
	Pool          *pgxpool.Pool
	Agents        *AgentRepository
	Products      *ProductRepository
	Conversations *ConversationRepository
	TrainingData  *TrainingDataRepository
	Orders        *OrderRepository
}

// New connects to Postgres and wires up every repository against the pool.
// storeKey, when non-empty, is set as the app.store_key session GUC on every
// connection so row-level-security policies (a managed-Postgres tenant-key
// scheme, not implemented by this module's own schema) can reference it; an
// empty storeKey is the common case for a self-hosted database.
func New(ctx context.Context, dsn, storeKey string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if storeKey != "" {
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "select set_config('app.store_key', $1, false)", storeKey)
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{
		Pool:          pool,
		Agents:        NewAgentRepository(pool),
		Products:      NewProductRepository(pool),
		Conversations: NewConversationRepository(pool),
		TrainingData:  NewTrainingDataRepository(pool),
		Orders:        NewOrderRepository(pool),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.Pool.Close() }
