// Package cache persists a last-known-good snapshot of each user's project
// list in a local SQLite database, giving degraded mode something to show.
// It is a read-only fallback, not a sync layer: nothing written here ever
// flows back to the hosted service.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hosted/projects"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// ProjectSnapshot is one user's cached project list, serialized as JSON. The
// row id is derived deterministically from service URL and user id so a
// re-save is always an upsert of the same row.
type ProjectSnapshot struct {
	bun.BaseModel `bun:"table:project_snapshots"`

	ID      uuid.UUID `bun:"id,pk,type:uuid"`
	UserID  uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Payload []byte    `bun:"payload,notnull"`
	SavedAt time.Time `bun:"saved_at,notnull"`
}

// Open opens (or creates) the SQLite database at path. Use ":memory:" for an
// ephemeral cache.
func Open(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open snapshot database")
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Store implements projects.SnapshotStore using Bun over SQLite.
type Store struct {
	db         *bun.DB
	serviceURL string
}

var _ projects.SnapshotStore = (*Store)(nil)

// New creates a snapshot store scoped to one hosted service. Snapshots from
// different services never collide even when they share a database file.
func New(db *bun.DB, serviceURL string) *Store {
	return &Store{db: db, serviceURL: serviceURL}
}

// Init creates the snapshot table when missing.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*ProjectSnapshot)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create snapshot table")
	}
	return nil
}

// Save replaces the user's snapshot.
func (s *Store) Save(ctx context.Context, userID uuid.UUID, list []projects.Project) error {
	id, err := s.snapshotID(userID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode snapshot")
	}

	row := &ProjectSnapshot{
		ID:      id,
		UserID:  userID,
		Payload: payload,
		SavedAt: time.Now(),
	}

	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("saved_at = EXCLUDED.saved_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to save snapshot")
	}
	return nil
}

// Load returns the user's snapshot, or (nil, nil) when none was saved yet.
func (s *Store) Load(ctx context.Context, userID uuid.UUID) ([]projects.Project, error) {
	id, err := s.snapshotID(userID)
	if err != nil {
		return nil, err
	}

	var row ProjectSnapshot
	err = s.db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load snapshot")
	}

	var list []projects.Project
	if err := json.Unmarshal(row.Payload, &list); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode snapshot")
	}
	return list, nil
}

func (s *Store) snapshotID(userID uuid.UUID) (uuid.UUID, error) {
	id, err := hashid.NewUUID(s.serviceURL + "|" + userID.String())
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive snapshot id")
	}
	return id, nil
}
