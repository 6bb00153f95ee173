package store

import (
	"context"

	"github.com/yosefsha/myassistant/internal/profile"
)

// Driver is the database-specific half of the store.
type Driver interface {
	Close() error

	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	UpsertSessionRecord(ctx context.Context, upsert *SessionRecord) error
	ListSessionRecords(ctx context.Context, find *FindSessionRecord) ([]*SessionRecord, error)
	DeleteSessionRecord(ctx context.Context, delete *DeleteSessionRecord) error
}

// Store provides database access to opaque session records.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) UpsertSessionRecord(ctx context.Context, upsert *SessionRecord) error {
	return s.driver.UpsertSessionRecord(ctx, upsert)
}

func (s *Store) ListSessionRecords(ctx context.Context, find *FindSessionRecord) ([]*SessionRecord, error) {
	return s.driver.ListSessionRecords(ctx, find)
}

// GetSessionRecord returns the record with the given id, or nil if absent.
func (s *Store) GetSessionRecord(ctx context.Context, id string) (*SessionRecord, error) {
	list, err := s.driver.ListSessionRecords(ctx, &FindSessionRecord{ID: &id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) DeleteSessionRecord(ctx context.Context, delete *DeleteSessionRecord) error {
	return s.driver.DeleteSessionRecord(ctx, delete)
}
