package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/internal/version"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	ids        IDGenerator
	shortIDs   IDGenerator
	messageIDs IDGenerator
	now        func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithIDGenerator replaces the generator used for entity ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile, opts ...Option) *Store {
	s := &Store{
		driver:     driver,
		profile:    profile,
		ids:        UUIDGenerator{},
		shortIDs:   ShortIDGenerator{},
		messageIDs: ULIDGenerator{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate applies the driver schema. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.driver.Migrate(ctx); err != nil {
		return errors.Wrap(err, "failed to migrate")
	}
	return s.checkSchemaVersion(ctx)
}

// checkSchemaVersion refuses to run against a database last migrated by a
// newer release, and otherwise records the running release.
func (s *Store) checkSchemaVersion(ctx context.Context) error {
	binary := version.Version
	if s.profile != nil && s.profile.Version != "" {
		binary = s.profile.Version
	}
	current := version.Release(binary)
	if current == "" {
		return errors.Wrapf(ErrInvalidArgument, "invalid version %q", binary)
	}
	stored, err := s.driver.GetSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version.IsValid(stored) && !version.IsVersionGreaterOrEqualThan(current, stored) {
		return errors.Errorf("database schema %s is newer than this release %s", stored, current)
	}
	if stored == current {
		return nil
	}
	if err := s.driver.SetSchemaVersion(ctx, current, s.timestamp()); err != nil {
		return err
	}
	slog.Info("recorded schema version", "previous", stored, "version", current)
	return nil
}

// NewID returns a fresh entity id.
func (s *Store) NewID() string {
	return s.ids.NewID()
}

func (s *Store) timestamp() int64 {
	return s.now().Unix()
}

// NormalizeTagNames trims names, drops empty ones and removes duplicates
// while keeping the first occurrence order.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result
}
