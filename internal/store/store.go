// Package store persists gyms, groups and matches. The scheduling engine
// never touches it; callers snapshot records from a Store and hand plain
// slices to the engine.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	appLog "gymcal/internal/log"
	"gymcal/internal/model"
)

var ErrNotFound = errors.New("record not found")

// Store is the CRUD contract over the persisted record types.
//
// Add assigns a fresh id when the record has none and returns the stored
// record. Get, Update and Delete return ErrNotFound for unknown ids. Lists
// come back in insertion order.
type Store interface {
	ListGyms(ctx context.Context) ([]model.Gym, error)
	GetGym(ctx context.Context, id string) (model.Gym, error)
	AddGym(ctx context.Context, g model.Gym) (model.Gym, error)
	UpdateGym(ctx context.Context, g model.Gym) (model.Gym, error)
	DeleteGym(ctx context.Context, id string) error

	ListGroups(ctx context.Context) ([]model.Group, error)
	GetGroup(ctx context.Context, id string) (model.Group, error)
	AddGroup(ctx context.Context, g model.Group) (model.Group, error)
	UpdateGroup(ctx context.Context, g model.Group) (model.Group, error)
	DeleteGroup(ctx context.Context, id string) error

	ListMatches(ctx context.Context) ([]model.Match, error)
	GetMatch(ctx context.Context, id string) (model.Match, error)
	AddMatch(ctx context.Context, m model.Match) (model.Match, error)
	UpdateMatch(ctx context.Context, m model.Match) (model.Match, error)
	DeleteMatch(ctx context.Context, id string) error

	// Version increases on every successful write. Callers use it to key
	// memoized computations over a snapshot.
	Version() uint64

	Close() error
}

// Config selects and configures the backend.
//
// Driver values:
//   - "memory": process-local maps, lost on exit
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store. An empty driver means memory.
func Open(cfg Config) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))

	var (
		b   backend
		err error
	)
	switch driver {
	case "", "memory":
		b = newMemoryBackend()
	case "sqlite", "sqlite3":
		b, err = openSQLite(cfg)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, err
	}

	appLog.Info("store opened", "driver", driverName(driver), "path", cfg.Path)
	return &docStore{b: b}, nil
}

// OpenMemory returns an empty in-memory store.
func OpenMemory() Store {
	return &docStore{b: newMemoryBackend()}
}

func driverName(d string) string {
	if d == "" {
		return "memory"
	}
	return d
}
