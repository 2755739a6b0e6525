package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"gymcal/internal/model"
)

type kind string

const (
	kindGym   kind = "gym"
	kindGroup kind = "group"
	kindMatch kind = "match"
)

// backend keeps JSON documents per kind, in insertion order.
type backend interface {
	list(ctx context.Context, k kind) ([][]byte, error)
	get(ctx context.Context, k kind, id string) ([]byte, error)
	insert(ctx context.Context, k kind, id string, doc []byte) error
	replace(ctx context.Context, k kind, id string, doc []byte) error
	remove(ctx context.Context, k kind, id string) error
	close() error
}

// docStore implements Store over a backend. Records are stored as JSON so
// every read hands out an independent copy.
type docStore struct {
	b       backend
	version atomic.Uint64
}

func (s *docStore) Version() uint64 { return s.version.Load() }

func (s *docStore) Close() error { return s.b.close() }

func (s *docStore) ListGyms(ctx context.Context) ([]model.Gym, error) {
	return listDocs[model.Gym](ctx, s.b, kindGym)
}

func (s *docStore) GetGym(ctx context.Context, id string) (model.Gym, error) {
	return getDoc[model.Gym](ctx, s.b, kindGym, id)
}

func (s *docStore) AddGym(ctx context.Context, g model.Gym) (model.Gym, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return g, s.write(ctx, kindGym, g.ID, g, s.b.insert)
}

func (s *docStore) UpdateGym(ctx context.Context, g model.Gym) (model.Gym, error) {
	return g, s.write(ctx, kindGym, g.ID, g, s.b.replace)
}

func (s *docStore) DeleteGym(ctx context.Context, id string) error {
	return s.remove(ctx, kindGym, id)
}

func (s *docStore) ListGroups(ctx context.Context) ([]model.Group, error) {
	return listDocs[model.Group](ctx, s.b, kindGroup)
}

func (s *docStore) GetGroup(ctx context.Context, id string) (model.Group, error) {
	return getDoc[model.Group](ctx, s.b, kindGroup, id)
}

func (s *docStore) AddGroup(ctx context.Context, g model.Group) (model.Group, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	prepareGroup(&g)
	return g, s.write(ctx, kindGroup, g.ID, g, s.b.insert)
}

func (s *docStore) UpdateGroup(ctx context.Context, g model.Group) (model.Group, error) {
	prepareGroup(&g)
	return g, s.write(ctx, kindGroup, g.ID, g, s.b.replace)
}

func (s *docStore) DeleteGroup(ctx context.Context, id string) error {
	return s.remove(ctx, kindGroup, id)
}

func (s *docStore) ListMatches(ctx context.Context) ([]model.Match, error) {
	return listDocs[model.Match](ctx, s.b, kindMatch)
}

func (s *docStore) GetMatch(ctx context.Context, id string) (model.Match, error) {
	return getDoc[model.Match](ctx, s.b, kindMatch, id)
}

func (s *docStore) AddMatch(ctx context.Context, m model.Match) (model.Match, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return m, s.write(ctx, kindMatch, m.ID, m, s.b.insert)
}

func (s *docStore) UpdateMatch(ctx context.Context, m model.Match) (model.Match, error) {
	return m, s.write(ctx, kindMatch, m.ID, m, s.b.replace)
}

func (s *docStore) DeleteMatch(ctx context.Context, id string) error {
	return s.remove(ctx, kindMatch, id)
}

type writeFunc func(ctx context.Context, k kind, id string, doc []byte) error

func (s *docStore) write(ctx context.Context, k kind, id string, v any, fn writeFunc) error {
	if id == "" {
		return fmt.Errorf("%s: %w", k, ErrNotFound)
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", k, id, err)
	}
	if err := fn(ctx, k, id, doc); err != nil {
		return err
	}
	s.version.Add(1)
	return nil
}

func (s *docStore) remove(ctx context.Context, k kind, id string) error {
	if err := s.b.remove(ctx, k, id); err != nil {
		return err
	}
	s.version.Add(1)
	return nil
}

// prepareGroup ties the schedule to its group and fills missing ids.
// A group owns at most one schedule; saving replaces the previous one.
func prepareGroup(g *model.Group) {
	if g.Schedule == nil {
		return
	}
	s := *g.Schedule
	s.GroupID = g.ID
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	for _, day := range model.Weekdays {
		slots := append([]model.TimeSlot{}, s.SlotsFor(day)...)
		for i := range slots {
			if slots[i].ID == "" {
				slots[i].ID = uuid.NewString()
			}
		}
		s.SetSlots(day, slots)
	}
	g.Schedule = &s
}

func listDocs[T any](ctx context.Context, b backend, k kind) ([]T, error) {
	docs, err := b.list(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", k, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func getDoc[T any](ctx context.Context, b backend, k kind, id string) (T, error) {
	var v T
	doc, err := b.get(ctx, k, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("decode %s %s: %w", k, id, err)
	}
	return v, nil
}
