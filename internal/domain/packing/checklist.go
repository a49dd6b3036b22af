// Package packing implements the per-order packing checklist, a sub-state
// machine nested between the paid and packed order states. Completion of the
// checklist is the trigger that advances the order lifecycle, guarded by a
// fire-once latch scoped to one checklist session.
package packing

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// ErrUnknownItem is returned when a toggle names an item the checklist does
// not contain.
var ErrUnknownItem = errors.New("item not on packing checklist")

// Entry is one checklist row, created lazily from the order's item snapshot
// the first time packing is opened for the order.
type Entry struct {
	OrderID  string
	ItemName string
	Quantity int
	Packed   bool
	PackedAt *time.Time
}

// Repository persists checklist entries.
type Repository interface {
	// CreateEntries inserts the given entries, skipping any that already
	// exist so reopening a checklist never resets packed flags.
	CreateEntries(ctx context.Context, entries []Entry) error
	Entries(ctx context.Context, orderID string) ([]Entry, error)
	SetPacked(ctx context.Context, orderID, itemName string, packed bool) error
}

// Progress summarizes checklist completion.
type Progress struct {
	Packed int
	Total  int
}

// Complete reports whether every entry is packed.
func (p Progress) Complete() bool {
	return p.Total > 0 && p.Packed == p.Total
}

// CompletionFunc is invoked exactly once per session when the checklist
// first reaches 100% packed. It advances the order lifecycle.
type CompletionFunc func(ctx context.Context) error

// Session is one open checklist view. The fire-once latch lives here: it is
// set the instant completion fires and cleared only by constructing a fresh
// session, never on individual toggles. Toggles arrive from concurrent HTTP
// requests sharing the session, so they are serialized by a mutex.
type Session struct {
	orderID    string
	repo       Repository
	onComplete CompletionFunc

	mu    sync.Mutex
	fired bool
}

// NewSession opens a checklist session for an order with a fresh latch.
func NewSession(orderID string, repo Repository, onComplete CompletionFunc) *Session {
	return &Session{
		orderID:    orderID,
		repo:       repo,
		onComplete: onComplete,
	}
}

// Entries returns the current checklist rows.
func (s *Session) Entries(ctx context.Context) ([]Entry, error) {
	entries, err := s.repo.Entries(ctx, s.orderID)
	if err != nil {
		return nil, errors.Wrap(err, "load checklist")
	}
	return entries, nil
}

// Progress returns the packed/total counts.
func (s *Session) Progress(ctx context.Context) (Progress, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return Progress{}, err
	}
	return progressOf(entries), nil
}

// Toggle sets the packed flag of one entry and re-evaluates completion. On
// the first toggle that brings the checklist to 100%, the completion
// callback fires exactly once for the lifetime of this session; later
// toggles, including untoggling and re-toggling, never fire it again.
func (s *Session) Toggle(ctx context.Context, itemName string, packed bool) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.Entries(ctx)
	if err != nil {
		return Progress{}, err
	}

	found := false
	for i := range entries {
		if entries[i].ItemName == itemName {
			entries[i].Packed = packed
			found = true
			break
		}
	}
	if !found {
		return Progress{}, ErrUnknownItem
	}

	if err := s.repo.SetPacked(ctx, s.orderID, itemName, packed); err != nil {
		return Progress{}, errors.Wrap(err, "persist packed flag")
	}

	progress := progressOf(entries)
	if progress.Complete() && !s.fired {
		s.fired = true
		if err := s.onComplete(ctx); err != nil {
			return progress, errors.Wrap(err, "complete packing")
		}
	}
	return progress, nil
}

func progressOf(entries []Entry) Progress {
	p := Progress{Total: len(entries)}
	for _, e := range entries {
		if e.Packed {
			p.Packed++
		}
	}
	return p
}
