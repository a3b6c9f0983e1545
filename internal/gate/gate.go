// Package gate implements the admin-controlled switch that decides whether
// the assistant may be invoked at all.
package gate

import (
	"context"
	"fmt"

	"github.com/kalambet/deskmate/internal/storage"
)

// FlagStore persists the singleton availability flag.
type FlagStore interface {
	EnsureFlag(ctx context.Context, defaultEnabled bool) (storage.AvailabilityFlag, error)
	WriteFlag(ctx context.Context, enabled bool) (storage.AvailabilityFlag, error)
}

// Gate reads and writes the availability flag. A missing flag is created
// enabled, so a fresh install answers chat messages.
type Gate struct {
	store FlagStore
}

func New(store FlagStore) *Gate {
	return &Gate{store: store}
}

// Get returns the current flag, creating it enabled if absent.
func (g *Gate) Get(ctx context.Context) (storage.AvailabilityFlag, error) {
	f, err := g.store.EnsureFlag(ctx, true)
	if err != nil {
		return storage.AvailabilityFlag{}, fmt.Errorf("reading availability flag: %w", err)
	}
	return f, nil
}

func (g *Gate) IsEnabled(ctx context.Context) (bool, error) {
	f, err := g.Get(ctx)
	if err != nil {
		return false, err
	}
	return f.Enabled, nil
}

// SetEnabled overwrites the flag. Setting the current value again only
// refreshes the timestamp.
func (g *Gate) SetEnabled(ctx context.Context, enabled bool) (storage.AvailabilityFlag, error) {
	f, err := g.store.WriteFlag(ctx, enabled)
	if err != nil {
		return storage.AvailabilityFlag{}, fmt.Errorf("writing availability flag: %w", err)
	}
	return f, nil
}
