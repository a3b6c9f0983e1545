package gate

import (
	"context"
	"testing"

	"github.com/kalambet/deskmate/internal/storage"
)

func openGate(t *testing.T) *Gate {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestIsEnabled_DefaultsOpen(t *testing.T) {
	g := openGate(t)

	on, err := g.IsEnabled(context.Background())
	if err != nil {
		t.Fatalf("IsEnabled: %v", err)
	}
	if !on {
		t.Error("IsEnabled() = false on fresh store, want true")
	}
}

func TestSetEnabled_RoundTrip(t *testing.T) {
	g := openGate(t)
	ctx := context.Background()

	f, err := g.SetEnabled(ctx, false)
	if err != nil {
		t.Fatalf("SetEnabled(false): %v", err)
	}
	if f.Enabled {
		t.Error("returned flag still enabled")
	}
	if on, _ := g.IsEnabled(ctx); on {
		t.Error("IsEnabled() = true after disabling")
	}

	// Idempotent.
	if _, err := g.SetEnabled(ctx, false); err != nil {
		t.Fatalf("second SetEnabled(false): %v", err)
	}
	if on, _ := g.IsEnabled(ctx); on {
		t.Error("IsEnabled() = true after second disable")
	}

	if _, err := g.SetEnabled(ctx, true); err != nil {
		t.Fatalf("SetEnabled(true): %v", err)
	}
	if on, _ := g.IsEnabled(ctx); !on {
		t.Error("IsEnabled() = false after enabling")
	}
}
