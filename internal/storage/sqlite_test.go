package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
	if len(v1) != 2 {
		t.Errorf("applied %d migrations, want 2", len(v1))
	}
}

func TestTurns_NewestFirstAndPerUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if _, err := s.AppendTurn(ctx, "alice", fmt.Sprintf("m%d", i), fmt.Sprintf("r%d", i)); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	if _, err := s.AppendTurn(ctx, "bob", "bob says", "hi bob"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	turns, err := s.ListRecentTurns(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ListRecentTurns: %v", err)
	}
	if len(turns) != 10 {
		t.Fatalf("got %d turns, want 10", len(turns))
	}
	if turns[0].Message != "m11" {
		t.Errorf("turns[0].Message = %q, want m11", turns[0].Message)
	}
	if turns[9].Message != "m2" {
		t.Errorf("turns[9].Message = %q, want m2", turns[9].Message)
	}
	for _, tr := range turns {
		if tr.UserID != "alice" {
			t.Errorf("leaked turn from user %q", tr.UserID)
		}
	}

	bob, err := s.ListRecentTurns(ctx, "bob", 10)
	if err != nil {
		t.Fatalf("ListRecentTurns(bob): %v", err)
	}
	if len(bob) != 1 || bob[0].Response != "hi bob" {
		t.Errorf("bob turns = %+v", bob)
	}
}

func TestTurns_Prune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.AppendTurn(ctx, "u", fmt.Sprintf("m%d", i), "r")
	}
	removed, err := s.PruneTurns(ctx, "u", 2)
	if err != nil {
		t.Fatalf("PruneTurns: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	n, _ := s.CountTurns(ctx, "u")
	if n != 2 {
		t.Errorf("CountTurns = %d, want 2", n)
	}
	turns, _ := s.ListRecentTurns(ctx, "u", 10)
	if turns[0].Message != "m4" || turns[1].Message != "m3" {
		t.Errorf("kept wrong turns: %+v", turns)
	}
}

func TestFaq_AddNormalizesAndLists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.AddFaqEntry(ctx, "  How do I   reset\nmy password? ", " Go to Settings. ", SourceManual)
	if err != nil {
		t.Fatalf("AddFaqEntry: %v", err)
	}
	if e.Question != "How do I reset my password?" {
		t.Errorf("Question = %q", e.Question)
	}
	if e.Answer != "Go to Settings." {
		t.Errorf("Answer = %q", e.Answer)
	}

	if _, err := s.AddFaqEntry(ctx, "Q2", "A2", SourcePDF); err != nil {
		t.Fatalf("AddFaqEntry: %v", err)
	}

	all, err := s.ListFaqEntries(ctx)
	if err != nil {
		t.Fatalf("ListFaqEntries: %v", err)
	}
	if len(all) != 2 || all[0].ID != e.ID {
		t.Fatalf("ListFaqEntries = %+v", all)
	}

	pdf, err := s.ListFaqEntriesBySource(ctx, SourcePDF)
	if err != nil {
		t.Fatalf("ListFaqEntriesBySource: %v", err)
	}
	if len(pdf) != 1 || pdf[0].Question != "Q2" {
		t.Errorf("ListFaqEntriesBySource = %+v", pdf)
	}
}

func TestFaq_RejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		question string
		answer   string
		source   FaqSource
	}{
		{"blank question", "   ", "A", SourceManual},
		{"blank answer", "Q", "\n\t", SourceManual},
		{"unknown source", "Q", "A", FaqSource("wiki")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.AddFaqEntry(ctx, tc.question, tc.answer, tc.source)
			if !errors.Is(err, ErrInvalidFaq) {
				t.Errorf("err = %v, want ErrInvalidFaq", err)
			}
		})
	}
}

func TestFaq_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, _ := s.AddFaqEntry(ctx, "Q", "A", SourceConversation)
	if err := s.DeleteFaqEntry(ctx, e.ID); err != nil {
		t.Fatalf("DeleteFaqEntry: %v", err)
	}
	if _, err := s.GetFaqEntry(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFaqEntry after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteFaqEntry(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestFlag_LazyCreateAndWrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f, err := s.ReadFlag(ctx)
	if err != nil {
		t.Fatalf("ReadFlag: %v", err)
	}
	if f != nil {
		t.Fatalf("ReadFlag on fresh db = %+v, want nil", f)
	}

	got, err := s.EnsureFlag(ctx, true)
	if err != nil {
		t.Fatalf("EnsureFlag: %v", err)
	}
	if !got.Enabled {
		t.Error("EnsureFlag default should be enabled")
	}

	before := got.UpdatedAt
	time.Sleep(2 * time.Millisecond)
	w, err := s.WriteFlag(ctx, false)
	if err != nil {
		t.Fatalf("WriteFlag: %v", err)
	}
	if w.Enabled || !w.UpdatedAt.After(before) {
		t.Errorf("WriteFlag = %+v, want disabled with newer timestamp", w)
	}

	// EnsureFlag never overwrites an existing value.
	again, err := s.EnsureFlag(ctx, true)
	if err != nil {
		t.Fatalf("EnsureFlag: %v", err)
	}
	if again.Enabled {
		t.Error("EnsureFlag overwrote existing disabled flag")
	}
}

func TestFlag_ConcurrentEnsure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.EnsureFlag(ctx, true); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent EnsureFlag: %v", err)
	}
}

func TestJobs_ClaimCompleteFail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j1", Type: JobFaqExtract, PayloadJSON: `{}`, MaxAttempts: 2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	j, err := s.ClaimNextJob(ctx, []string{JobFaqLearn})
	if err != nil || j != nil {
		t.Fatalf("claim of other type = %v, %v; want nil, nil", j, err)
	}

	j, err = s.ClaimNextJob(ctx, []string{JobFaqExtract})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if j == nil || j.ID != "j1" || j.Status != "running" {
		t.Fatalf("claimed = %+v", j)
	}

	if err := s.FailJob(ctx, "j1", "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	got, _ := s.GetJob(ctx, "j1")
	if got.Status != "pending" || got.Attempts != 1 || got.LastError != "boom" {
		t.Errorf("after first failure: %+v", got)
	}

	if err := s.FailJob(ctx, "j1", "boom again"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	got, _ = s.GetJob(ctx, "j1")
	if got.Status != "failed" {
		t.Errorf("status = %q, want failed", got.Status)
	}

	if err := s.CompleteJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}
