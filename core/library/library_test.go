package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	playback "github.com/koscakluka/cognitive-os/core"
	"github.com/koscakluka/cognitive-os/internal/sqlitedb"
)

var _ playback.ProgressUpdater = (*Library)(nil)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func openTestLibrary(t *testing.T) *Library {
	t.Helper()

	clock := &stepClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	lib, err := Open(sqlitedb.MemoryPath, withClock(clock.Now))
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

func TestAddFillsDefaults(t *testing.T) {
	lib := openTestLibrary(t)

	added, err := lib.Add(context.Background(), Material{Title: "Neuroscience", ModulesCount: 3, RawText: "neurons"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ID == "" || added.CoverColor != DefaultCoverColor || added.Status != StatusNew {
		t.Fatalf("expected defaults to be filled, got %+v", added)
	}

	got, err := lib.Get(context.Background(), added.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Neuroscience" || got.ModulesCount != 3 || got.RawText != "neurons" || got.Progress != 0 {
		t.Fatalf("unexpected stored material %+v", got)
	}
	if !got.LastAccessed.Equal(added.LastAccessed) {
		t.Fatalf("expected last accessed %v, got %v", added.LastAccessed, got.LastAccessed)
	}
}

func TestGetMissingMaterial(t *testing.T) {
	lib := openTestLibrary(t)
	if _, err := lib.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)

	first, _ := lib.Add(ctx, Material{ID: "first", Title: "First"})
	if _, err := lib.Add(ctx, Material{ID: "second", Title: "Second"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	list, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "second" || list[1].ID != "first" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	// progress touches the material
	if err := lib.UpdateProgress(ctx, first.ID, 10); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	list, _ = lib.List(ctx)
	if list[0].ID != "first" {
		t.Fatalf("expected touched material first, got %+v", list)
	}
}

func TestUpdateProgress(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)
	m, _ := lib.Add(ctx, Material{ID: "m-1", Title: "Law"})

	tests := []struct {
		percent      int
		wantProgress int
		wantStatus   MaterialStatus
	}{
		{45, 45, StatusInProgress},
		{-10, 0, StatusInProgress},
		{100, 100, StatusCompleted},
		{250, 100, StatusCompleted},
	}

	for _, tt := range tests {
		if err := lib.UpdateProgress(ctx, m.ID, tt.percent); err != nil {
			t.Fatalf("update progress %d: %v", tt.percent, err)
		}
		got, _ := lib.Get(ctx, m.ID)
		if got.Progress != tt.wantProgress || got.Status != tt.wantStatus {
			t.Fatalf("progress %d: expected %d/%s, got %d/%s", tt.percent, tt.wantProgress, tt.wantStatus, got.Progress, got.Status)
		}
	}
}

func TestUpdateProgressUnknownMaterial(t *testing.T) {
	lib := openTestLibrary(t)
	if err := lib.UpdateProgress(context.Background(), "nope", 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestToggleFavorite(t *testing.T) {
	ctx := context.Background()
	lib := openTestLibrary(t)
	m, _ := lib.Add(ctx, Material{Title: "Biology"})

	favorite, err := lib.ToggleFavorite(ctx, m.ID)
	if err != nil || !favorite {
		t.Fatalf("expected favorite after first toggle, got %v %v", favorite, err)
	}
	favorite, err = lib.ToggleFavorite(ctx, m.ID)
	if err != nil || favorite {
		t.Fatalf("expected not favorite after second toggle, got %v %v", favorite, err)
	}
	if _, err := lib.ToggleFavorite(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLibrarySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library.db")

	lib, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m, _ := lib.Add(ctx, Material{Title: "History"})
	_ = lib.UpdateProgress(ctx, m.ID, 100)
	_ = lib.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Status != StatusCompleted || got.Progress != 100 {
		t.Fatalf("expected completed material after reopen, got %+v", got)
	}
}
