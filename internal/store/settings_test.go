package store

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSettingsRepository_SetGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if err := repo.Set("camera", "1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := repo.Get("camera")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "1" {
		t.Errorf("Get() = %q, want %q", got, "1")
	}
}

func TestSettingsRepository_SetOverwrites(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if err := repo.Set("threshold", "0.1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set("threshold", "0.3"); err != nil {
		t.Fatalf("second Set() error = %v", err)
	}

	got, err := repo.Get("threshold")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "0.3" {
		t.Errorf("Get() = %q, want %q", got, "0.3")
	}

	settings, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(settings) != 1 {
		t.Errorf("List() returned %d settings, want 1", len(settings))
	}
}

func TestSettingsRepository_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Settings().Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSettingsRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if err := repo.Set("skeleton", "true"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Delete("skeleton"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get("skeleton"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete("skeleton"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() should return ErrNotFound, got %v", err)
	}
}

func TestSettingsRepository_ListOrdered(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	for _, kv := range [][2]string{{"title", "Pose"}, {"camera", "0"}, {"radius", "7"}} {
		if err := repo.Set(kv[0], kv[1]); err != nil {
			t.Fatalf("Set(%q) error = %v", kv[0], err)
		}
	}

	settings, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var keys []string
	for _, setting := range settings {
		keys = append(keys, setting.Key)
		if setting.UpdatedAt.IsZero() {
			t.Errorf("setting %q has zero UpdatedAt", setting.Key)
		}
	}
	if diff := cmp.Diff([]string{"camera", "radius", "title"}, keys); diff != "" {
		t.Errorf("List() keys mismatch (-want +got):\n%s", diff)
	}
}

func TestSettingsRepository_All(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	all, err := repo.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("All() on empty store = %v, want empty", all)
	}

	repo.Set("camera", "2")
	repo.Set("posture", "false")

	all, err = repo.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	want := map[string]string{"camera": "2", "posture": "false"}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
}
