package receipt

import (
	"errors"
	"testing"
	"time"

	"github.com/stelligent/mu-formula/formula"
)

func TestStore_SaveLoad(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())
	r, err := formula.Default().Resolve(formula.Linux, formula.Devel)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 10, 18, 9, 30, 15, 999, time.UTC)
	want := New(r, "/home/u/.local/bin/mu-cli", now)

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load("mu-cli")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.InstalledAt.Equal(want.InstalledAt) {
		t.Errorf("InstalledAt = %v, want %v", got.InstalledAt, want.InstalledAt)
	}
	got.InstalledAt = want.InstalledAt
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if got.Version != "v1.1.1-develop" || got.Channel != "devel" {
		t.Errorf("receipt = %+v", got)
	}
	if !got.Matches(r) {
		t.Error("Matches() = false for the resolved artifact")
	}
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()
	_, err := NewStore(t.TempDir()).Load("mu-cli")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())
	r, _ := formula.Default().Resolve(formula.MacOS, formula.Stable)
	if err := s.Save(New(r, "/bin/mu-cli", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("mu-cli"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load("mu-cli"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete("mu-cli"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestReceipt_Matches(t *testing.T) {
	t.Parallel()
	f := formula.Default()
	stable, _ := f.Resolve(formula.Linux, formula.Stable)
	devel, _ := f.Resolve(formula.Linux, formula.Devel)
	rc := New(stable, "/bin/mu-cli", time.Now())

	if !rc.Matches(stable) {
		t.Error("Matches(stable) = false")
	}
	if rc.Matches(devel) {
		t.Error("Matches(devel) = true for a stable receipt")
	}
}
