package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"calibrations", "sessions", "settings", "schema_migrations"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	version, dirty, err := s.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != 3 || dirty {
		t.Errorf("schema version = %d (dirty %v), want 3 clean", version, dirty)
	}
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.Settings().Set(SettingClickMode, "fist"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Settings().Get(SettingClickMode)
	if err != nil || got != "fist" {
		t.Errorf("Get after reopen = %q, %v; want fist", got, err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestCalibrationRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Calibrations()

	desk := &Calibration{Name: "desk", A: r2.Vec{X: 0.2, Y: 0.2}, B: r2.Vec{X: 0.8, Y: 0.8}}
	sofa := &Calibration{Name: "sofa", A: r2.Vec{X: 0.3, Y: 0.1}, B: r2.Vec{X: 0.7, Y: 0.6}}
	for _, c := range []*Calibration{desk, sofa} {
		if err := repo.Create(c); err != nil {
			t.Fatalf("Create(%s): %v", c.Name, err)
		}
		if c.ID == "" {
			t.Fatalf("Create(%s) did not assign an id", c.Name)
		}
	}

	if err := repo.Create(&Calibration{Name: "desk"}); err == nil {
		t.Error("duplicate name should fail")
	}

	got, err := repo.Get(desk.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "desk" || got.A != desk.A || got.B != desk.B || got.Active {
		t.Errorf("Get = %+v, want %+v", got, desk)
	}

	if _, err := repo.Active(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Active with none active: err = %v, want ErrNotFound", err)
	}

	if err := repo.Activate(desk.ID); err != nil {
		t.Fatalf("Activate(desk): %v", err)
	}
	if err := repo.Activate(sofa.ID); err != nil {
		t.Fatalf("Activate(sofa): %v", err)
	}
	active, err := repo.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active.ID != sofa.ID {
		t.Errorf("Active = %s, want sofa", active.Name)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d profiles, want 2", len(list))
	}
	activeCount := 0
	for _, c := range list {
		if c.Active {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("%d active profiles, want exactly 1", activeCount)
	}

	if err := repo.Activate("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Activate(missing) = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(desk.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(desk.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if _, err := repo.Get(desk.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository(t *testing.T) {
	s := newTestStore(t)
	sessions := s.Sessions()

	cal := &Calibration{Name: "desk", A: r2.Vec{X: 0.1, Y: 0.1}, B: r2.Vec{X: 0.9, Y: 0.9}}
	if err := s.Calibrations().Create(cal); err != nil {
		t.Fatalf("Create calibration: %v", err)
	}

	first, err := sessions.Start("pinch", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := sessions.Start("fist", cal.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	stats := Stats{Frames: 120, Clicks: 3, DoubleClicks: 1, Drags: 2, Denied: 1, ReadErrors: 4, DetectErrors: 5}
	if err := sessions.Finish(first.ID, stats); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := sessions.Finish("missing", stats); !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish(missing) = %v, want ErrNotFound", err)
	}

	got, err := sessions.Get(first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Stats != stats || got.EndedAt == nil || got.Mode != "pinch" {
		t.Errorf("Get = %+v, want finished pinch session with %+v", got, stats)
	}

	list, err := sessions.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("List = %+v, want newest first", list)
	}
	if list[0].EndedAt != nil {
		t.Error("unfinished session should have no end time")
	}

	limited, err := sessions.List(1)
	if err != nil || len(limited) != 1 {
		t.Errorf("List(1) = %d sessions, %v", len(limited), err)
	}

	// Deleting the calibration keeps the session but clears the reference.
	if err := s.Calibrations().Delete(cal.ID); err != nil {
		t.Fatalf("Delete calibration: %v", err)
	}
	got, err = sessions.Get(second.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CalibrationID != "" {
		t.Errorf("CalibrationID = %q after delete, want empty", got.CalibrationID)
	}

	if _, err := sessions.Start("wave", ""); err == nil {
		t.Error("unknown mode should violate the check constraint")
	}
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	settings := s.Settings()

	if _, err := settings.Get(SettingClickMode); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty = %v, want ErrNotFound", err)
	}
	for _, v := range []string{"pinch", "fist"} {
		if err := settings.Set(SettingClickMode, v); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := settings.Get(SettingClickMode)
		if err != nil || got != v {
			t.Errorf("Get = %q, %v; want %q", got, err, v)
		}
	}
}
