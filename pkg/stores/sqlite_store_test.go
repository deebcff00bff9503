package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xbuild/xbuild/pkg/engine"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testPlan(runID, project string, resolvedAt time.Time) *engine.PlanSnapshot {
	return &engine.PlanSnapshot{
		RunID:      runID,
		Project:    project,
		Folder:     "/work/" + project,
		Generator:  "make",
		ResolvedAt: resolvedAt,
		Configurations: []engine.ConfigurationSnapshot{
			{
				Name:          "debug",
				Target:        "stm32f4",
				Profiles:      []string{"debug"},
				Toolchain:     "arm-none-eabi-gcc",
				Language:      "c",
				Tool:          engine.ToolSnapshot{Name: "cLinker", Type: "linker"},
				Artefact:      engine.ArtefactSnapshot{Type: "executable", Name: project, FullName: project + ".elf"},
				SourceFolders: []string{"/work/src", "/work/app"},
				AddSymbols:    []string{"DEBUG"},
			},
			{
				Name:          "release",
				Target:        "stm32f4",
				Profiles:      []string{"release"},
				Toolchain:     "gcc",
				Language:      "c++",
				Tool:          engine.ToolSnapshot{Name: "cppLinker", Type: "linker"},
				Artefact:      engine.ArtefactSnapshot{Type: "executable", Name: project, FullName: project},
				SourceFolders: []string{"/work/src"},
			},
		},
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "xbuild.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	// Migrating twice is a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to re-run migrations: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected an error for an empty path")
	}

	store, err := NewSQLiteStore(Config{Path: MemoryPath, MaxOpenConns: 10})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if store.cfg.MaxOpenConns != 1 {
		t.Errorf("expected a single connection for an in-memory store, got %d", store.cfg.MaxOpenConns)
	}

	uninit, _ := NewSQLiteStore(Config{Path: "x.db"})
	if err := uninit.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check to fail before Init")
	}
	if err := uninit.Migrate(context.Background()); err == nil {
		t.Error("expected migrate to fail before Init")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"runs", "configurations"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestSavePlan_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	resolvedAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	plan := testPlan("run-1", "blinky", resolvedAt)
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}

	got, err := store.GetPlan(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get plan: %v", err)
	}
	if got.Project != "blinky" || got.Generator != "make" {
		t.Errorf("unexpected plan header: %+v", got)
	}
	if !got.ResolvedAt.Equal(resolvedAt) {
		t.Errorf("expected resolved at %v, got %v", resolvedAt, got.ResolvedAt)
	}
	debug, ok := got.Configuration("debug")
	if !ok {
		t.Fatal("expected debug configuration in stored plan")
	}
	if debug.Artefact.FullName != "blinky.elf" {
		t.Errorf("expected artefact blinky.elf, got %s", debug.Artefact.FullName)
	}
	if len(debug.AddSymbols) != 1 || debug.AddSymbols[0] != "DEBUG" {
		t.Errorf("expected symbols to survive, got %v", debug.AddSymbols)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != RunStatusResolved {
		t.Errorf("expected status resolved, got %s", run.Status)
	}
	if run.Error != nil {
		t.Errorf("expected no error, got %q", *run.Error)
	}

	configs, err := store.ListConfigurations(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to list configurations: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 configurations, got %d", len(configs))
	}
	if configs[0].Name != "debug" || configs[0].Tool != "cLinker" || configs[0].SourceCount != 2 {
		t.Errorf("unexpected debug record: %+v", configs[0])
	}
	if configs[1].Name != "release" || configs[1].Toolchain != "gcc" {
		t.Errorf("unexpected release record: %+v", configs[1])
	}
}

func TestSavePlan_Invalid(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SavePlan(ctx, nil); err == nil {
		t.Error("expected an error for a nil plan")
	}
	if err := store.SavePlan(ctx, &engine.PlanSnapshot{Project: "p"}); err == nil {
		t.Error("expected an error for a plan without a run ID")
	}

	plan := testPlan("run-dup", "p", time.Now())
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}
	if err := store.SavePlan(ctx, plan); err == nil {
		t.Error("expected an error when saving the same run twice")
	}

	configs, err := store.ListConfigurations(ctx, "run-dup")
	if err != nil {
		t.Fatalf("failed to list configurations: %v", err)
	}
	if len(configs) != 2 {
		t.Errorf("expected the failed save to leave 2 configurations, got %d", len(configs))
	}
}

func TestLatestPlan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		if err := store.SavePlan(ctx, testPlan(id, "blinky", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("failed to save plan %s: %v", id, err)
		}
	}
	if err := store.SavePlan(ctx, testPlan("other", "other", base.Add(5*time.Hour))); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}
	msg := "Target 'x' not defined"
	failure := &Run{ID: "broken", Project: "blinky", Folder: "/work/blinky", Error: &msg, ResolvedAt: base.Add(10 * time.Hour)}
	if err := store.SaveFailure(ctx, failure); err != nil {
		t.Fatalf("failed to save failure: %v", err)
	}

	latest, err := store.LatestPlan(ctx, "blinky")
	if err != nil {
		t.Fatalf("failed to get latest plan: %v", err)
	}
	if latest.RunID != "new" {
		t.Errorf("expected latest run 'new', got %s", latest.RunID)
	}

	_, err = store.LatestPlan(ctx, "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	if _, err := store.GetPlan(ctx, "broken"); err == nil {
		t.Error("expected an error reading the plan of a failed run")
	}
}

func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	plans := []struct {
		id      string
		project string
	}{
		{"r1", "blinky"},
		{"r2", "blinky"},
		{"r3", "other"},
	}
	for i, p := range plans {
		if err := store.SavePlan(ctx, testPlan(p.id, p.project, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("failed to save plan %s: %v", p.id, err)
		}
	}

	tests := []struct {
		name    string
		project string
		limit   int
		offset  int
		want    []string
	}{
		{name: "all", limit: 10, want: []string{"r3", "r2", "r1"}},
		{name: "by project", project: "blinky", limit: 10, want: []string{"r2", "r1"}},
		{name: "paged", limit: 1, offset: 1, want: []string{"r2"}},
		{name: "unknown project", project: "none", limit: 10, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListRuns(ctx, tt.project, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("failed to list runs: %v", err)
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("expected %d runs, got %d", len(tt.want), len(runs))
			}
			for i, id := range tt.want {
				if runs[i].ID != id {
					t.Errorf("run %d: expected %s, got %s", i, id, runs[i].ID)
				}
			}
		})
	}
}

func TestDeleteRun_Cascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SavePlan(ctx, testPlan("run-1", "blinky", time.Now())); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}

	if err := store.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	if _, err := store.GetRun(ctx, "run-1"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound after delete, got %v", err)
	}

	configs, err := store.ListConfigurations(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to list configurations: %v", err)
	}
	if len(configs) != 0 {
		t.Errorf("expected configurations to be deleted with the run, got %d", len(configs))
	}

	if err := store.DeleteRun(ctx, "run-1"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound deleting twice, got %v", err)
	}
}

func TestFindByToolchain(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SavePlan(ctx, testPlan("r1", "blinky", base)); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}
	if err := store.SavePlan(ctx, testPlan("r2", "blinky", base.Add(time.Hour))); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}

	records, err := store.FindByToolchain(ctx, "arm-none-eabi-gcc", 10)
	if err != nil {
		t.Fatalf("failed to find configurations: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RunID != "r2" {
		t.Errorf("expected newest run first, got %s", records[0].RunID)
	}
	for _, rec := range records {
		if rec.Name != "debug" {
			t.Errorf("expected only debug configurations, got %s", rec.Name)
		}
	}

	records, err = store.FindByToolchain(ctx, "arm-none-eabi-gcc", 1)
	if err != nil {
		t.Fatalf("failed to find configurations: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected limit to apply, got %d", len(records))
	}
}
