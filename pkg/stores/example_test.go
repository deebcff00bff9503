package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/xbuild/xbuild/pkg/engine"
	"github.com/xbuild/xbuild/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            stores.MemoryPath,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_SavePlan demonstrates persisting a resolved plan and
// reading back the latest one for the project.
func ExampleSQLiteStore_SavePlan() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	plan := &engine.PlanSnapshot{
		RunID:      "run-001",
		Project:    "blinky",
		Folder:     "/work/blinky",
		ResolvedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Configurations: []engine.ConfigurationSnapshot{
			{
				Name:      "debug",
				Target:    "stm32f4",
				Toolchain: "arm-none-eabi-gcc",
				Tool:      engine.ToolSnapshot{Name: "cLinker", Type: "linker"},
				Artefact:  engine.ArtefactSnapshot{Type: "executable", FullName: "blinky.elf"},
			},
		},
	}

	if err := store.SavePlan(ctx, plan); err != nil {
		log.Fatal(err)
	}

	latest, err := store.LatestPlan(ctx, "blinky")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Latest run: %s\n", latest.RunID)
	fmt.Printf("Artefact: %s\n", latest.Configurations[0].Artefact.FullName)
	// Output:
	// Latest run: run-001
	// Artefact: blinky.elf
}

// ExampleSQLiteStore_FindByToolchain demonstrates querying configurations
// by the toolchain they were resolved with.
func ExampleSQLiteStore_FindByToolchain() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	_ = store.SavePlan(ctx, &engine.PlanSnapshot{
		RunID:      "run-001",
		Project:    "blinky",
		Folder:     "/work/blinky",
		ResolvedAt: time.Now(),
		Configurations: []engine.ConfigurationSnapshot{
			{Name: "debug", Toolchain: "gcc", Tool: engine.ToolSnapshot{Name: "cLinker"}},
			{Name: "host", Toolchain: "clang", Tool: engine.ToolSnapshot{Name: "cppLinker"}},
		},
	})

	records, err := store.FindByToolchain(ctx, "clang", 10)
	if err != nil {
		log.Fatal(err)
	}

	for _, rec := range records {
		fmt.Printf("%s/%s uses %s\n", rec.RunID, rec.Name, rec.Tool)
	}
	// Output: run-001/host uses cppLinker
}
