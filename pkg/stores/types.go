package stores

import (
	"context"
	"errors"
	"time"

	"github.com/xbuild/xbuild/pkg/engine"
)

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("run not found")

// RunStatus represents the outcome of a resolution run
type RunStatus string

const (
	RunStatusResolved RunStatus = "resolved"
	RunStatusFailed   RunStatus = "failed"
)

// Run represents a stored resolution run
type Run struct {
	ID         string    `json:"id"`
	Project    string    `json:"project"`
	Folder     string    `json:"folder"`
	Generator  string    `json:"generator,omitempty"`
	Status     RunStatus `json:"status"`
	Error      *string   `json:"error,omitempty"`
	Snapshot   string    `json:"snapshot"` // JSON blob of engine.PlanSnapshot
	ResolvedAt time.Time `json:"resolved_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConfigurationRecord is the indexed summary of one resolved configuration
type ConfigurationRecord struct {
	RunID       string `json:"run_id"`
	Name        string `json:"name"`
	Target      string `json:"target"`
	Toolchain   string `json:"toolchain"`
	Tool        string `json:"tool"`
	Artefact    string `json:"artefact"`
	SourceCount int    `json:"source_count"`
	Snapshot    string `json:"snapshot"` // JSON blob of engine.ConfigurationSnapshot
}

// Store defines the persistence operations for resolution runs
type Store interface {
	engine.PlanStore

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	SaveFailure(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	GetPlan(ctx context.Context, runID string) (*engine.PlanSnapshot, error)
	ListRuns(ctx context.Context, project string, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Configuration operations
	ListConfigurations(ctx context.Context, runID string) ([]*ConfigurationRecord, error)
	FindByToolchain(ctx context.Context, toolchain string, limit int) ([]*ConfigurationRecord, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
