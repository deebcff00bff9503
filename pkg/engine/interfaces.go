package engine

import "context"

// Cache names reported to a CacheObserver.
const (
	CacheToolchains = "toolchains"
	CacheDiscovery  = "discovery"
	CacheFiles      = "files"
)

// CacheObserver receives the outcome of lookups in the resolution caches.
type CacheObserver interface {
	// ObserveCacheLookup is called once per lookup with hit=true when the
	// memoized value was returned without any work.
	ObserveCacheLookup(cache string, hit bool)
}

// NopCacheObserver discards all observations.
type NopCacheObserver struct{}

// ObserveCacheLookup implements CacheObserver.
func (NopCacheObserver) ObserveCacheLookup(string, bool) {}

// Lineage is implemented by anything with a toolchain ancestry chain.
type Lineage interface {
	// DerivesFrom reports whether name appears in the self -> parent -> ... chain.
	DerivesFrom(name string) bool

	// Ancestry returns the chain names, root ancestor first and self last.
	Ancestry() []string
}

// PlanStore persists resolved plans for downstream builders.
type PlanStore interface {
	// SavePlan persists a plan snapshot.
	SavePlan(ctx context.Context, plan *PlanSnapshot) error

	// LatestPlan returns the most recent plan snapshot for a project.
	LatestPlan(ctx context.Context, project string) (*PlanSnapshot, error)
}

// PlanChecker evaluates policies against a resolved plan.
type PlanChecker interface {
	// CheckPlan returns the violations found in the plan.
	CheckPlan(ctx context.Context, plan *PlanSnapshot) (*CheckResult, error)
}
