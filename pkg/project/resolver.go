package project

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/xbuild/xbuild/pkg/config"
	"github.com/xbuild/xbuild/pkg/deps"
	"github.com/xbuild/xbuild/pkg/engine"
	"github.com/xbuild/xbuild/pkg/options"
	"github.com/xbuild/xbuild/pkg/telemetry"
	"github.com/xbuild/xbuild/pkg/toolchain"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithMetrics records resolutions and cache lookups into m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithTracer opens load and configuration spans on t instead of the
// global tracer provider.
func WithTracer(t *telemetry.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = t
	}
}

// WithFileCache shares an existing file cache.
func WithFileCache(cache *config.FileCache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

type runIDKey struct{}

// ContextWithRunID makes Resolve use id as the plan run ID.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Resolver loads projects and resolves their configurations into plans.
// It owns the caches shared by every load: descriptor files, toolchains
// and dependency discoveries.
type Resolver struct {
	mu sync.Mutex

	cache      *config.FileCache
	parser     *config.Parser
	registry   *toolchain.Registry
	discoverer *deps.Discoverer

	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	log     *telemetry.Logger
}

// NewResolver creates a resolver with empty caches.
func NewResolver(logger zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		log: telemetry.WrapLogger(logger.With().Str("component", "resolver").Logger()),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = config.NewFileCache()
	}
	if r.tracer == nil {
		r.tracer = telemetry.GlobalTracer("github.com/xbuild/xbuild/pkg/project")
	}

	r.parser = config.NewParser(r.cache, logger)
	r.registry = toolchain.NewRegistry(logger)
	r.discoverer = deps.NewDiscoverer(r.parser, logger)

	if r.metrics != nil {
		r.cache.SetObserver(r.metrics)
		r.registry.SetObserver(r.metrics)
		r.discoverer.SetObserver(r.metrics)
	}
	return r
}

// Registry returns the toolchain registry.
func (r *Resolver) Registry() *toolchain.Registry {
	return r.registry
}

// Parser returns the descriptor parser.
func (r *Resolver) Parser() *config.Parser {
	return r.parser
}

// Clear drops every cache, so the next Load reads the file system again.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Clear()
	r.registry.Clear()
	r.discoverer.Clear()
}

// Load parses the project in folder, registers its toolchains, discovers
// its dependencies and builds its targets, profiles and configurations.
func (r *Resolver) Load(ctx context.Context, folder string) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, folder)
}

func (r *Resolver) load(ctx context.Context, folder string) (*Project, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, engine.NewIOError("failed to resolve project folder", err).WithSubject(folder)
	}

	ctx, span := r.tracer.StartSpan(ctx, "project.load", telemetry.AttrProjectFolder.String(abs))
	defer span.End()

	p, err := r.build(ctx, abs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(telemetry.AttrProjectName.String(p.Name))
	telemetry.RecordSuccess(span)
	return p, nil
}

func (r *Resolver) build(ctx context.Context, folder string) (*Project, error) {
	pd, err := r.parser.LoadProject(folder)
	if err != nil {
		return nil, err
	}
	for _, field := range pd.Ignored {
		telemetry.AddWarningEvent(trace.SpanFromContext(ctx), "Ignored descriptor field", field)
	}

	// Project toolchains may override the built-in ones.
	r.registry.Clear()
	if err := r.registry.LoadAssets(); err != nil {
		return nil, err
	}
	if err := r.registry.LoadDefinitions(pd.Toolchains, pd.ToolOrder); err != nil {
		return nil, err
	}

	discovered, err := r.discoverer.DiscoverPacks(ctx, folder)
	if err != nil {
		if !engine.IsSchema(err) || engine.CodeOf(err) != engine.ErrCodeNotPackage {
			return nil, err
		}
		r.log.WithField("folder", folder).Debug("Project is not an xPack, no dependencies")
		discovered = &deps.Result{Root: folder}
	}
	r.metrics.SetDiscoveredPackages(len(discovered.Packages))

	p := &Project{
		Name:           r.projectName(pd),
		Folder:         folder,
		Descriptor:     pd,
		Common:         absolute(folder, pd.Common),
		Targets:        make(map[string]*Target, len(pd.Targets)),
		Profiles:       make(map[string]*Profile, len(pd.Profiles)),
		Configurations: make(map[string]*Configuration, len(pd.Configurations)),
		Discovered:     discovered,
		Commands:       pd.Commands,
	}
	for name, cd := range pd.Targets {
		p.Targets[name] = &Target{Name: name, Common: absolute(folder, cd)}
	}
	for name, cd := range pd.Profiles {
		p.Profiles[name] = &Profile{Name: name, Common: absolute(folder, cd)}
	}

	for _, name := range options.SortedKeys(pd.Configurations) {
		c, err := r.newConfiguration(p, pd.Configurations[name])
		if err != nil {
			return nil, err
		}
		p.Configurations[name] = c
	}

	zl := r.log.WithProject(p.Name, folder).Zerolog()
	zl.Info().
		Int("configurations", len(p.Configurations)).
		Int("packages", len(discovered.Packages)).
		Msg("Project loaded")

	return p, nil
}

// projectName is the descriptor name, else the root package name, else the
// folder name.
func (r *Resolver) projectName(pd *config.ProjectDescriptor) string {
	if pd.Name != "" {
		return pd.Name
	}
	if pkg, err := r.parser.ParsePackage(pd.Folder); err == nil && pkg.Name != "" {
		return pkg.Name
	}
	return filepath.Base(pd.Folder)
}

func (r *Resolver) newConfiguration(p *Project, cd *config.ConfigurationDescriptor) (*Configuration, error) {
	target, ok := p.Targets[cd.Target]
	if !ok {
		return nil, undefined("Target", cd.Target, cd.Name)
	}

	profiles := make([]*Profile, 0, len(cd.Profiles))
	for _, name := range cd.Profiles {
		profile, ok := p.Profiles[name]
		if !ok {
			return nil, undefined("Profile", name, cd.Name)
		}
		profiles = append(profiles, profile)
	}

	tc, err := r.registry.Retrieve(cd.Toolchain)
	if err != nil {
		var ee *engine.EngineError
		if errors.As(err, &ee) && ee.Class == engine.ErrorClassReference && ee.Subject == cd.Toolchain {
			return nil, undefined("Toolchain", cd.Toolchain, cd.Name)
		}
		return nil, err
	}

	return &Configuration{
		Name:      cd.Name,
		Project:   p,
		Target:    target,
		Profiles:  profiles,
		Toolchain: tc,
		Common:    absolute(p.Folder, cd.CommonDescriptor),
	}, nil
}

func undefined(kind, name, configuration string) error {
	return engine.NewReferenceError(
		fmt.Sprintf("%s '%s' not defined, referred by configuration '%s'", kind, name, configuration), nil,
	).WithCode(engine.ErrCodeNotDefined).WithSubject(name).WithDetail("configuration", configuration)
}

// Resolve loads the project in folder and prepares the named
// configurations, or all of them when no name is given.
func (r *Resolver) Resolve(ctx context.Context, folder string, names ...string) (*Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.load(ctx, folder)
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		names = p.ConfigurationNames()
	}

	plan := &Plan{
		RunID:   runIDFrom(ctx),
		Project: p,
	}
	for _, name := range names {
		c, err := p.Configuration(name)
		if err != nil {
			return nil, err
		}
		if err := r.prepare(ctx, c); err != nil {
			return nil, err
		}
		plan.Configurations = append(plan.Configurations, c)
	}
	plan.ResolvedAt = time.Now().UTC()

	zl := r.log.WithRunID(plan.RunID).WithProject(p.Name, p.Folder).Zerolog()
	zl.Debug().
		Strs("configurations", names).
		Msg("Plan resolved")

	return plan, nil
}

func (r *Resolver) prepare(ctx context.Context, c *Configuration) error {
	_, span := r.tracer.StartConfigurationSpan(ctx, c.Name, c.Toolchain.Name)
	defer span.End()
	span.SetAttributes(telemetry.AttrTarget.String(c.Target.Name))

	log := r.log.WithConfiguration(c.Name).WithToolchain(c.Toolchain.Name)

	timer := telemetry.NewTimer()
	err := c.Prepare()
	if err != nil {
		telemetry.RecordError(span, err)
		r.metrics.RecordResolution(c.Toolchain.Name, "failed", timer.Duration())
		log.WithError(err).Debug("Configuration failed")
		return err
	}

	span.SetAttributes(telemetry.AttrTool.String(c.Tool.Name))
	telemetry.RecordSuccess(span)
	r.metrics.RecordResolution(c.Toolchain.Name, "success", timer.Duration())

	zl := log.Zerolog()
	zl.Debug().
		Str("tool", c.Tool.Name).
		Str("artefact", c.Artefact.FullName()).
		Int("sources", len(c.SourceFolders)).
		Msg("Configuration resolved")
	return nil
}
