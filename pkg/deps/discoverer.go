package deps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/xbuild/xbuild/pkg/config"
	"github.com/xbuild/xbuild/pkg/engine"
)

// InstallFolder is the folder below a package root holding installed
// dependencies.
const InstallFolder = "xpacks"

// Conventional folders used when a package declares no directories.
const (
	ConventionalSourceFolder  = "src"
	ConventionalIncludeFolder = "include"
)

var tracer = otel.Tracer("github.com/xbuild/xbuild/pkg/deps")

// Package is an installed xPack found below the install folder.
type Package struct {
	Name       string
	Folder     string
	Descriptor *config.PackageDescriptor

	processed bool
}

// Dependencies returns the declared dependency names, in file order.
func (p *Package) Dependencies() []string {
	return p.Descriptor.Dependencies
}

// Result is the outcome of a discovery. It is shared between callers and
// must not be modified.
type Result struct {
	// Root is the absolute project root.
	Root string

	// Packages lists the visited packages in depth-first order.
	Packages []*Package

	// AddSourceFolders and AddIncludeFolders are absolute paths, in
	// package visit order.
	AddSourceFolders  []string
	AddIncludeFolders []string
}

// Discoverer finds the build-relevant packages installed below a project
// and memoizes the result per root folder.
type Discoverer struct {
	mu       sync.Mutex
	parser   *config.Parser
	results  map[string]*Result
	logger   zerolog.Logger
	observer engine.CacheObserver
}

// NewDiscoverer creates a discoverer reading descriptors through parser.
func NewDiscoverer(parser *config.Parser, logger zerolog.Logger) *Discoverer {
	return &Discoverer{
		parser:   parser,
		results:  make(map[string]*Result),
		logger:   logger.With().Str("component", "discoverer").Logger(),
		observer: engine.NopCacheObserver{},
	}
}

// SetObserver installs the observer notified of cache lookups.
func (d *Discoverer) SetObserver(observer engine.CacheObserver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if observer == nil {
		observer = engine.NopCacheObserver{}
	}
	d.observer = observer
}

// Clear drops all memoized results.
func (d *Discoverer) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = make(map[string]*Result)
}

// DiscoverPacks returns the source and include folders contributed by the
// dependency closure of the package at root. Repeated calls for the same
// root return the same Result without touching the file system.
func (d *Discoverer) DiscoverPacks(ctx context.Context, root string) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, engine.NewIOError("failed to resolve project root", err).WithSubject(root)
	}
	abs = filepath.Clean(abs)

	d.mu.Lock()
	defer d.mu.Unlock()

	if res, ok := d.results[abs]; ok {
		d.observer.ObserveCacheLookup(engine.CacheDiscovery, true)
		return res, nil
	}
	d.observer.ObserveCacheLookup(engine.CacheDiscovery, false)

	_, span := tracer.Start(ctx, "deps.discover")
	span.SetAttributes(attribute.String("deps.root", abs))
	defer span.End()

	res, err := d.discover(abs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("deps.packages", len(res.Packages)),
		attribute.Int("deps.source_folders", len(res.AddSourceFolders)),
		attribute.Int("deps.include_folders", len(res.AddIncludeFolders)),
	)

	d.results[abs] = res
	return res, nil
}

func (d *Discoverer) discover(root string) (*Result, error) {
	rootPkg, err := d.parser.ParsePackage(root)
	if err != nil && !(engine.IsIO(err) && engine.CodeOf(err) == engine.ErrCodeNotFound) {
		return nil, err
	}
	if rootPkg == nil || !rootPkg.IsXpack {
		return nil, engine.NewSchemaError(fmt.Sprintf("Folder '%s' is not an xPack", root), err).
			WithCode(engine.ErrCodeNotPackage).WithSubject(root)
	}

	index, err := d.indexInstalled(root)
	if err != nil {
		return nil, err
	}

	res := &Result{Root: root}
	if err := d.visit(res, index, rootPkg.Name, rootPkg.Dependencies); err != nil {
		return nil, err
	}

	for _, pkg := range res.Packages {
		src, err := packageFolders(pkg, pkg.Descriptor.Directories.Src, ConventionalSourceFolder)
		if err != nil {
			return nil, err
		}
		res.AddSourceFolders = append(res.AddSourceFolders, src...)

		inc, err := packageFolders(pkg, pkg.Descriptor.Directories.Include, ConventionalIncludeFolder)
		if err != nil {
			return nil, err
		}
		res.AddIncludeFolders = append(res.AddIncludeFolders, inc...)
	}

	d.logger.Debug().
		Str("root", root).
		Int("installed", len(index)).
		Int("packages", len(res.Packages)).
		Msg("Dependencies discovered")

	return res, nil
}

// indexInstalled maps package names to the xPacks installed as immediate
// children of <root>/xpacks. Symbolic links are followed.
func (d *Discoverer) indexInstalled(root string) (map[string]*Package, error) {
	index := make(map[string]*Package)

	installDir := filepath.Join(root, InstallFolder)
	entries, err := d.parser.Cache().ReadDir(installDir)
	if err != nil {
		if engine.CodeOf(err) == engine.ErrCodeNotFound {
			return index, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		folder := filepath.Join(installDir, entry.Name())
		info, err := os.Stat(folder)
		if err != nil || !info.IsDir() {
			continue
		}

		desc, err := d.parser.ParsePackage(folder)
		if err != nil {
			if engine.IsIO(err) && engine.CodeOf(err) == engine.ErrCodeNotFound {
				continue
			}
			return nil, err
		}
		if !desc.IsXpack {
			continue
		}
		if desc.Name == "" {
			d.logger.Warn().Str("folder", folder).Msg("Installed xPack has no name")
			continue
		}

		if existing, ok := index[desc.Name]; ok {
			return nil, engine.NewInternalError(
				fmt.Sprintf("duplicate package '%s' installed in '%s' and '%s'", desc.Name, existing.Folder, folder),
				nil,
			).WithCode(engine.ErrCodeDuplicatePackage).WithSubject(desc.Name)
		}
		index[desc.Name] = &Package{Name: desc.Name, Folder: folder, Descriptor: desc}
	}
	return index, nil
}

// visit walks the dependency closure depth first. A package is marked
// before its own dependencies are visited, so cycles terminate.
func (d *Discoverer) visit(res *Result, index map[string]*Package, from string, names []string) error {
	for _, name := range names {
		pkg, ok := index[name]
		if !ok {
			return engine.NewInternalError(
				fmt.Sprintf("missing package '%s' required by '%s'", name, from),
				nil,
			).WithCode(engine.ErrCodeMissingPackage).WithSubject(name)
		}
		if pkg.processed {
			continue
		}
		pkg.processed = true
		res.Packages = append(res.Packages, pkg)

		if err := d.visit(res, index, name, pkg.Dependencies()); err != nil {
			return err
		}
	}
	return nil
}

// packageFolders resolves declared folders, which must exist, or falls back
// to the conventional folder when it exists.
func packageFolders(pkg *Package, declared []string, conventional string) ([]string, error) {
	if declared == nil {
		path := filepath.Join(pkg.Folder, conventional)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return []string{path}, nil
		}
		return nil, nil
	}

	folders := make([]string, 0, len(declared))
	for _, rel := range declared {
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(pkg.Folder, rel)
		}

		info, err := os.Stat(path)
		if err != nil {
			code := ""
			if errors.Is(err, fs.ErrNotExist) {
				code = engine.ErrCodeNotFound
			}
			return nil, engine.NewIOError(
				fmt.Sprintf("Folder '%s' declared by package '%s' not found", rel, pkg.Name),
				err,
			).WithCode(code).WithSubject(rel).WithDetail("package", pkg.Folder)
		}
		if !info.IsDir() {
			return nil, engine.NewIOError(
				fmt.Sprintf("Path '%s' declared by package '%s' is not a folder", rel, pkg.Name),
				nil,
			).WithCode(engine.ErrCodeNotDirectory).WithSubject(rel).WithDetail("package", pkg.Folder)
		}
		folders = append(folders, path)
	}
	return folders, nil
}
