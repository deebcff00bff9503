package project

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/xbuild/xbuild/pkg/config"
	"github.com/xbuild/xbuild/pkg/deps"
	"github.com/xbuild/xbuild/pkg/engine"
	"github.com/xbuild/xbuild/pkg/options"
	"github.com/xbuild/xbuild/pkg/toolchain"
)

// DefaultLanguage is used when no layer declares a language.
const DefaultLanguage = "c++"

// Project is a loaded project: its descriptor, the named fragments and
// configurations built from it, and the folders contributed by installed
// dependencies.
type Project struct {
	Name   string
	Folder string

	Descriptor *config.ProjectDescriptor

	// Common is the project-wide layer.
	Common *config.CommonDescriptor

	Targets        map[string]*Target
	Profiles       map[string]*Profile
	Configurations map[string]*Configuration

	// Discovered holds the dependency folders; empty when the project is
	// not itself an xPack.
	Discovered *deps.Result

	Commands map[string][]string
}

// ConfigurationNames returns the sorted configuration names.
func (p *Project) ConfigurationNames() []string {
	return options.SortedKeys(p.Configurations)
}

// Configuration returns the named configuration or a reference error.
func (p *Project) Configuration(name string) (*Configuration, error) {
	c, ok := p.Configurations[name]
	if !ok {
		return nil, engine.NewReferenceError(
			fmt.Sprintf("Configuration '%s' not defined", name), nil,
		).WithCode(engine.ErrCodeNotDefined).WithSubject(name)
	}
	return c, nil
}

// Target is a reusable fragment naming what is built.
type Target struct {
	Name   string
	Common *config.CommonDescriptor
}

// Profile is a reusable fragment naming how it is built.
type Profile struct {
	Name   string
	Common *config.CommonDescriptor
}

// Configuration is a buildable combination of one target, one toolchain and
// an ordered list of profiles. The resolved fields are set by Prepare.
type Configuration struct {
	Name      string
	Project   *Project
	Target    *Target
	Profiles  []*Profile
	Toolchain *toolchain.Toolchain

	// Common is the configuration's own layer.
	Common *config.CommonDescriptor

	SourceFolders []string
	Includes      *options.Includes
	Symbols       *options.Symbols
	Options       *options.ToolchainOptions
	Language      string
	Tool          *toolchain.Tool
	Artefact      *options.Artefact

	prepared bool
}

// Prepared reports whether Prepare completed.
func (c *Configuration) Prepared() bool {
	return c.prepared
}

// ProfileNames returns the attached profile names, in order.
func (c *Configuration) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// layers returns the common layers from lowest to highest precedence:
// project, target, profiles in declaration order, configuration.
func (c *Configuration) layers() []*config.CommonDescriptor {
	out := make([]*config.CommonDescriptor, 0, len(c.Profiles)+3)
	out = append(out, c.Project.Common, c.Target.Common)
	for _, p := range c.Profiles {
		out = append(out, p.Common)
	}
	return append(out, c.Common)
}

// Prepare merges every layer into the resolved fields. It is idempotent.
func (c *Configuration) Prepare() error {
	if c.prepared {
		return nil
	}

	sources := options.NewSources(nil)
	includes := options.NewIncludes(nil)
	symbols := options.NewSymbols(nil)
	merged := options.NewToolchainOptions(c.Toolchain.Name)

	for i, layer := range c.layers() {
		if layer == nil {
			continue
		}
		sources.AppendFrom(layer.Sources)
		includes.AppendFrom(layer.Includes)
		symbols.AppendFrom(layer.Symbols)
		layer.Options.AppendTo(merged, c.Toolchain)

		// Dependency folders come right after the project layer.
		if i == 0 && c.Project.Discovered != nil {
			sources.AppendFrom(&options.Sources{AddSourceFolders: c.Project.Discovered.AddSourceFolders})
			includes.AppendFrom(&options.Includes{AddIncludeFolders: c.Project.Discovered.AddIncludeFolders})
		}
	}

	c.SourceFolders = sources.Folders()
	c.Includes = includes
	c.Symbols = symbols
	c.Options = merged
	c.Language = c.resolveLanguage()

	artefact, err := c.resolveArtefact()
	if err != nil {
		return err
	}
	c.Artefact = artefact

	tool, err := c.selectTool()
	if err != nil {
		return err
	}
	c.Tool = tool

	c.prepared = true
	return nil
}

// resolveLanguage picks the configuration's language, else the first
// profile declaring one, else the target's, else the project's.
func (c *Configuration) resolveLanguage() string {
	if c.Common.Language != "" {
		return c.Common.Language
	}
	for _, p := range c.Profiles {
		if p.Common.Language != "" {
			return p.Common.Language
		}
	}
	if c.Target.Common.Language != "" {
		return c.Target.Common.Language
	}
	if c.Project.Common != nil && c.Project.Common.Language != "" {
		return c.Project.Common.Language
	}
	return DefaultLanguage
}

// resolveArtefact fills the artefact from the highest precedence layer down:
// configuration, profiles, toolchain default, target, project.
func (c *Configuration) resolveArtefact() (*options.Artefact, error) {
	a := options.NewArtefact(c.Common.Artefact)
	for _, p := range c.Profiles {
		a.FillFrom(p.Common.Artefact)
	}
	a.FillFrom(c.Toolchain.Artefact)
	a.FillFrom(c.Target.Common.Artefact)
	if c.Project.Common != nil {
		a.FillFrom(c.Project.Common.Artefact)
	}

	macros := NewMacros(c.Project.Name, c.Name, c.Toolchain.Name)
	if err := a.ApplyDefaults(macros.Expand); err != nil {
		var ee *engine.EngineError
		if errors.As(err, &ee) {
			ee.WithDetail("configuration", c.Name)
		}
		return nil, err
	}
	return a, nil
}

// selectTool picks the linker for executables and shared libraries, or the
// archiver for static libraries, that supports the resolved language.
func (c *Configuration) selectTool() (*toolchain.Tool, error) {
	var typ toolchain.ToolType
	switch c.Artefact.Kind() {
	case options.Executable, options.SharedLib:
		typ = toolchain.Linker
	case options.StaticLib:
		typ = toolchain.Archiver
	}

	if typ != "" {
		if tool, ok := c.Toolchain.FindTool(typ, c.Language); ok {
			return tool, nil
		}
	}
	return nil, engine.NewInternalError(
		fmt.Sprintf("Cannot set tool to build artefact '%s'", c.Artefact.Kind()), nil,
	).WithCode(engine.ErrCodeNoMatchingTool).
		WithSubject(c.Name).
		WithDetail("toolchain", c.Toolchain.Name).
		WithDetail("language", c.Language)
}

// Snapshot returns the serializable form of a prepared configuration.
func (c *Configuration) Snapshot() engine.ConfigurationSnapshot {
	s := engine.ConfigurationSnapshot{
		Name:           c.Name,
		Target:         c.Target.Name,
		Profiles:       c.ProfileNames(),
		Toolchain:      c.Toolchain.Name,
		ToolchainChain: c.Toolchain.Ancestry(),
		Language:       c.Language,
		SourceFolders:  c.SourceFolders,
	}
	if c.Includes != nil {
		s.AddIncludeFolders = c.Includes.AddIncludeFolders
		s.RemoveIncludeFolders = c.Includes.RemoveIncludeFolders
	}
	if c.Symbols != nil {
		s.AddSymbols = c.Symbols.AddSymbols
		s.RemoveSymbols = c.Symbols.RemoveSymbols
	}
	if c.Options != nil {
		s.Options = c.Options.Common.Map()
		for _, name := range c.Options.ToolNames() {
			if s.ToolOptions == nil {
				s.ToolOptions = make(map[string]map[string][]string)
			}
			s.ToolOptions[name] = c.Options.Tools[name].Map()
		}
	}
	if c.Tool != nil {
		s.Tool = engine.ToolSnapshot{
			Name:            c.Tool.Name,
			Type:            string(c.Tool.Type),
			FullCommandName: c.Tool.FullCommandName(),
			FullDescription: c.Tool.FullDescription(),
			OutputFlag:      c.Tool.OutputFlag,
			Output:          c.Tool.Output,
		}
	}
	if c.Artefact != nil {
		s.Artefact = engine.ArtefactSnapshot{
			Type:      string(c.Artefact.Kind()),
			Name:      c.Artefact.NameValue(),
			Prefix:    c.Artefact.PrefixValue(),
			Suffix:    c.Artefact.SuffixValue(),
			Extension: c.Artefact.ExtensionValue(),
			FullName:  c.Artefact.FullName(),
		}
	}
	return s
}

// absolute returns a copy of cd with folder paths resolved against base.
func absolute(base string, cd *config.CommonDescriptor) *config.CommonDescriptor {
	if cd == nil {
		return nil
	}
	out := *cd
	out.Sources = &options.Sources{
		AddSourceFolders:    absolutePaths(base, cd.Sources.AddSourceFolders),
		RemoveSourceFolders: absolutePaths(base, cd.Sources.RemoveSourceFolders),
	}
	out.Includes = &options.Includes{
		AddIncludeFolders:    absolutePaths(base, cd.Includes.AddIncludeFolders),
		RemoveIncludeFolders: absolutePaths(base, cd.Includes.RemoveIncludeFolders),
	}
	return &out
}

func absolutePaths(base string, paths []string) []string {
	if paths == nil {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}
