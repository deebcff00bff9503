package toolchain

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xbuild/xbuild/pkg/config"
	"github.com/xbuild/xbuild/pkg/engine"
	"github.com/xbuild/xbuild/pkg/options"
)

//go:embed assets/toolchains.json
var assetsFS embed.FS

const assetsPath = "assets/toolchains.json"

// Registry accumulates raw toolchain definitions and resolves them lazily.
// Resolved toolchains are memoized by name until the next Add or Clear.
type Registry struct {
	mu          sync.Mutex
	definitions map[string]*definition
	resolved    map[string]*Toolchain
	logger      zerolog.Logger
	observer    engine.CacheObserver
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		definitions: make(map[string]*definition),
		resolved:    make(map[string]*Toolchain),
		logger:      logger.With().Str("component", "toolchain-registry").Logger(),
		observer:    engine.NopCacheObserver{},
	}
}

// SetObserver installs the observer notified of cache lookups.
func (r *Registry) SetObserver(observer engine.CacheObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if observer == nil {
		observer = engine.NopCacheObserver{}
	}
	r.observer = observer
}

// definition is a raw toolchain definition with the declaration order of
// its tools. Tools missing from toolOrder follow in name order.
type definition struct {
	fields    map[string]any
	toolOrder []string
}

// Add stores the raw definition of a toolchain, replacing any previous one.
// Its tools are created in name order.
func (r *Registry) Add(name string, fields map[string]any) {
	r.AddOrdered(name, fields, nil)
}

// AddOrdered stores the raw definition of a toolchain whose tools are
// declared in toolOrder. Resolved toolchains are dropped since descendants
// may inherit from name.
func (r *Registry) AddOrdered(name string, fields map[string]any, toolOrder []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.definitions[name]; ok {
		r.logger.Debug().Str("toolchain", name).Msg("Toolchain redefined")
	}
	r.definitions[name] = &definition{fields: fields, toolOrder: toolOrder}
	r.resolved = make(map[string]*Toolchain)
}

// LoadDefinitions adds every entry of a toolchains map, in name order.
// toolOrder maps toolchain names to their tool names in file order.
func (r *Registry) LoadDefinitions(definitions map[string]any, toolOrder map[string][]string) error {
	for _, name := range options.SortedKeys(definitions) {
		def, err := options.Object(definitions[name], "toolchains."+name)
		if err != nil {
			return err
		}
		r.AddOrdered(name, def, toolOrder[name])
	}
	return nil
}

// LoadAssets adds the toolchain definitions shipped with the binary.
func (r *Registry) LoadAssets() error {
	data, err := assetsFS.ReadFile(assetsPath)
	if err != nil {
		return engine.NewIOError("failed to read toolchain assets", err).WithSubject(assetsPath)
	}

	var definitions map[string]any
	if err := json.Unmarshal(data, &definitions); err != nil {
		return engine.NewParseError("failed to parse toolchain assets", err).
			WithCode(engine.ErrCodeSyntax).WithSubject(assetsPath)
	}

	toolOrder := make(map[string][]string, len(definitions))
	for name := range definitions {
		keys, err := config.JSONObjectKeys(data, name, "tools")
		if err != nil {
			return engine.NewParseError("failed to parse toolchain assets", err).
				WithCode(engine.ErrCodeSyntax).WithSubject(assetsPath)
		}
		toolOrder[name] = keys
	}

	if err := r.LoadDefinitions(definitions, toolOrder); err != nil {
		return err
	}

	r.logger.Debug().Int("count", len(definitions)).Msg("Toolchain assets loaded")
	return nil
}

// Names returns the names of all defined toolchains, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear discards both raw definitions and resolved toolchains.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.definitions = make(map[string]*definition)
	r.resolved = make(map[string]*Toolchain)
}

// Retrieve returns the resolved toolchain, resolving its parents first.
func (r *Registry) Retrieve(name string) (*Toolchain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.retrieve(name, make(map[string]bool))
}

func (r *Registry) retrieve(name string, visiting map[string]bool) (*Toolchain, error) {
	if tc, ok := r.resolved[name]; ok {
		r.observer.ObserveCacheLookup(engine.CacheToolchains, true)
		return tc, nil
	}
	r.observer.ObserveCacheLookup(engine.CacheToolchains, false)

	def, ok := r.definitions[name]
	if !ok {
		return nil, engine.NewReferenceError(fmt.Sprintf("Toolchain '%s' not defined", name), nil).
			WithCode(engine.ErrCodeNotDefined).WithSubject(name)
	}
	if visiting[name] {
		return nil, engine.NewInternalError(fmt.Sprintf("Toolchain '%s' has a circular parent chain", name), nil).
			WithCode(engine.ErrCodeCircularParent).WithSubject(name)
	}
	visiting[name] = true

	tc, err := r.resolve(name, def, visiting)
	if err != nil {
		return nil, err
	}

	r.resolved[name] = tc
	r.logger.Debug().
		Str("toolchain", name).
		Strs("ancestry", tc.Ancestry()).
		Int("tools", len(tc.toolOrder)).
		Msg("Toolchain resolved")
	return tc, nil
}

var scalarFields = map[string]func(tc *Toolchain) *string{
	"commandPrefix":       func(tc *Toolchain) *string { return &tc.CommandPrefix },
	"commandSuffix":       func(tc *Toolchain) *string { return &tc.CommandSuffix },
	"descriptionPrefix":   func(tc *Toolchain) *string { return &tc.DescriptionPrefix },
	"objectExtension":     func(tc *Toolchain) *string { return &tc.ObjectExtension },
	"makeObjectsVariable": func(tc *Toolchain) *string { return &tc.MakeObjectsVariable },
}

func (r *Registry) resolve(name string, d *definition, visiting map[string]bool) (*Toolchain, error) {
	def := d.fields

	var tc *Toolchain
	if rawParent, ok := def["parent"]; ok {
		parentName, err := options.String(rawParent, name+".parent")
		if err != nil {
			return nil, err
		}
		parent, err := r.retrieve(parentName, visiting)
		if err != nil {
			return nil, err
		}
		tc = parent.derive(name)
	} else {
		tc = newToolchain(name)
	}

	for _, key := range options.SortedKeys(def) {
		value := def[key]
		switch key {
		case "parent":
		case "tools":
			tools, err := options.Object(value, name+".tools")
			if err != nil {
				return nil, err
			}
			if err := r.applyTools(tc, tools, d.toolOrder); err != nil {
				return nil, err
			}
		case "artefact", "artifact":
			if err := r.applyArtefact(tc, key, value); err != nil {
				return nil, err
			}
		default:
			field, ok := scalarFields[key]
			if !ok {
				r.logger.Warn().Str("toolchain", name).Str("field", key).Msg("Ignored toolchain field")
				continue
			}
			s, err := options.String(value, name+"."+key)
			if err != nil {
				return nil, err
			}
			*field(tc) = s
		}
	}

	tc.rebuildExtensionIndex()
	return tc, nil
}

func (r *Registry) applyArtefact(tc *Toolchain, key string, value any) error {
	subject := tc.Name + "." + key
	m, err := options.Object(value, subject)
	if err != nil {
		return err
	}
	a, ignored, err := options.ArtefactFromMap(m, subject)
	if err != nil {
		return err
	}
	for _, field := range ignored {
		r.logger.Warn().Str("toolchain", tc.Name).Str("field", key+"."+field).Msg("Ignored artefact field")
	}

	// Own fields first, inherited ones fill the rest.
	a.FillFrom(tc.Artefact)
	tc.Artefact = a
	return nil
}

// declaredOrder returns the keys of tools in declaration order, followed by
// any undeclared keys in name order.
func declaredOrder(tools map[string]any, order []string) []string {
	keys := make([]string, 0, len(tools))
	seen := make(map[string]bool, len(tools))
	for _, name := range order {
		if _, ok := tools[name]; ok && !seen[name] {
			seen[name] = true
			keys = append(keys, name)
		}
	}
	for _, name := range options.SortedKeys(tools) {
		if !seen[name] {
			keys = append(keys, name)
		}
	}
	return keys
}

func (r *Registry) applyTools(tc *Toolchain, tools map[string]any, order []string) error {
	for _, toolName := range declaredOrder(tools, order) {
		subject := tc.Name + ".tools." + toolName
		def, err := options.Object(tools[toolName], subject)
		if err != nil {
			return err
		}

		tool, inherited := tc.Tool(toolName)
		if inherited {
			if err := checkTypeRedefinition(tc.Name, tool, def, subject); err != nil {
				return err
			}
		} else {
			tool, err = createTool(tc, toolName, def)
			if err != nil {
				return err
			}
			tc.addTool(tool)
		}

		if err := r.applyToolFields(tool, def, subject); err != nil {
			return err
		}
	}
	return nil
}

var mandatoryToolFields = []string{"commandName", "description", "type"}

func createTool(tc *Toolchain, name string, def map[string]any) (*Tool, error) {
	for _, field := range mandatoryToolFields {
		if _, ok := def[field]; !ok {
			return nil, engine.NewSchemaError(
				fmt.Sprintf("Tool '%s' of toolchain '%s' has no mandatory '%s'", name, tc.Name, field),
				nil,
			).WithCode(engine.ErrCodeMissingField).WithSubject(tc.Name + ".tools." + name)
		}
	}

	rawType, err := options.String(def["type"], tc.Name+".tools."+name+".type")
	if err != nil {
		return nil, err
	}
	typ := ToolType(rawType)
	if !typ.Valid() {
		return nil, engine.NewSchemaError(
			fmt.Sprintf("Tool '%s' of toolchain '%s' has unsupported type '%s'", name, tc.Name, rawType),
			nil,
		).WithCode(engine.ErrCodeInvalidValue).WithSubject(tc.Name + ".tools." + name)
	}
	return newTool(name, typ, tc), nil
}

func checkTypeRedefinition(toolchain string, tool *Tool, def map[string]any, subject string) error {
	raw, ok := def["type"]
	if !ok {
		return nil
	}
	s, err := options.String(raw, subject+".type")
	if err != nil {
		return err
	}
	if ToolType(s) == tool.Type {
		return nil
	}
	return engine.NewInternalError(
		fmt.Sprintf("Tool '%s' of toolchain '%s' cannot redefine type '%s'", tool.Name, toolchain, tool.Type),
		nil,
	).WithCode(engine.ErrCodeTypeRedefinition).WithSubject(toolchain + ".tools." + tool.Name)
}

func (r *Registry) applyToolFields(tool *Tool, def map[string]any, subject string) error {
	strField := func(key string, dst *string) error {
		s, err := options.String(def[key], subject+"."+key)
		if err != nil {
			return err
		}
		*dst = s
		return nil
	}

	for _, key := range options.SortedKeys(def) {
		var err error
		switch {
		case key == "type":
		case key == "commandName":
			err = strField(key, &tool.CommandName)
		case key == "description":
			err = strField(key, &tool.Description)
		case key == "languages":
			tool.Languages, err = options.StringList(def[key], subject+"."+key)
		case key == "outputFlag":
			err = strField(key, &tool.OutputFlag)
		case key == "output":
			err = strField(key, &tool.Output)
		case key == "options" && tool.Type.Translates():
			err = strField(key, &tool.Options)
		case key == "deps" && tool.Type.Translates():
			err = strField(key, &tool.Deps)
		case key == "inputs" && tool.Type.Translates():
			err = strField(key, &tool.Inputs)
		case key == "fileExtensions" && tool.Type.Translates():
			err = applyFileExtensions(tool, def[key], subject+"."+key)
		default:
			r.logger.Warn().
				Str("tool", subject).
				Str("type", string(tool.Type)).
				Str("field", key).
				Msg("Ignored tool field")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applyFileExtensions(tool *Tool, value any, subject string) error {
	m, err := options.Object(value, subject)
	if err != nil {
		return err
	}
	for _, ext := range options.SortedKeys(m) {
		meta, err := options.Object(m[ext], subject+"."+ext)
		if err != nil {
			return err
		}
		var fe FileExtension
		if raw, ok := meta["prefix"]; ok {
			if fe.Prefix, err = options.String(raw, subject+"."+ext+".prefix"); err != nil {
				return err
			}
		}
		tool.FileExtensions[ext] = fe
	}
	return nil
}
