package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Built-in schema names.
const (
	SchemaProject    = "project"
	SchemaPackage    = "package"
	SchemaToolchains = "toolchains"
)

// SchemaRegistry manages CUE schemas for descriptor validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas registers all built-in schemas. The definitions
// reference each other, so every one is compiled from the same source.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	builtins := map[string]string{
		SchemaProject:    "#Project",
		SchemaPackage:    "#Package",
		SchemaToolchains: "#Toolchains",
	}
	for name, def := range builtins {
		if err := sr.RegisterSchema(name, def, builtinSchemas); err != nil {
			panic(fmt.Sprintf("built-in schema %s: %v", name, err))
		}
	}
}

// RegisterSchema compiles source and registers its definition def (for
// example "#Project") under name.
func (sr *SchemaRegistry) RegisterSchema(name, def, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	schema := val.LookupPath(cue.ParsePath(def))
	if !schema.Exists() {
		return fmt.Errorf("schema %s does not define %s", name, def)
	}
	if err := schema.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = schema
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks data against a named schema and returns every violation.
// A nil slice means data conforms.
func (sr *SchemaRegistry) Validate(ctx context.Context, schemaName string, data any) ([]ValidationError, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return nil, fmt.Errorf("schema %s not found", schemaName)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err), nil
	}
	return nil, nil
}

// ValidateProject validates a decoded project descriptor.
func (sr *SchemaRegistry) ValidateProject(ctx context.Context, pd *ProjectDescriptor) ([]ValidationError, error) {
	errs, err := sr.Validate(ctx, SchemaProject, pd.Raw)
	for i := range errs {
		if errs[i].File == "" {
			errs[i].File = pd.Path
		}
	}
	return errs, err
}

// ValidatePackage validates a decoded package descriptor document.
func (sr *SchemaRegistry) ValidatePackage(ctx context.Context, doc *Document) ([]ValidationError, error) {
	errs, err := sr.Validate(ctx, SchemaPackage, doc.Data)
	for i := range errs {
		if errs[i].File == "" {
			errs[i].File = doc.Path
		}
	}
	return errs, err
}

// Built-in schema definitions

const builtinSchemas = `
#StringList: string | [...string]

#Artefact: {
	type?:      "executable" | "staticLib" | "sharedLib"
	name?:      string
	prefix?:    string
	suffix?:    string
	extension?: string
}

#ToolOptions: {
	addOptimizations?:    #StringList
	removeOptimizations?: #StringList
	addWarnings?:         #StringList
	removeWarnings?:      #StringList
	addDebugging?:        #StringList
	removeDebugging?:     #StringList
	addMiscellaneous?:    #StringList
	removeMiscellaneous?: #StringList
	...
}

#ToolchainOptions: {
	#ToolOptions
	tools?: {[string]: #ToolOptions}
	...
}

#Common: {
	artefact?:             #Artefact
	artifact?:             #Artefact
	addSourceFolders?:     #StringList
	removeSourceFolders?:  #StringList
	addIncludeFolders?:    #StringList
	removeIncludeFolders?: #StringList
	addSymbols?:           #StringList
	removeSymbols?:        #StringList
	options?: {[string]: #ToolchainOptions}
	language?: string
	...
}

#Configuration: {
	#Common
	target:    string & !=""
	toolchain: string & !=""
	profiles: [string, ...string]
	...
}

#Tool: {
	type?:        "compiler" | "assembler" | "linker" | "archiver"
	commandName?: string
	description?: string
	languages?:   #StringList
	options?:     string
	deps?:        string
	outputFlag?:  string
	output?:      string
	inputs?:      string
	fileExtensions?: {[string]: {prefix?: string}}
	...
}

#Toolchain: {
	parent?:              string
	commandPrefix?:       string
	commandSuffix?:       string
	descriptionPrefix?:   string
	objectExtension?:     string
	makeObjectsVariable?: string
	artefact?:            #Artefact
	artifact?:            #Artefact
	tools?: {[string]: #Tool}
	...
}

#Toolchains: {[string]: #Toolchain}

#Project: {
	#Common
	schemaVersion: =~"^0\\.2(\\.|$)"
	name?:         string
	generator?:    string
	commands?: {[string]: #StringList}
	toolchains?: #Toolchains
	targets?: {[string]: #Common}
	profiles?: {[string]: #Common}
	configurations?: {[string]: #Configuration}
	...
}

#Package: {
	name?:    string
	version?: string
	xpack?: {...}
	directories?: {
		src?:     #StringList
		include?: #StringList
		...
	}
	dependencies?: {[string]: string}
	...
}
`
