package config

import (
	"time"

	"github.com/xbuild/xbuild/pkg/options"
)

// Format is the encoding of a descriptor file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// ProjectFileNames are the project descriptor names looked up in a folder,
// in order of preference.
var ProjectFileNames = []string{"xmake.json", "xmake.yaml", "xmake.yml", "xmake.cue"}

// PackageFileName is the package descriptor of an xPack.
const PackageFileName = "package.json"

// Document is a decoded descriptor file.
type Document struct {
	// Path is the absolute file path.
	Path string

	// Format is the encoding the document was decoded from.
	Format Format

	// Raw is the JSON rendering of the document. JSON files are kept as
	// read; CUE files are exported. YAML files keep their own bytes.
	Raw []byte

	// Data is the decoded top-level object.
	Data map[string]any

	// ReadAt is when the file was read.
	ReadAt time.Time
}

// CommonDescriptor is the shape shared by the project, targets, profiles
// and configurations.
type CommonDescriptor struct {
	// Artefact is the declared artefact, nil when absent.
	Artefact *options.Artefact

	Sources  *options.Sources
	Includes *options.Includes
	Symbols  *options.Symbols

	// Options holds the per-toolchain option bags.
	Options *options.BuildOptions

	// Language is "" when not declared.
	Language string
}

func newCommonDescriptor() *CommonDescriptor {
	return &CommonDescriptor{
		Sources:  options.NewSources(nil),
		Includes: options.NewIncludes(nil),
		Symbols:  options.NewSymbols(nil),
		Options:  options.NewBuildOptions(),
	}
}

// ConfigurationDescriptor is a buildable combination of a target, a
// toolchain and profiles.
type ConfigurationDescriptor struct {
	*CommonDescriptor

	Name      string
	Target    string
	Toolchain string
	Profiles  []string
}

// configurationRefs carries the mandatory references for validation.
type configurationRefs struct {
	Target    string   `json:"target" validate:"required"`
	Toolchain string   `json:"toolchain" validate:"required"`
	Profiles  []string `json:"profiles" validate:"required,min=1,dive,required"`
}

// ProjectDescriptor is the decoded project descriptor.
type ProjectDescriptor struct {
	// Path is the descriptor file; Folder is the project root.
	Path   string
	Folder string

	SchemaVersion string
	Name          string
	Generator     string

	// Commands maps command names to argument vectors.
	Commands map[string][]string

	// Toolchains holds raw toolchain definitions, keyed by name.
	Toolchains map[string]any

	// ToolOrder lists the tool names of each toolchain in file order.
	ToolOrder map[string][]string

	// Common is the project-wide layer declared at top level.
	Common *CommonDescriptor

	Targets        map[string]*CommonDescriptor
	Profiles       map[string]*CommonDescriptor
	Configurations map[string]*ConfigurationDescriptor

	// Ignored lists the dotted paths of unrecognized fields.
	Ignored []string

	// Raw is the decoded document, used for schema validation.
	Raw map[string]any
}

// Directories are the source and include folders declared by a package.
// A nil slice means "not declared".
type Directories struct {
	Src     []string
	Include []string
}

// PackageDescriptor is the decoded package.json of an xPack.
type PackageDescriptor struct {
	Path   string
	Folder string

	Name    string
	Version string

	// IsXpack is true when the descriptor carries the xpack marker object.
	IsXpack bool

	Directories Directories

	// Dependencies are the declared dependency names, in file order.
	Dependencies []string
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the field path to the error (e.g., "configurations.debug.target").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity"`
}
