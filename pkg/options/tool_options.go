package options

import (
	"sort"
	"strings"

	"github.com/xbuild/xbuild/pkg/engine"
)

// ToolOptionProperties are the descriptor properties held by ToolOptions, in order.
var ToolOptionProperties = []string{
	"addOptimizations", "removeOptimizations",
	"addWarnings", "removeWarnings",
	"addDebugging", "removeDebugging",
	"addMiscellaneous", "removeMiscellaneous",
}

// ToolOptions holds command line option contributions for one tool, or for
// all tools of a toolchain.
type ToolOptions struct {
	AddOptimizations    []string
	RemoveOptimizations []string
	AddWarnings         []string
	RemoveWarnings      []string
	AddDebugging        []string
	RemoveDebugging     []string
	AddMiscellaneous    []string
	RemoveMiscellaneous []string
}

// NewToolOptions creates ToolOptions copied from init, which may be nil.
func NewToolOptions(init *ToolOptions) *ToolOptions {
	o := &ToolOptions{}
	if init != nil {
		o.AppendFrom(init)
	}
	return o
}

// ToolOptionsFromMap builds ToolOptions from property lists; unknown property
// names are returned so the caller can report them.
func ToolOptionsFromMap(values map[string][]string) (*ToolOptions, []string) {
	o := &ToolOptions{}
	lists := o.lists()

	var unknown []string
	for name, v := range values {
		if !setList(lists, name, v) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return o, unknown
}

func (o *ToolOptions) lists() []namedList {
	p := ToolOptionProperties
	return []namedList{
		{p[0], &o.AddOptimizations},
		{p[1], &o.RemoveOptimizations},
		{p[2], &o.AddWarnings},
		{p[3], &o.RemoveWarnings},
		{p[4], &o.AddDebugging},
		{p[5], &o.RemoveDebugging},
		{p[6], &o.AddMiscellaneous},
		{p[7], &o.RemoveMiscellaneous},
	}
}

// AppendFrom concatenates the non-empty lists of other in place.
func (o *ToolOptions) AppendFrom(other *ToolOptions) {
	if other == nil {
		return
	}
	appendLists(o.lists(), other.lists())
}

// Map returns the non-empty lists keyed by property name.
func (o *ToolOptions) Map() map[string][]string {
	return toMap(o.lists())
}

func (o *ToolOptions) String() string {
	return renderLists("ToolOptions", o.lists())
}

// ToolchainOptions is a bag of options declared for one toolchain: options
// common to every tool plus per-tool options.
type ToolchainOptions struct {
	// Toolchain is the name of the toolchain the bag was declared for.
	Toolchain string

	// Common applies to every tool of the toolchain.
	Common *ToolOptions

	// Tools maps tool names to tool specific options.
	Tools map[string]*ToolOptions

	toolNames []string
}

// NewToolchainOptions creates an empty bag for the named toolchain.
func NewToolchainOptions(toolchain string) *ToolchainOptions {
	return &ToolchainOptions{
		Toolchain: toolchain,
		Common:    &ToolOptions{},
		Tools:     make(map[string]*ToolOptions),
	}
}

// Tool returns the options of the named tool, creating them when missing.
func (o *ToolchainOptions) Tool(name string) *ToolOptions {
	if t, ok := o.Tools[name]; ok {
		return t
	}
	t := &ToolOptions{}
	o.Tools[name] = t
	o.toolNames = append(o.toolNames, name)
	return t
}

// ToolNames returns tool names in the order they were first declared.
func (o *ToolchainOptions) ToolNames() []string {
	return copyStrings(o.toolNames)
}

// AppendFrom merges other into o when target derives from the toolchain
// other was declared for. Options declared for an ancestor therefore apply to
// every descendant, and options for unrelated toolchains are ignored.
// It reports whether anything was merged.
func (o *ToolchainOptions) AppendFrom(other *ToolchainOptions, target engine.Lineage) bool {
	if other == nil || target == nil || !target.DerivesFrom(other.Toolchain) {
		return false
	}
	o.Common.AppendFrom(other.Common)
	for _, name := range other.toolNames {
		o.Tool(name).AppendFrom(other.Tools[name])
	}
	return true
}

func (o *ToolchainOptions) String() string {
	var b strings.Builder
	b.WriteString("ToolchainOptions(")
	b.WriteString(o.Toolchain)
	b.WriteString("){common: ")
	b.WriteString(o.Common.String())
	for _, name := range o.toolNames {
		b.WriteString(", ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(o.Tools[name].String())
	}
	b.WriteString("}")
	return b.String()
}

// BuildOptions collects the toolchain option bags declared by one layer
// (project, target, profile or configuration).
type BuildOptions struct {
	bags map[string]*ToolchainOptions
}

// NewBuildOptions creates an empty set of bags.
func NewBuildOptions() *BuildOptions {
	return &BuildOptions{bags: make(map[string]*ToolchainOptions)}
}

// Add stores a bag; a second bag for the same toolchain is concatenated
// onto the first.
func (b *BuildOptions) Add(bag *ToolchainOptions) {
	existing, ok := b.bags[bag.Toolchain]
	if !ok {
		existing = NewToolchainOptions(bag.Toolchain)
		b.bags[bag.Toolchain] = existing
	}
	existing.Common.AppendFrom(bag.Common)
	for _, name := range bag.toolNames {
		existing.Tool(name).AppendFrom(bag.Tools[name])
	}
}

// Get returns the bag declared for the named toolchain.
func (b *BuildOptions) Get(toolchain string) (*ToolchainOptions, bool) {
	bag, ok := b.bags[toolchain]
	return bag, ok
}

// Toolchains returns the sorted names of the toolchains with declared bags.
func (b *BuildOptions) Toolchains() []string {
	names := make([]string, 0, len(b.bags))
	for name := range b.bags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bags returns the bags applicable to target, ordered from the root
// toolchain down to target itself.
func (b *BuildOptions) Bags(target engine.Lineage) []*ToolchainOptions {
	if b == nil || target == nil {
		return nil
	}
	var out []*ToolchainOptions
	for _, name := range target.Ancestry() {
		if bag, ok := b.bags[name]; ok {
			out = append(out, bag)
		}
	}
	return out
}

// AppendTo merges every bag applicable to target into dst.
func (b *BuildOptions) AppendTo(dst *ToolchainOptions, target engine.Lineage) {
	for _, bag := range b.Bags(target) {
		dst.AppendFrom(bag, target)
	}
}
