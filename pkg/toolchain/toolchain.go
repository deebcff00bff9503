package toolchain

import (
	"strings"

	"github.com/xbuild/xbuild/pkg/options"
)

// Defaults for root toolchains.
const (
	DefaultObjectExtension     = "o"
	DefaultMakeObjectsVariable = "OBJS"
)

// ExtensionOwner records which tool compiles files with a given extension.
type ExtensionOwner struct {
	Tool   string
	Prefix string
}

// Toolchain is a named, inheritable bundle of tools. Instances returned by a
// Registry are shared and must not be modified.
type Toolchain struct {
	Name   string
	Parent *Toolchain

	CommandPrefix       string
	CommandSuffix       string
	DescriptionPrefix   string
	ObjectExtension     string
	MakeObjectsVariable string

	// Artefact is the optional default artefact for configurations using
	// the toolchain.
	Artefact *options.Artefact

	// FileExtensions maps a source extension to the tool compiling it.
	FileExtensions map[string]ExtensionOwner

	tools     map[string]*Tool
	toolOrder []string
}

func newToolchain(name string) *Toolchain {
	return &Toolchain{
		Name:                name,
		ObjectExtension:     DefaultObjectExtension,
		MakeObjectsVariable: DefaultMakeObjectsVariable,
		FileExtensions:      make(map[string]ExtensionOwner),
		tools:               make(map[string]*Tool),
	}
}

// derive returns a new toolchain named name inheriting every value of tc.
// Tools are deep copied and rebound to the new toolchain.
func (tc *Toolchain) derive(name string) *Toolchain {
	child := newToolchain(name)
	child.Parent = tc
	child.CommandPrefix = tc.CommandPrefix
	child.CommandSuffix = tc.CommandSuffix
	child.DescriptionPrefix = tc.DescriptionPrefix
	child.ObjectExtension = tc.ObjectExtension
	child.MakeObjectsVariable = tc.MakeObjectsVariable
	if tc.Artefact != nil {
		child.Artefact = options.NewArtefact(tc.Artefact)
	}
	for _, toolName := range tc.toolOrder {
		child.addTool(tc.tools[toolName].clone(child))
	}
	child.rebuildExtensionIndex()
	return child
}

// InstanceOf reports whether other is tc or one of its ancestors, by name.
func (tc *Toolchain) InstanceOf(other *Toolchain) bool {
	if other == nil {
		return false
	}
	return tc.DerivesFrom(other.Name)
}

// DerivesFrom reports whether name appears in the tc -> parent -> ... chain.
func (tc *Toolchain) DerivesFrom(name string) bool {
	for c := tc; c != nil; c = c.Parent {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Ancestry returns the chain names, root ancestor first and tc last.
func (tc *Toolchain) Ancestry() []string {
	var names []string
	for c := tc; c != nil; c = c.Parent {
		names = append(names, c.Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

func (tc *Toolchain) addTool(t *Tool) {
	if _, ok := tc.tools[t.Name]; !ok {
		tc.toolOrder = append(tc.toolOrder, t.Name)
	}
	tc.tools[t.Name] = t
}

// Tool returns the named tool.
func (tc *Toolchain) Tool(name string) (*Tool, bool) {
	t, ok := tc.tools[name]
	return t, ok
}

// Tools returns the tools in declaration order, inherited tools first.
func (tc *Toolchain) Tools() []*Tool {
	out := make([]*Tool, 0, len(tc.toolOrder))
	for _, name := range tc.toolOrder {
		out = append(out, tc.tools[name])
	}
	return out
}

// FindTool returns the first tool of the given type supporting lang.
func (tc *Toolchain) FindTool(typ ToolType, lang string) (*Tool, bool) {
	for _, name := range tc.toolOrder {
		t := tc.tools[name]
		if t.Type == typ && t.SupportsLanguage(lang) {
			return t, true
		}
	}
	return nil, false
}

// ToolForExtension returns the tool compiling files with extension ext.
// A leading dot is ignored.
func (tc *Toolchain) ToolForExtension(ext string) (*Tool, bool) {
	owner, ok := tc.FileExtensions[strings.TrimPrefix(ext, ".")]
	if !ok {
		return nil, false
	}
	return tc.Tool(owner.Tool)
}

// rebuildExtensionIndex scans the tools in order; the last tool declaring
// an extension owns it.
func (tc *Toolchain) rebuildExtensionIndex() {
	tc.FileExtensions = make(map[string]ExtensionOwner)
	for _, name := range tc.toolOrder {
		t := tc.tools[name]
		for _, ext := range t.Extensions() {
			tc.FileExtensions[ext] = ExtensionOwner{Tool: t.Name, Prefix: t.FileExtensions[ext].Prefix}
		}
	}
}

func (tc *Toolchain) String() string {
	return "Toolchain(" + strings.Join(tc.Ancestry(), " -> ") + ")"
}
