package toolchain

import (
	"strings"
	"sync"

	"github.com/xbuild/xbuild/pkg/options"
)

// ToolType is the role of a tool within a toolchain.
type ToolType string

const (
	Compiler  ToolType = "compiler"
	Assembler ToolType = "assembler"
	Linker    ToolType = "linker"
	Archiver  ToolType = "archiver"
)

// Valid reports whether t is a supported tool type.
func (t ToolType) Valid() bool {
	switch t {
	case Compiler, Assembler, Linker, Archiver:
		return true
	}
	return false
}

// Translates reports whether tools of this type turn sources into objects.
func (t ToolType) Translates() bool {
	return t == Compiler || t == Assembler
}

// FileExtension is the activation metadata of a source extension.
type FileExtension struct {
	// Prefix names the group of make variables generated for the extension.
	Prefix string `json:"prefix" yaml:"prefix"`
}

// Tool is one compiler, assembler, linker or archiver of a toolchain.
type Tool struct {
	Name        string
	Type        ToolType
	CommandName string
	Description string
	Languages   []string

	// Compiler and assembler only.
	Options        string
	Deps           string
	Inputs         string
	FileExtensions map[string]FileExtension

	OutputFlag string
	Output     string

	// toolchain is the owner; it is never copied by clone.
	toolchain *Toolchain

	derived *derivedNames
}

// derivedNames holds the prefixed names, computed once per tool since
// resolved tools are shared between configurations.
type derivedNames struct {
	once        sync.Once
	command     string
	description string
}

func newTool(name string, typ ToolType, owner *Toolchain) *Tool {
	return &Tool{
		Name:           name,
		Type:           typ,
		FileExtensions: make(map[string]FileExtension),
		toolchain:      owner,
		derived:        &derivedNames{},
	}
}

func (t *Tool) names() *derivedNames {
	t.derived.once.Do(func() {
		t.derived.command = t.CommandName
		t.derived.description = t.Description
		if t.toolchain == nil {
			return
		}
		t.derived.command = t.toolchain.CommandPrefix + t.CommandName + t.toolchain.CommandSuffix
		if t.toolchain.DescriptionPrefix != "" {
			t.derived.description = t.toolchain.DescriptionPrefix + " " + t.Description
		}
	})
	return t.derived
}

// Toolchain returns the toolchain owning the tool.
func (t *Tool) Toolchain() *Toolchain {
	return t.toolchain
}

// FullCommandName returns the command wrapped in the toolchain prefix and
// suffix, for example "arm-none-eabi-gcc".
func (t *Tool) FullCommandName() string {
	return t.names().command
}

// FullDescription returns the description preceded by the toolchain
// description prefix.
func (t *Tool) FullDescription() string {
	return t.names().description
}

// SupportsLanguage reports whether lang is one of the tool languages.
func (t *Tool) SupportsLanguage(lang string) bool {
	for _, l := range t.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Extensions returns the file extensions handled by the tool, sorted.
func (t *Tool) Extensions() []string {
	return options.SortedKeys(t.FileExtensions)
}

// clone deep copies the tool and binds the copy to owner. Derived names are
// recomputed on first access since the owner prefixes may differ.
func (t *Tool) clone(owner *Toolchain) *Tool {
	c := *t
	c.toolchain = owner
	c.derived = &derivedNames{}
	if t.Languages != nil {
		c.Languages = append([]string(nil), t.Languages...)
	}
	c.FileExtensions = make(map[string]FileExtension, len(t.FileExtensions))
	for ext, meta := range t.FileExtensions {
		c.FileExtensions[ext] = meta
	}
	return &c
}

func (t *Tool) String() string {
	var b strings.Builder
	b.WriteString("Tool(")
	b.WriteString(t.Name)
	b.WriteString(", ")
	b.WriteString(string(t.Type))
	b.WriteString(", ")
	b.WriteString(t.FullCommandName())
	b.WriteString(")")
	return b.String()
}
