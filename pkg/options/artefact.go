package options

import (
	"fmt"
	"strconv"

	"github.com/xbuild/xbuild/pkg/engine"
)

// ArtefactType is the kind of output a configuration builds.
type ArtefactType string

const (
	Executable ArtefactType = "executable"
	StaticLib  ArtefactType = "staticLib"
	SharedLib  ArtefactType = "sharedLib"
)

// NameMacro is the default artefact name, expanded to the project name.
const NameMacro = "${build.name}"

// Valid reports whether t is one of the supported artefact types.
func (t ArtefactType) Valid() bool {
	switch t {
	case Executable, StaticLib, SharedLib:
		return true
	}
	return false
}

// Artefact describes a build output. Every field is optional: nil means
// "not set at this layer", which is different from an empty string.
type Artefact struct {
	Type      *string
	Name      *string
	Prefix    *string
	Suffix    *string
	Extension *string

	fullName *string
}

// Str returns a pointer to s, for building Artefact literals.
func Str(s string) *string {
	return &s
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	return Str(*p)
}

// NewArtefact creates an Artefact copied from init, which may be nil.
func NewArtefact(init *Artefact) *Artefact {
	a := &Artefact{}
	if init != nil {
		a.Type = clonePtr(init.Type)
		a.Name = clonePtr(init.Name)
		a.Prefix = clonePtr(init.Prefix)
		a.Suffix = clonePtr(init.Suffix)
		a.Extension = clonePtr(init.Extension)
	}
	return a
}

func (a *Artefact) fields() []**string {
	return []**string{&a.Type, &a.Name, &a.Prefix, &a.Suffix, &a.Extension}
}

// FillFrom copies the fields of other that are still unset in a.
// Calling it from highest to lowest precedence layer yields the effective
// artefact.
func (a *Artefact) FillFrom(other *Artefact) {
	if other == nil {
		return
	}
	dst := a.fields()
	src := other.fields()
	for i := range dst {
		if *dst[i] == nil && *src[i] != nil {
			*dst[i] = clonePtr(*src[i])
		}
	}
	a.fullName = nil
}

// IsEmpty reports whether no field is set.
func (a *Artefact) IsEmpty() bool {
	for _, f := range a.fields() {
		if *f != nil {
			return false
		}
	}
	return true
}

// ApplyDefaults sets the remaining unset fields and validates the type.
// The name is expanded with expand, so the default NameMacro becomes the
// project name.
func (a *Artefact) ApplyDefaults(expand func(string) string) error {
	if a.Type == nil {
		a.Type = Str(string(Executable))
	}
	if !ArtefactType(*a.Type).Valid() {
		return engine.NewSchemaError(
			fmt.Sprintf("Artefact type '%s' not supported, expected one of %s, %s, %s",
				*a.Type, Executable, StaticLib, SharedLib),
			nil,
		).WithCode(engine.ErrCodeInvalidValue).WithSubject(*a.Type)
	}
	if a.Name == nil {
		a.Name = Str(NameMacro)
	}
	if expand != nil {
		a.Name = Str(expand(*a.Name))
	}
	if a.Prefix == nil {
		a.Prefix = Str("")
	}
	if a.Suffix == nil {
		a.Suffix = Str("")
	}
	if a.Extension == nil {
		a.Extension = Str("")
	}
	a.fullName = nil
	return nil
}

// Kind returns the artefact type.
func (a *Artefact) Kind() ArtefactType {
	return ArtefactType(value(a.Type))
}

// NameValue returns the name, or "" when unset.
func (a *Artefact) NameValue() string { return value(a.Name) }

// PrefixValue returns the prefix, or "" when unset.
func (a *Artefact) PrefixValue() string { return value(a.Prefix) }

// SuffixValue returns the suffix, or "" when unset.
func (a *Artefact) SuffixValue() string { return value(a.Suffix) }

// ExtensionValue returns the extension, or "" when unset.
func (a *Artefact) ExtensionValue() string { return value(a.Extension) }

// FullName returns prefix+name+suffix, followed by "."+extension when the
// extension is not empty. The value is computed once.
func (a *Artefact) FullName() string {
	if a.fullName != nil {
		return *a.fullName
	}
	name := value(a.Prefix) + value(a.Name) + value(a.Suffix)
	if ext := value(a.Extension); ext != "" {
		name += "." + ext
	}
	a.fullName = &name
	return name
}

func (a *Artefact) String() string {
	render := func(p *string) string {
		if p == nil {
			return "<unset>"
		}
		return strconv.Quote(*p)
	}
	return fmt.Sprintf("Artefact{type: %s, name: %s, prefix: %s, suffix: %s, extension: %s}",
		render(a.Type), render(a.Name), render(a.Prefix), render(a.Suffix), render(a.Extension))
}
