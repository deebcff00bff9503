package project

import "strings"

// Macro names recognized in descriptor strings.
const (
	MacroName          = "${build.name}"
	MacroConfiguration = "${build.configuration}"
	MacroToolchain     = "${build.toolchain}"
)

// Macros substitutes build macros in descriptor strings. Unknown macros are
// left untouched.
type Macros struct {
	values   map[string]string
	replacer *strings.Replacer
}

// NewMacros creates the macro set of one configuration.
func NewMacros(projectName, configuration, toolchain string) *Macros {
	values := map[string]string{
		MacroName:          projectName,
		MacroConfiguration: configuration,
		MacroToolchain:     toolchain,
	}
	return &Macros{
		values: values,
		replacer: strings.NewReplacer(
			MacroName, projectName,
			MacroConfiguration, configuration,
			MacroToolchain, toolchain,
		),
	}
}

// Expand replaces every known macro in s.
func (m *Macros) Expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return m.replacer.Replace(s)
}

// Value returns the expansion of a single macro.
func (m *Macros) Value(macro string) (string, bool) {
	v, ok := m.values[macro]
	return v, ok
}
