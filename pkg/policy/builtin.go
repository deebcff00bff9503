package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		artefactNamingPolicy(),
		sourceFoldersPolicy(),
		debugSymbolsPolicy(),
		symbolConflictsPolicy(),
	}
}

// artefactNamingPolicy rejects artefacts whose file name cannot be produced.
func artefactNamingPolicy() Policy {
	return Policy{
		Name:        "artefact-naming",
		Description: "Artefact names must be non-empty file names without separators or blanks",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"artefact", "naming"},
		Rego: `package xbuild.policies.artefact

import rego.v1

deny contains violation if {
	cfg := input.configuration
	cfg.artefact.full_name == ""
	violation := {
		"message": sprintf("Configuration '%s' produces an artefact without a name", [cfg.name]),
		"severity": "error",
	}
}

deny contains violation if {
	cfg := input.configuration
	name := cfg.artefact.full_name
	some sep in ["/", "\\", " ", "\t"]
	contains(name, sep)
	violation := {
		"message": sprintf("Artefact name '%s' of configuration '%s' must be a plain file name", [name, cfg.name]),
		"severity": "error",
	}
}
`,
	}
}

// sourceFoldersPolicy requires every configuration to compile something
// from absolute folders.
func sourceFoldersPolicy() Policy {
	return Policy{
		Name:        "source-folders",
		Description: "Configurations must have at least one source folder, given as an absolute path",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"sources"},
		Rego: `package xbuild.policies.sources

import rego.v1

has_sources(cfg) if {
	count(cfg.source_folders) > 0
}

deny contains violation if {
	cfg := input.configuration
	not has_sources(cfg)
	violation := {
		"message": sprintf("Configuration '%s' has no source folders", [cfg.name]),
		"severity": "error",
	}
}

deny contains violation if {
	cfg := input.configuration
	some folder in cfg.source_folders
	not regex.match("^([A-Za-z]:)?[/\\\\]", folder)
	violation := {
		"message": sprintf("Source folder '%s' of configuration '%s' is not absolute", [folder, cfg.name]),
		"severity": "error",
	}
}
`,
	}
}

// debugSymbolsPolicy warns when a debug profile does not define DEBUG.
func debugSymbolsPolicy() Policy {
	return Policy{
		Name:        "debug-symbols",
		Description: "Configurations using a debug profile should define a DEBUG symbol",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"symbols", "profiles"},
		Rego: `package xbuild.policies.debug

import rego.v1

is_debug(cfg) if {
	some profile in cfg.profiles
	contains(lower(profile), "debug")
}

defines_debug(cfg) if {
	some symbol in cfg.add_symbols
	startswith(symbol, "DEBUG")
}

deny contains violation if {
	cfg := input.configuration
	is_debug(cfg)
	not defines_debug(cfg)
	violation := {
		"message": sprintf("Configuration '%s' uses a debug profile but does not define DEBUG", [cfg.name]),
		"severity": "warning",
	}
}
`,
	}
}

// symbolConflictsPolicy reports symbols that are both added and removed.
func symbolConflictsPolicy() Policy {
	return Policy{
		Name:        "symbol-conflicts",
		Description: "Reports symbols that a configuration both adds and removes",
		Severity:    SeverityInfo,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"symbols"},
		Rego: `package xbuild.policies.symbols

import rego.v1

deny contains violation if {
	cfg := input.configuration
	some symbol in cfg.add_symbols
	some removed in cfg.remove_symbols
	symbol == removed
	violation := {
		"message": sprintf("Symbol '%s' is both added and removed in configuration '%s'", [symbol, cfg.name]),
		"severity": "info",
	}
}
`,
	}
}
