// Package config reads project and package descriptors for xbuild.
//
// # Overview
//
// The config package implements the descriptor phase of a resolution:
// finding the project descriptor, decoding it, extracting the recognized
// fields and validating the mandatory references of every configuration.
// It also reads the package.json of installed xPacks for the dependency
// discoverer.
//
// # Components
//
// FileCache: Memoizes decoded descriptor files and directory listings by
// absolute path. JSON, YAML and CUE files are supported; CUE files are
// exported to JSON before decoding.
//
// Parser: Decodes ProjectDescriptor and PackageDescriptor values. Fields are
// extracted against fixed allow-lists; anything else is collected in
// ProjectDescriptor.Ignored and logged as a warning.
//
// SchemaRegistry: Holds CUE schemas (#Project, #Package, #Toolchains) used
// by "xbuild validate" to report every violation with its position.
//
// Watcher: Reports descriptor changes with fsnotify for watch mode.
//
// # Project Descriptor
//
// A minimal xmake.json:
//
//	{
//	  "schemaVersion": "0.2.0",
//	  "name": "blinky",
//	  "targets": {
//	    "stm32f4": { "addSourceFolders": ["src"], "language": "c" }
//	  },
//	  "profiles": {
//	    "debug": { "addSymbols": ["DEBUG"] }
//	  },
//	  "configurations": {
//	    "stm32f4-debug": {
//	      "target": "stm32f4",
//	      "toolchain": "arm-none-eabi-gcc",
//	      "profiles": ["debug"]
//	    }
//	  }
//	}
//
// The same document may be written as xmake.yaml or xmake.cue.
//
// # Error Handling
//
// Syntax errors are engine parse errors; wrong value shapes, a missing
// mandatory field and an unsupported schemaVersion are schema errors;
// missing files are IO errors.
//
// # Thread Safety
//
// FileCache, Parser and SchemaRegistry are safe for concurrent use.
package config
