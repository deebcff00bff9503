// Package options implements the configuration merge engine.
//
// Every value type here carries parallel "add" and "remove" string lists
// under fixed descriptor property names (addSourceFolders/removeSourceFolders,
// addSymbols/removeSymbols, ...). Layers are combined with AppendFrom, which
// concatenates lists in place without deduplication; the resolver drives the
// layering order:
//
//	project -> dependencies -> target -> profiles... -> configuration
//
// Only Sources collapses its lists into a final set (Folders). Includes and
// Symbols keep their flat add and remove lists for the build tree stage.
//
// ToolchainOptions bags are filtered by toolchain ancestry, and Artefact
// fields are filled by precedence with FillFrom.
package options
