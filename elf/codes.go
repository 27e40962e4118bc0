package elf

import (
	"github.com/DylanMcBean/Exepose/diagnostics"
)

// Progress events (debug level).
const (
	CodeIdentifierRead = diagnostics.Code(0x0001 + iota)
	CodeHeaderDecoded
	CodeProgramHeadersRead
	CodeSectionHeadersRead
	CodeSectionNamesResolved
	CodeSymbolTableResolved
	CodeNotesDecoded
	CodeDecodeComplete
)

// Non-fatal anomalies (warning level).  Error level events reuse the
// ErrorKind values as codes (0x01xx).
const (
	CodeUnknownOperatingSystemABI = diagnostics.Code(0x0201 + iota)
	CodeNonZeroPadding
	CodeEntrySizeMismatch
	CodeCoincidentSections
	CodeEmptySectionInsideSection
	CodeIncompleteStaticSymbolTable
	CodeSymbolTableLinkMismatch
	CodeMalformedNote
	CodeDuplicateSectionName
)

// Informational events.
const (
	CodeStaticSymbolTableAbsent = diagnostics.Code(0x0301 + iota)
)
