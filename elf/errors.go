package elf

import (
	"errors"
	"fmt"

	"github.com/DylanMcBean/Exepose/diagnostics"
)

// ErrorKind identifies why a decode failed.  Kinds are comparable error
// values, so errors.Is(err, ErrBadMagic) matches any *DecodeError of that
// kind.
type ErrorKind uint16

const (
	ErrOpenFailed = ErrorKind(0x0101 + iota)
	ErrTruncatedInput
	ErrBadMagic
	ErrBadClass
	ErrBadEncoding
	ErrVersionMismatch
	ErrWidthMismatch
	ErrTruncatedHeader
	ErrTruncatedProgramHeader
	ErrProgramHeaderOutOfBounds
	ErrTruncatedSectionHeader
	ErrSectionOffsetExceedsFile
	ErrOverlappingSections
	ErrInvalidStringTableIndex
	ErrInvalidStringTableSize
	ErrTruncatedStringTable
	ErrInvalidNameOffset
	ErrMissingDynamicTable
	ErrInvalidSymbolTableSize
	ErrTruncatedRead
	ErrInvalidSymbolNameOffset
)

var errorKindNames = map[ErrorKind]string{
	ErrOpenFailed:               "OpenFailed",
	ErrTruncatedInput:           "TruncatedInput",
	ErrBadMagic:                 "BadMagic",
	ErrBadClass:                 "BadClass",
	ErrBadEncoding:              "BadEncoding",
	ErrVersionMismatch:          "VersionMismatch",
	ErrWidthMismatch:            "WidthMismatch",
	ErrTruncatedHeader:          "TruncatedHeader",
	ErrTruncatedProgramHeader:   "TruncatedProgramHeader",
	ErrProgramHeaderOutOfBounds: "ProgramHeaderOutOfBounds",
	ErrTruncatedSectionHeader:   "TruncatedSectionHeader",
	ErrSectionOffsetExceedsFile: "SectionOffsetExceedsFile",
	ErrOverlappingSections:      "OverlappingSections",
	ErrInvalidStringTableIndex:  "InvalidStringTableIndex",
	ErrInvalidStringTableSize:   "InvalidStringTableSize",
	ErrTruncatedStringTable:     "TruncatedStringTable",
	ErrInvalidNameOffset:        "InvalidNameOffset",
	ErrMissingDynamicTable:      "MissingDynamicTable",
	ErrInvalidSymbolTableSize:   "InvalidSymbolTableSize",
	ErrTruncatedRead:            "TruncatedRead",
	ErrInvalidSymbolNameOffset:  "InvalidSymbolNameOffset",
}

func (kind ErrorKind) String() string {
	return nameOf(errorKindNames, kind, "ErrorKindUnknown(%#x)")
}

func (kind ErrorKind) Error() string {
	return kind.String()
}

// Code is the diagnostic code emitted alongside errors of this kind.
func (kind ErrorKind) Code() diagnostics.Code {
	return diagnostics.Code(kind)
}

type DecodeError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (err *DecodeError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("%s: %s: %s", err.Kind, err.Message, err.Err)
	}
	return fmt.Sprintf("%s: %s", err.Kind, err.Message)
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

func (err *DecodeError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == err.Kind
}

// KindOf returns the kind of the first *DecodeError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr.Kind, true
	}
	return 0, false
}
