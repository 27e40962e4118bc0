package elf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/DylanMcBean/Exepose/diagnostics"
)

// Resources:
// https://refspecs.linuxfoundation.org/

// File is the decoded, validated model of an elf file.  A File is never
// modified after decoding and is safe for concurrent reads.
type File struct {
	FileSize uint64

	Header ElfHeader

	// OperatingSystemABI is the identifier's os/abi, or
	// OperatingSystemABINone when the identifier value is unknown.
	OperatingSystemABI OperatingSystemABI

	ProgramHeaders []ProgramHeaderEntry

	// Sections are in section header table order.
	Sections     []*Section
	SectionNames SectionNameMap

	// Symbols is the static (.symtab) symbol table.  It is never nil; check
	// IsPresent for stripped binaries.
	Symbols        *SymbolTable
	DynamicSymbols *SymbolTable

	Notes []Note

	sectionsByOffset []*Section
}

// GetSection returns the first section (in table order) with the given name.
func (file *File) GetSection(name string) (*Section, bool) {
	for _, section := range file.Sections {
		if section.Name == name {
			return section, true
		}
	}

	return nil, false
}

// SectionsByOffset returns the sections stably sorted by file offset.
func (file *File) SectionsByOffset() []*Section {
	result := make([]*Section, len(file.sectionsByOffset))
	copy(result, file.sectionsByOffset)
	return result
}

type parser struct {
	reader *reader
	sink   diagnostics.Sink

	binary.ByteOrder

	layout     layout
	identifier Identifier

	File
}

// Open decodes the named elf file.  The file is always closed before Open
// returns.
func Open(name string, sink diagnostics.Sink) (*File, error) {
	if sink == nil {
		sink = diagnostics.Discard
	}

	file, err := os.Open(name)
	if err != nil {
		p := &parser{sink: sink}
		return nil, p.fail(
			ErrOpenFailed,
			"failed to open file",
			diagnostics.Fields{"path": name},
			err)
	}
	defer file.Close()

	return Decode(file, sink)
}

// Decode decodes an elf file from source.  The source is borrowed; it is
// neither closed nor rewound.
func Decode(source io.ReadSeeker, sink diagnostics.Sink) (*File, error) {
	if sink == nil {
		sink = diagnostics.Discard
	}

	p := &parser{sink: sink}

	r, err := newReader(source)
	if err != nil {
		return nil, p.fail(
			ErrTruncatedInput,
			"failed to read input",
			nil,
			err)
	}
	p.reader = r
	p.FileSize = r.size

	err = p.parse()
	if err != nil {
		return nil, err
	}

	return &p.File, nil
}

func DecodeBytes(content []byte, sink diagnostics.Sink) (*File, error) {
	return Decode(bytes.NewReader(content), sink)
}

func (p *parser) parse() error {
	err := p.parseIdentifier()
	if err != nil {
		return err
	}

	err = p.parseHeader()
	if err != nil {
		return err
	}

	err = p.validateIdentifier()
	if err != nil {
		return err
	}

	err = p.parseProgramHeaders()
	if err != nil {
		return err
	}

	err = p.parseSectionHeaders()
	if err != nil {
		return err
	}

	err = p.resolveSectionNames()
	if err != nil {
		return err
	}

	err = p.resolveSymbolTables()
	if err != nil {
		return err
	}

	err = p.checkSectionExtents()
	if err != nil {
		return err
	}

	p.parseNotes()

	p.emit(
		diagnostics.Debug,
		CodeDecodeComplete,
		"decode complete",
		diagnostics.Fields{
			"file_size":    p.FileSize,
			"num_segments": len(p.ProgramHeaders),
			"num_sections": len(p.Sections),
			"num_symbols":  len(p.Symbols.Symbols),
			"num_dynsyms":  len(p.DynamicSymbols.Symbols),
			"num_notes":    len(p.Notes),
			"os_abi":       p.OperatingSystemABI.String(),
		})
	return nil
}

func (p *parser) parseHeader() error {
	size := p.layout.headerSize()

	content, err := p.reader.readAt(0, uint64(size))
	if err != nil {
		return p.fail(
			ErrTruncatedHeader,
			"incomplete header read",
			diagnostics.Fields{
				"header_size": size,
				"file_size":   p.reader.size,
			},
			err)
	}

	header, err := p.layout.decodeHeader(content, p.ByteOrder)
	if err != nil {
		return p.fail(
			ErrTruncatedHeader,
			"failed to decode header",
			nil,
			err)
	}
	p.Header = header

	p.emit(
		diagnostics.Debug,
		CodeHeaderDecoded,
		"header decoded",
		diagnostics.Fields{
			"class":   header.Class().String(),
			"type":    header.Type().String(),
			"machine": header.Machine().String(),
		})
	return nil
}

func (p *parser) emit(
	level diagnostics.Level,
	code diagnostics.Code,
	message string,
	fields diagnostics.Fields,
) {
	p.sink.Emit(
		diagnostics.Event{
			Level:   level,
			Code:    code,
			Message: message,
			Fields:  fields,
		})
}

// fail emits an error event and returns the matching *DecodeError.  The
// error's message is the event message followed by the sorted fields.
func (p *parser) fail(
	kind ErrorKind,
	message string,
	fields diagnostics.Fields,
	err error,
) error {
	p.emit(diagnostics.Error, kind.Code(), message, fields)

	return &DecodeError{
		Kind:    kind,
		Message: formatMessage(message, fields),
		Err:     err,
	}
}

func formatMessage(message string, fields diagnostics.Fields) string {
	if len(fields) == 0 {
		return message
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, fields[key]))
	}

	return fmt.Sprintf("%s (%s)", message, strings.Join(parts, " "))
}
