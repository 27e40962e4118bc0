// Package render prints the decoded elf model as column aligned tables.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/DylanMcBean/Exepose/elf"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

func row(w io.Writer, columns ...interface{}) {
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		parts = append(parts, fmt.Sprint(column))
	}
	fmt.Fprintln(w, strings.Join(parts, "\t"))
}

// Hex formats a numeric field as lowercase hex suffixed with 'h'.
func Hex(value uint64) string {
	return fmt.Sprintf("%xh", value)
}

func Header(w io.Writer, file *elf.File) error {
	hdr := file.Header
	id := hdr.Identifier()
	phTable := hdr.ProgramHeaderTable()
	shTable := hdr.SectionHeaderTable()

	table := newTable(w)
	row(table, "Magic:", elf.EscapeBytes(id.Magic[:]))
	row(table, "Class:", hdr.Class())
	row(table, "Data:", id.DataEncoding)
	row(table, "Version:", id.IdentifierVersion)
	row(table, "OS/ABI:", file.OperatingSystemABI)
	row(table, "ABI Version:", id.ABIVersion)
	row(table, "Type:", hdr.Type())
	row(table, "Machine:", hdr.Machine())
	row(table, "Entry point:", Hex(hdr.Entry()))
	row(table, "Flags:", Hex(uint64(hdr.Flags())))
	row(table, "Header size:", hdr.HeaderSize())
	row(
		table,
		"Program headers:",
		fmt.Sprintf(
			"%d x %d bytes at %s",
			phTable.Count,
			phTable.EntrySize,
			Hex(phTable.Offset)))
	row(
		table,
		"Section headers:",
		fmt.Sprintf(
			"%d x %d bytes at %s",
			shTable.Count,
			shTable.EntrySize,
			Hex(shTable.Offset)))
	row(table, "Section names:", hdr.SectionStringTableIndex())
	row(table, "File size:", file.FileSize)
	return table.Flush()
}

func ProgramHeaders(w io.Writer, file *elf.File) error {
	table := newTable(w)
	row(
		table,
		"Index",
		"Type",
		"Flags",
		"Offset",
		"Virtual Address",
		"Physical Address",
		"File Size",
		"Memory Size",
		"Alignment")

	for idx, entry := range file.ProgramHeaders {
		row(
			table,
			idx,
			entry.ProgramType,
			entry.ProgramFlags,
			Hex(entry.ContentOffset),
			Hex(entry.VirtualAddress),
			Hex(entry.PhysicalAddress),
			Hex(entry.FileImageSize),
			Hex(entry.MemoryImageSize),
			Hex(entry.Alignment))
	}

	return table.Flush()
}

// SectionHeaders prints every section in section header table order.
func SectionHeaders(w io.Writer, file *elf.File) error {
	table := newTable(w)
	row(
		table,
		"Index",
		"Name",
		"Type",
		"Flags",
		"Address",
		"Offset",
		"Size",
		"Link",
		"Info",
		"Alignment",
		"Entry Size")

	for _, section := range file.Sections {
		row(
			table,
			section.Index,
			section.Name,
			section.SectionType,
			section.SectionFlags,
			Hex(section.Address),
			Hex(section.Offset),
			Hex(section.Size),
			Hex(uint64(section.Link)),
			Hex(uint64(section.Info)),
			Hex(section.AddressAlignment),
			Hex(section.EntrySize))
	}

	return table.Flush()
}

// Symbols prints the table's symbols whose name contains filter.  An empty
// filter matches everything.
func Symbols(
	w io.Writer,
	symbols *elf.SymbolTable,
	filter string,
	demangle bool,
) error {
	if !symbols.IsPresent() {
		_, err := fmt.Fprintln(w, "(no symbol table)")
		return err
	}

	table := newTable(w)
	row(
		table,
		"Index",
		"Value",
		"Size",
		"Type",
		"Binding",
		"Visibility",
		"Section",
		"Name")

	for _, symbol := range symbols.Symbols {
		name := symbol.Name
		if demangle {
			name = symbol.PrettyName()
		}

		if filter != "" &&
			!strings.Contains(symbol.Name, filter) &&
			!strings.Contains(name, filter) {

			continue
		}

		row(
			table,
			symbol.Index,
			Hex(symbol.Value),
			symbol.Size,
			symbol.Type(),
			symbol.Binding(),
			symbol.SymbolVisibility,
			symbol.SectionIndex,
			name)
	}

	return table.Flush()
}

func Notes(w io.Writer, file *elf.File) error {
	table := newTable(w)
	row(table, "Section", "Owner", "Type", "Description")

	for _, note := range file.Notes {
		row(
			table,
			file.SectionNames[note.SectionIndex],
			note.Name,
			Hex(uint64(note.Type)),
			fmt.Sprintf("%x", note.Description))
	}

	return table.Flush()
}
