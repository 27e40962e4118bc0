package elf

import (
	"encoding/binary"
	"fmt"
)

// Header structs matching c's elf32 / elf64 definitions.  These are only
// used for decoding; every entry is widened to the class independent
// ProgramHeaderEntry / SectionHeaderEntry / SymbolEntry right after decoding.

// e_ident
type Identifier struct {
	Magic              [4]byte // EI_MAG0 ... EI_MAG3
	Class                      // EI_CLASS
	DataEncoding               // EI_DATA
	IdentifierVersion  byte    // EI_VERSION
	OperatingSystemABI         // EI_OSABI
	ABIVersion         byte    // EI_ABIVERSION
	Padding            [7]byte // EI_PAD
}

// TableLocation describes where a fixed-size entry table lives in the file.
type TableLocation struct {
	Offset    uint64
	EntrySize uint16
	Count     uint16
}

// ElfHeader is the decoded file header.  The concrete type is either
// *Elf32Header or *Elf64Header; the set is closed.
type ElfHeader interface {
	Identifier() Identifier

	// Class is the width of the concrete header layout, which is not
	// necessarily the class recorded in the identifier.
	Class() Class

	Type() FileType
	Machine() MachineArchitecture
	Version() uint32
	Entry() uint64
	Flags() uint32
	HeaderSize() uint16
	ProgramHeaderTable() TableLocation
	SectionHeaderTable() TableLocation
	SectionStringTableIndex() SectionIndex

	isElfHeader()
}

// Elf32_Ehdr
type Elf32Header struct {
	Ident                   Identifier   // e_ident[EI_NIDENT]
	FileType                             // e_type
	MachineArchitecture                  // e_machine
	FormatVersion           uint32       // e_version
	EntryPointAddress       uint32       // e_entry
	ProgramHeaderOffset     uint32       // e_phoff
	SectionHeaderOffset     uint32       // e_shoff
	ArchitectureFlags       uint32       // e_flags
	ElfHeaderSize           uint16       // e_ehsize
	ProgramHeaderEntrySize  uint16       // e_phentsize
	NumProgramHeaderEntries uint16       // e_phnum
	SectionHeaderEntrySize  uint16       // e_shentsize
	NumSectionHeaderEntries uint16       // e_shnum
	SectionNameTableIndex   SectionIndex // e_shstrndx
}

func (*Elf32Header) isElfHeader() {}

func (*Elf32Header) Class() Class { return Class32 }

func (hdr *Elf32Header) Identifier() Identifier {
	return hdr.Ident
}

func (hdr *Elf32Header) Type() FileType {
	return hdr.FileType
}

func (hdr *Elf32Header) Machine() MachineArchitecture {
	return hdr.MachineArchitecture
}

func (hdr *Elf32Header) Version() uint32 {
	return hdr.FormatVersion
}

func (hdr *Elf32Header) Entry() uint64 {
	return uint64(hdr.EntryPointAddress)
}

func (hdr *Elf32Header) Flags() uint32 {
	return hdr.ArchitectureFlags
}

func (hdr *Elf32Header) HeaderSize() uint16 {
	return hdr.ElfHeaderSize
}

func (hdr *Elf32Header) SectionStringTableIndex() SectionIndex {
	return hdr.SectionNameTableIndex
}

func (hdr *Elf32Header) ProgramHeaderTable() TableLocation {
	return TableLocation{
		Offset:    uint64(hdr.ProgramHeaderOffset),
		EntrySize: hdr.ProgramHeaderEntrySize,
		Count:     hdr.NumProgramHeaderEntries,
	}
}

func (hdr *Elf32Header) SectionHeaderTable() TableLocation {
	return TableLocation{
		Offset:    uint64(hdr.SectionHeaderOffset),
		EntrySize: hdr.SectionHeaderEntrySize,
		Count:     hdr.NumSectionHeaderEntries,
	}
}

// Elf64_Ehdr
type Elf64Header struct {
	Ident                   Identifier   // e_ident[EI_NIDENT]
	FileType                             // e_type
	MachineArchitecture                  // e_machine
	FormatVersion           uint32       // e_version
	EntryPointAddress       uint64       // e_entry
	ProgramHeaderOffset     uint64       // e_phoff
	SectionHeaderOffset     uint64       // e_shoff
	ArchitectureFlags       uint32       // e_flags
	ElfHeaderSize           uint16       // e_ehsize
	ProgramHeaderEntrySize  uint16       // e_phentsize
	NumProgramHeaderEntries uint16       // e_phnum
	SectionHeaderEntrySize  uint16       // e_shentsize
	NumSectionHeaderEntries uint16       // e_shnum
	SectionNameTableIndex   SectionIndex // e_shstrndx
}

func (*Elf64Header) isElfHeader() {}

func (*Elf64Header) Class() Class { return Class64 }

func (hdr *Elf64Header) Identifier() Identifier {
	return hdr.Ident
}

func (hdr *Elf64Header) Type() FileType {
	return hdr.FileType
}

func (hdr *Elf64Header) Machine() MachineArchitecture {
	return hdr.MachineArchitecture
}

func (hdr *Elf64Header) Version() uint32 {
	return hdr.FormatVersion
}

func (hdr *Elf64Header) Entry() uint64 {
	return hdr.EntryPointAddress
}

func (hdr *Elf64Header) Flags() uint32 {
	return hdr.ArchitectureFlags
}

func (hdr *Elf64Header) HeaderSize() uint16 {
	return hdr.ElfHeaderSize
}

func (hdr *Elf64Header) SectionStringTableIndex() SectionIndex {
	return hdr.SectionNameTableIndex
}

func (hdr *Elf64Header) ProgramHeaderTable() TableLocation {
	return TableLocation{
		Offset:    hdr.ProgramHeaderOffset,
		EntrySize: hdr.ProgramHeaderEntrySize,
		Count:     hdr.NumProgramHeaderEntries,
	}
}

func (hdr *Elf64Header) SectionHeaderTable() TableLocation {
	return TableLocation{
		Offset:    hdr.SectionHeaderOffset,
		EntrySize: hdr.SectionHeaderEntrySize,
		Count:     hdr.NumSectionHeaderEntries,
	}
}

// Class independent Elf{32,64}_Phdr
type ProgramHeaderEntry struct {
	ProgramType            // p_type
	ProgramFlags           // p_flags
	ContentOffset   uint64 // p_offset
	VirtualAddress  uint64 // p_vaddr
	PhysicalAddress uint64 // p_paddr
	FileImageSize   uint64 // p_filesz
	MemoryImageSize uint64 // p_memsz
	Alignment       uint64 // p_align
}

// Elf32_Phdr.  Note that p_flags moved in elf64.
type Elf32ProgramHeader struct {
	ProgramType            // p_type
	ContentOffset   uint32 // p_offset
	VirtualAddress  uint32 // p_vaddr
	PhysicalAddress uint32 // p_paddr
	FileImageSize   uint32 // p_filesz
	MemoryImageSize uint32 // p_memsz
	ProgramFlags           // p_flags
	Alignment       uint32 // p_align
}

func (ph Elf32ProgramHeader) entry() ProgramHeaderEntry {
	return ProgramHeaderEntry{
		ProgramType:     ph.ProgramType,
		ProgramFlags:    ph.ProgramFlags,
		ContentOffset:   uint64(ph.ContentOffset),
		VirtualAddress:  uint64(ph.VirtualAddress),
		PhysicalAddress: uint64(ph.PhysicalAddress),
		FileImageSize:   uint64(ph.FileImageSize),
		MemoryImageSize: uint64(ph.MemoryImageSize),
		Alignment:       uint64(ph.Alignment),
	}
}

// Elf64_Phdr
type Elf64ProgramHeader ProgramHeaderEntry

func (ph Elf64ProgramHeader) entry() ProgramHeaderEntry {
	return ProgramHeaderEntry(ph)
}

// Class independent Elf{32,64}_Shdr
type SectionHeaderEntry struct {
	NameIndex        uint32 // sh_name
	SectionType             // sh_type
	SectionFlags            // sh_flags
	Address          uint64 // sh_addr
	Offset           uint64 // sh_offset
	Size             uint64 // sh_size
	Link             uint32 // sh_link
	Info             uint32 // sh_info
	AddressAlignment uint64 // sh_addralign
	EntrySize        uint64 // sh_entsize
}

// Elf32_Shdr
type Elf32SectionHeader struct {
	NameIndex        uint32 // sh_name
	SectionType             // sh_type
	Flags            uint32 // sh_flags
	Address          uint32 // sh_addr
	Offset           uint32 // sh_offset
	Size             uint32 // sh_size
	Link             uint32 // sh_link
	Info             uint32 // sh_info
	AddressAlignment uint32 // sh_addralign
	EntrySize        uint32 // sh_entsize
}

func (sh Elf32SectionHeader) entry() SectionHeaderEntry {
	return SectionHeaderEntry{
		NameIndex:        sh.NameIndex,
		SectionType:      sh.SectionType,
		SectionFlags:     SectionFlags(sh.Flags),
		Address:          uint64(sh.Address),
		Offset:           uint64(sh.Offset),
		Size:             uint64(sh.Size),
		Link:             sh.Link,
		Info:             sh.Info,
		AddressAlignment: uint64(sh.AddressAlignment),
		EntrySize:        uint64(sh.EntrySize),
	}
}

// Elf64_Shdr
type Elf64SectionHeader SectionHeaderEntry

func (sh Elf64SectionHeader) entry() SectionHeaderEntry {
	return SectionHeaderEntry(sh)
}

// Class independent Elf{32,64}_Sym
type SymbolEntry struct {
	NameIndex        uint32 // st_name
	Info             byte   // st_info.  (4 bits st_bind, 4 bits st_type)
	SymbolVisibility        // st_other
	SectionIndex            // st_shndx
	Value            uint64 // st_value
	Size             uint64 // st_size
}

// Elf32_Sym
type Elf32Symbol struct {
	NameIndex        uint32 // st_name
	Value            uint32 // st_value
	Size             uint32 // st_size
	Info             byte   // st_info
	SymbolVisibility        // st_other
	SectionIndex            // st_shndx
}

func (sym Elf32Symbol) entry() SymbolEntry {
	return SymbolEntry{
		NameIndex:        sym.NameIndex,
		Info:             sym.Info,
		SymbolVisibility: sym.SymbolVisibility,
		SectionIndex:     sym.SectionIndex,
		Value:            uint64(sym.Value),
		Size:             uint64(sym.Size),
	}
}

// Elf64_Sym
type Elf64Symbol SymbolEntry

func (sym Elf64Symbol) entry() SymbolEntry {
	return SymbolEntry(sym)
}

// NOTE: Although Elf64_Nhdr is defined, it looks like notes in elf64 files
// are still encoded using Elf32_Nhdr.
// Elf32_Nhdr
type NoteHeader struct {
	NameSize        uint32
	DescriptionSize uint32
	Type            uint32
}

type programLayout interface {
	Elf32ProgramHeader | Elf64ProgramHeader
	entry() ProgramHeaderEntry
}

type sectionLayout interface {
	Elf32SectionHeader | Elf64SectionHeader
	entry() SectionHeaderEntry
}

type symbolLayout interface {
	Elf32Symbol | Elf64Symbol
	entry() SymbolEntry
}

type widenable[E any] interface {
	entry() E
}

// layout decodes the class specific on-disk structs.  There is exactly one
// layout per class; every stage after header decoding goes through it.
type layout interface {
	class() Class

	headerSize() int
	programHeaderSize() int
	sectionHeaderSize() int
	symbolSize() int

	decodeHeader(content []byte, order binary.ByteOrder) (ElfHeader, error)
	decodeProgramHeaders(
		content []byte,
		order binary.ByteOrder,
	) (
		[]ProgramHeaderEntry,
		error,
	)
	decodeSectionHeaders(
		content []byte,
		order binary.ByteOrder,
	) (
		[]SectionHeaderEntry,
		error,
	)
	decodeSymbols(content []byte, order binary.ByteOrder) ([]SymbolEntry, error)
}

type classLayout[
	H any,
	PH interface {
		*H
		ElfHeader
	},
	P programLayout,
	S sectionLayout,
	Y symbolLayout,
] struct {
	cls Class
}

var layouts = map[Class]layout{
	Class32: classLayout[
		Elf32Header,
		*Elf32Header,
		Elf32ProgramHeader,
		Elf32SectionHeader,
		Elf32Symbol,
	]{cls: Class32},
	Class64: classLayout[
		Elf64Header,
		*Elf64Header,
		Elf64ProgramHeader,
		Elf64SectionHeader,
		Elf64Symbol,
	]{cls: Class64},
}

func (l classLayout[H, PH, P, S, Y]) class() Class {
	return l.cls
}

func (classLayout[H, PH, P, S, Y]) headerSize() int {
	var hdr H
	return binary.Size(hdr)
}

func (classLayout[H, PH, P, S, Y]) programHeaderSize() int {
	var entry P
	return binary.Size(entry)
}

func (classLayout[H, PH, P, S, Y]) sectionHeaderSize() int {
	var entry S
	return binary.Size(entry)
}

func (classLayout[H, PH, P, S, Y]) symbolSize() int {
	var entry Y
	return binary.Size(entry)
}

func (l classLayout[H, PH, P, S, Y]) decodeHeader(
	content []byte,
	order binary.ByteOrder,
) (
	ElfHeader,
	error,
) {
	hdr := PH(new(H))
	n, err := binary.Decode(content, order, hdr)
	if err != nil {
		return nil, err
	}

	if n != l.headerSize() {
		panic("should never happen")
	}

	return hdr, nil
}

func (classLayout[H, PH, P, S, Y]) decodeProgramHeaders(
	content []byte,
	order binary.ByteOrder,
) (
	[]ProgramHeaderEntry,
	error,
) {
	return decodeEntries[P, ProgramHeaderEntry](content, order)
}

func (classLayout[H, PH, P, S, Y]) decodeSectionHeaders(
	content []byte,
	order binary.ByteOrder,
) (
	[]SectionHeaderEntry,
	error,
) {
	return decodeEntries[S, SectionHeaderEntry](content, order)
}

func (classLayout[H, PH, P, S, Y]) decodeSymbols(
	content []byte,
	order binary.ByteOrder,
) (
	[]SymbolEntry,
	error,
) {
	return decodeEntries[Y, SymbolEntry](content, order)
}

// decodeEntries decodes content as a packed array of R and widens each
// entry.  len(content) must be a multiple of R's encoded size.
func decodeEntries[R widenable[E], E any](
	content []byte,
	order binary.ByteOrder,
) (
	[]E,
	error,
) {
	var zero R
	size := binary.Size(zero)
	if size <= 0 || len(content)%size != 0 {
		return nil, fmt.Errorf(
			"content size (%d) is not a multiple of entry size (%d)",
			len(content),
			size)
	}

	raw := make([]R, len(content)/size)
	n, err := binary.Decode(content, order, raw)
	if err != nil {
		return nil, err
	}
	if n != len(content) {
		panic("should never happen")
	}

	entries := make([]E, 0, len(raw))
	for _, record := range raw {
		entries = append(entries, record.entry())
	}

	return entries, nil
}
