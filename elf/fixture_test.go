package elf

import (
	"encoding/binary"
)

// In-memory elf images for tests.  Images are laid out as
//
//	[header][program headers][section contents (8-byte aligned)][section headers]
//
// with the null section at index 0 and .shstrtab as the last section.

type testHeader struct {
	ident     Identifier
	fileType  FileType
	machine   MachineArchitecture
	version   uint32
	entry     uint64
	phoff     uint64
	shoff     uint64
	flags     uint32
	ehsize    uint16
	phentsize uint16
	phnum     uint16
	shentsize uint16
	shnum     uint16
	shstrndx  SectionIndex
}

type testSection struct {
	name    string
	stype   SectionType
	flags   SectionFlags
	content []byte
	size    uint64 // SHT_NOBITS only
	link    uint32
	entsize uint64
}

type testSymbol struct {
	name  string
	value uint64
	size  uint64
	info  byte
	shndx SectionIndex
}

type testFile struct {
	class    Class
	order    binary.ByteOrder
	entry    uint64
	sections []*testSection
	segments []ProgramHeaderEntry
}

func newTestFile(class Class, order binary.ByteOrder) *testFile {
	return &testFile{
		class: class,
		order: order,
	}
}

// newDefaultTestFile returns an image with a text section, both symbol table
// pairs, a note section and a bss section.
func newDefaultTestFile(class Class, order binary.ByteOrder) *testFile {
	file := newTestFile(class, order)
	file.entry = 0x1000

	text := file.addSection(
		&testSection{
			name:    ".text",
			stype:   SectionTypeProgramDefinedInfo,
			flags:   SectionOccupiesMemory | SectionContainsInstructions,
			content: []byte("0123456789abcdef"),
		})

	file.addSymbolTable(
		DynamicSymbolTableName,
		DynamicSymbolStringTableName,
		SectionTypeDynamicSymbolTable,
		[]testSymbol{
			{
				name: "puts",
				info: byte(SymbolBindingGlobal)<<4 | byte(SymbolTypeFunction),
			},
		})

	file.addSymbolTable(
		SymbolTableName,
		StringTableName,
		SectionTypeSymbolTable,
		[]testSymbol{
			{
				name:  "_start",
				value: 0x1000,
				size:  8,
				info:  byte(SymbolBindingGlobal)<<4 | byte(SymbolTypeFunction),
				shndx: SectionIndex(text),
			},
			{
				name:  "_ZN3foo3barEv",
				value: 0x1008,
				size:  8,
				info:  byte(SymbolBindingLocal)<<4 | byte(SymbolTypeFunction),
				shndx: SectionIndex(text),
			},
		})

	file.addSection(
		&testSection{
			name:    ".note.gnu.build-id",
			stype:   SectionTypeNote,
			flags:   SectionOccupiesMemory,
			content: file.note("GNU", "\x01\x02\x03\x04\x05", 3),
		})

	file.addSection(
		&testSection{
			name:  ".bss",
			stype: SectionTypeNoSpace,
			flags: SectionOccupiesMemory | SectionContainsWritableData,
			size:  0x10000,
		})

	file.segments = append(
		file.segments,
		ProgramHeaderEntry{
			ProgramType:     ProgramLoadable,
			ProgramFlags:    ProgramFlagReadableBit | ProgramFlagExecutableBit,
			ContentOffset:   0,
			VirtualAddress:  0,
			PhysicalAddress: 0,
			FileImageSize:   uint64(file.headerSize()),
			MemoryImageSize: uint64(file.headerSize()),
			Alignment:       0x1000,
		})

	return file
}

func (file *testFile) headerSize() int {
	if file.class == Class32 {
		return Elf32HeaderSize
	}
	return Elf64HeaderSize
}

func (file *testFile) programHeaderSize() int {
	if file.class == Class32 {
		return Elf32ProgramHeaderEntrySize
	}
	return Elf64ProgramHeaderEntrySize
}

func (file *testFile) sectionHeaderSize() int {
	if file.class == Class32 {
		return Elf32SectionHeaderEntrySize
	}
	return Elf64SectionHeaderEntrySize
}

func (file *testFile) symbolSize() int {
	if file.class == Class32 {
		return Elf32SymbolEntrySize
	}
	return Elf64SymbolEntrySize
}

// addSection returns the section's table index.
func (file *testFile) addSection(section *testSection) int {
	file.sections = append(file.sections, section)
	return len(file.sections) // index 0 is the null section
}

// addSymbolTable adds a string table followed by its symbol table.  The null
// symbol is prepended.
func (file *testFile) addSymbolTable(
	symbolsName string,
	stringsName string,
	symbolsType SectionType,
	symbols []testSymbol,
) (
	int,
	int,
) {
	names := []byte{0}
	entries := []SymbolEntry{{}}
	for _, symbol := range symbols {
		entries = append(
			entries,
			SymbolEntry{
				NameIndex:    uint32(len(names)),
				Info:         symbol.info,
				SectionIndex: symbol.shndx,
				Value:        symbol.value,
				Size:         symbol.size,
			})
		names = append(names, symbol.name...)
		names = append(names, 0)
	}

	return file.addRawSymbolTable(
		symbolsName,
		stringsName,
		symbolsType,
		entries,
		names)
}

func (file *testFile) addRawSymbolTable(
	symbolsName string,
	stringsName string,
	symbolsType SectionType,
	entries []SymbolEntry,
	names []byte,
) (
	int,
	int,
) {
	stringsIdx := file.addSection(
		&testSection{
			name:    stringsName,
			stype:   SectionTypeStringTable,
			content: names,
		})

	content := []byte{}
	for _, entry := range entries {
		if file.class == Class32 {
			content = mustAppend(
				content,
				file.order,
				Elf32Symbol{
					NameIndex:        entry.NameIndex,
					Value:            uint32(entry.Value),
					Size:             uint32(entry.Size),
					Info:             entry.Info,
					SymbolVisibility: entry.SymbolVisibility,
					SectionIndex:     entry.SectionIndex,
				})
		} else {
			content = mustAppend(content, file.order, Elf64Symbol(entry))
		}
	}

	symbolsIdx := file.addSection(
		&testSection{
			name:    symbolsName,
			stype:   symbolsType,
			content: content,
			link:    uint32(stringsIdx),
			entsize: uint64(file.symbolSize()),
		})

	return symbolsIdx, stringsIdx
}

func (file *testFile) note(name string, desc string, noteType uint32) []byte {
	nameBytes := append([]byte(name), 0)

	content := mustAppend(
		nil,
		file.order,
		NoteHeader{
			NameSize:        uint32(len(nameBytes)),
			DescriptionSize: uint32(len(desc)),
			Type:            noteType,
		})
	content = append(content, pad4(nameBytes)...)
	content = append(content, pad4([]byte(desc))...)
	return content
}

func pad4(data []byte) []byte {
	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	return data
}

func align8(offset uint64) uint64 {
	return ((offset + 7) / 8) * 8
}

func mustAppend(buf []byte, order binary.ByteOrder, data any) []byte {
	result, err := binary.Append(buf, order, data)
	if err != nil {
		panic(err)
	}
	return result
}

type testImage struct {
	file *testFile

	content  []byte
	header   testHeader
	shoff    uint64
	sections []SectionHeaderEntry
	indices  map[string]int
}

func (file *testFile) build() *testImage {
	names := []byte{0}
	nameIndex := func(name string) uint32 {
		if name == "" {
			return 0
		}
		idx := uint32(len(names))
		names = append(names, name...)
		names = append(names, 0)
		return idx
	}

	sections := append(
		[]*testSection{{}},
		file.sections...)
	sections = append(
		sections,
		&testSection{
			name:  SectionStringTableName,
			stype: SectionTypeStringTable,
		})

	nameIndices := make([]uint32, len(sections))
	for idx, section := range sections {
		nameIndices[idx] = nameIndex(section.name)
	}
	sections[len(sections)-1].content = names

	content := make([]byte, file.headerSize())

	phoff := uint64(len(content))
	for _, segment := range file.segments {
		if file.class == Class32 {
			content = mustAppend(
				content,
				file.order,
				Elf32ProgramHeader{
					ProgramType:     segment.ProgramType,
					ContentOffset:   uint32(segment.ContentOffset),
					VirtualAddress:  uint32(segment.VirtualAddress),
					PhysicalAddress: uint32(segment.PhysicalAddress),
					FileImageSize:   uint32(segment.FileImageSize),
					MemoryImageSize: uint32(segment.MemoryImageSize),
					ProgramFlags:    segment.ProgramFlags,
					Alignment:       uint32(segment.Alignment),
				})
		} else {
			content = mustAppend(
				content,
				file.order,
				Elf64ProgramHeader(segment))
		}
	}

	image := &testImage{
		file:    file,
		indices: map[string]int{},
	}

	for idx, section := range sections {
		entry := SectionHeaderEntry{
			NameIndex:    nameIndices[idx],
			SectionType:  section.stype,
			SectionFlags: section.flags,
			Link:         section.link,
			EntrySize:    section.entsize,
		}

		if idx > 0 {
			for uint64(len(content)) < align8(uint64(len(content))) {
				content = append(content, 0)
			}

			entry.Offset = uint64(len(content))
			entry.AddressAlignment = 1
			if section.stype == SectionTypeNoSpace {
				entry.Size = section.size
			} else {
				entry.Size = uint64(len(section.content))
				content = append(content, section.content...)
			}

			if _, ok := image.indices[section.name]; !ok {
				image.indices[section.name] = idx
			}
		}

		image.sections = append(image.sections, entry)
	}

	for uint64(len(content)) < align8(uint64(len(content))) {
		content = append(content, 0)
	}
	shoff := uint64(len(content))
	content = append(
		content,
		make([]byte, len(sections)*file.sectionHeaderSize())...)

	encoding := DataEncodingTwosComplementLittleEndian
	if file.order == binary.BigEndian {
		encoding = DataEncodingTwosComplementBigEndian
	}

	image.content = content
	image.shoff = shoff
	image.header = testHeader{
		ident: Identifier{
			Magic:              [4]byte{0x7f, 'E', 'L', 'F'},
			Class:              file.class,
			DataEncoding:       encoding,
			IdentifierVersion:  IdentifierVersion,
			OperatingSystemABI: OperatingSystemABILinux,
		},
		fileType:  FileTypeExecutable,
		machine:   MachineArchitectureX86_64,
		version:   FormatVersion,
		entry:     file.entry,
		phoff:     phoff,
		shoff:     shoff,
		ehsize:    uint16(file.headerSize()),
		phentsize: uint16(file.programHeaderSize()),
		phnum:     uint16(len(file.segments)),
		shentsize: uint16(file.sectionHeaderSize()),
		shnum:     uint16(len(sections)),
		shstrndx:  SectionIndex(len(sections) - 1),
	}

	image.writeHeader()
	for idx := range image.sections {
		image.writeSection(idx)
	}

	return image
}

func (image *testImage) bytes() []byte {
	return image.content
}

func (image *testImage) size() uint64 {
	return uint64(len(image.content))
}

func (image *testImage) index(name string) int {
	idx, ok := image.indices[name]
	if !ok {
		panic("unknown section " + name)
	}
	return idx
}

func (image *testImage) section(name string) SectionHeaderEntry {
	return image.sections[image.index(name)]
}

func (image *testImage) patchHeader(patch func(*testHeader)) *testImage {
	patch(&image.header)
	image.writeHeader()
	return image
}

func (image *testImage) patchSection(
	name string,
	patch func(*SectionHeaderEntry),
) *testImage {
	idx := image.index(name)
	patch(&image.sections[idx])
	image.writeSection(idx)
	return image
}

func (image *testImage) writeHeader() {
	hdr := image.header
	order := image.file.order

	var err error
	if image.file.class == Class32 {
		_, err = binary.Encode(
			image.content,
			order,
			Elf32Header{
				Ident:                   hdr.ident,
				FileType:                hdr.fileType,
				MachineArchitecture:     hdr.machine,
				FormatVersion:           hdr.version,
				EntryPointAddress:       uint32(hdr.entry),
				ProgramHeaderOffset:     uint32(hdr.phoff),
				SectionHeaderOffset:     uint32(hdr.shoff),
				ArchitectureFlags:       hdr.flags,
				ElfHeaderSize:           hdr.ehsize,
				ProgramHeaderEntrySize:  hdr.phentsize,
				NumProgramHeaderEntries: hdr.phnum,
				SectionHeaderEntrySize:  hdr.shentsize,
				NumSectionHeaderEntries: hdr.shnum,
				SectionNameTableIndex:   hdr.shstrndx,
			})
	} else {
		_, err = binary.Encode(
			image.content,
			order,
			Elf64Header{
				Ident:                   hdr.ident,
				FileType:                hdr.fileType,
				MachineArchitecture:     hdr.machine,
				FormatVersion:           hdr.version,
				EntryPointAddress:       hdr.entry,
				ProgramHeaderOffset:     hdr.phoff,
				SectionHeaderOffset:     hdr.shoff,
				ArchitectureFlags:       hdr.flags,
				ElfHeaderSize:           hdr.ehsize,
				ProgramHeaderEntrySize:  hdr.phentsize,
				NumProgramHeaderEntries: hdr.phnum,
				SectionHeaderEntrySize:  hdr.shentsize,
				NumSectionHeaderEntries: hdr.shnum,
				SectionNameTableIndex:   hdr.shstrndx,
			})
	}

	if err != nil {
		panic(err)
	}
}

func (image *testImage) writeSection(idx int) {
	entry := image.sections[idx]
	offset := image.shoff + uint64(idx*image.file.sectionHeaderSize())
	buf := image.content[offset:]

	var err error
	if image.file.class == Class32 {
		_, err = binary.Encode(
			buf,
			image.file.order,
			Elf32SectionHeader{
				NameIndex:        entry.NameIndex,
				SectionType:      entry.SectionType,
				Flags:            uint32(entry.SectionFlags),
				Address:          uint32(entry.Address),
				Offset:           uint32(entry.Offset),
				Size:             uint32(entry.Size),
				Link:             entry.Link,
				Info:             entry.Info,
				AddressAlignment: uint32(entry.AddressAlignment),
				EntrySize:        uint32(entry.EntrySize),
			})
	} else {
		_, err = binary.Encode(
			buf,
			image.file.order,
			Elf64SectionHeader(entry))
	}

	if err != nil {
		panic(err)
	}
}
