package elf

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	"github.com/DylanMcBean/Exepose/diagnostics"
)

type FileSuite struct{}

func TestFile(t *testing.T) {
	suite.RunTests(t, &FileSuite{})
}

type variant struct {
	name  string
	class Class
	order binary.ByteOrder
}

var variants = []variant{
	{"elf32-lsb", Class32, binary.LittleEndian},
	{"elf32-msb", Class32, binary.BigEndian},
	{"elf64-lsb", Class64, binary.LittleEndian},
	{"elf64-msb", Class64, binary.BigEndian},
}

func decodeDefault(
	t *testing.T,
	image *testImage,
) (
	*File,
	*diagnostics.Recorder,
	error,
) {
	recorder := diagnostics.NewRecorder()
	file, err := DecodeBytes(image.bytes(), recorder)
	return file, recorder, err
}

func expectKind(t *testing.T, err error, kind ErrorKind) {
	expect.NotNil(t, err)
	expect.True(t, errors.Is(err, kind))

	actual, ok := KindOf(err)
	expect.True(t, ok)
	expect.Equal(t, kind, actual)
}

func (FileSuite) TestDecodeValid(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			image := newDefaultTestFile(v.class, v.order).build()

			file, recorder, err := decodeDefault(t, image)
			expect.Nil(t, err)
			expect.NotNil(t, file)

			expect.Equal(t, image.size(), file.FileSize)
			expect.Equal(t, v.class, file.Header.Class())
			expect.Equal(t, v.class, file.Header.Identifier().Class)
			expect.Equal(t, FileTypeExecutable, file.Header.Type())
			expect.Equal(t, MachineArchitectureX86_64, file.Header.Machine())
			expect.Equal(t, uint64(0x1000), file.Header.Entry())
			expect.Equal(t, OperatingSystemABILinux, file.OperatingSystemABI)

			expect.Equal(t, 1, len(file.ProgramHeaders))
			expect.Equal(t, ProgramLoadable, file.ProgramHeaders[0].ProgramType)
			expect.Equal(
				t,
				ProgramFlagReadableBit|ProgramFlagExecutableBit,
				file.ProgramHeaders[0].ProgramFlags)

			expect.Equal(t, 0, recorder.Count(diagnostics.Error))
			expect.Equal(t, 0, recorder.Count(diagnostics.Warning))
			expect.True(t, recorder.Has(diagnostics.Debug, CodeDecodeComplete))
		})
	}
}

func (FileSuite) TestSectionNames(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			image := newDefaultTestFile(v.class, v.order).build()

			file, _, err := decodeDefault(t, image)
			expect.Nil(t, err)

			expected := []string{
				"",
				".text",
				".dynstr",
				".dynsym",
				".strtab",
				".symtab",
				".note.gnu.build-id",
				".bss",
				".shstrtab",
			}

			expect.Equal(t, len(expected), len(file.Sections))
			expect.Equal(t, len(expected), len(file.SectionNames))
			for idx, name := range expected {
				expect.Equal(t, idx, file.Sections[idx].Index)
				expect.Equal(t, name, file.Sections[idx].Name)
				expect.Equal(t, name, file.SectionNames[idx])
			}

			section, ok := file.GetSection(".text")
			expect.True(t, ok)
			expect.Equal(t, 1, section.Index)
			expect.Equal(t, image.section(".text").Offset, section.Offset)
			expect.Equal(t, uint64(16), section.Size)

			_, ok = file.GetSection(".data")
			expect.False(t, ok)
		})
	}
}

func (FileSuite) TestSectionsByOffset(t *testing.T) {
	image := newDefaultTestFile(Class64, binary.LittleEndian).build()

	file, _, err := decodeDefault(t, image)
	expect.Nil(t, err)

	sorted := file.SectionsByOffset()
	expect.Equal(t, len(file.Sections), len(sorted))
	for idx := 1; idx < len(sorted); idx++ {
		expect.True(t, sorted[idx-1].Offset <= sorted[idx].Offset)
	}

	// Sorting never reorders the canonical table.
	for idx, section := range file.Sections {
		expect.Equal(t, idx, section.Index)
	}

	// .bss and .shstrtab share an offset; ties keep table order.
	bss, _ := file.GetSection(".bss")
	shstrtab, _ := file.GetSection(".shstrtab")
	expect.Equal(t, bss.Offset, shstrtab.Offset)

	bssPos := -1
	shstrtabPos := -1
	for pos, section := range sorted {
		switch section.Name {
		case ".bss":
			bssPos = pos
		case ".shstrtab":
			shstrtabPos = pos
		}
	}
	expect.True(t, bssPos >= 0)
	expect.Equal(t, bssPos+1, shstrtabPos)
}

func (FileSuite) TestSymbols(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			image := newDefaultTestFile(v.class, v.order).build()

			file, _, err := decodeDefault(t, image)
			expect.Nil(t, err)

			expect.True(t, file.DynamicSymbols.IsPresent())
			expect.Equal(t, image.index(".dynsym"), file.DynamicSymbols.SectionIndex)
			expect.Equal(
				t,
				image.index(".dynstr"),
				file.DynamicSymbols.StringTableIndex)
			expect.Equal(t, 2, len(file.DynamicSymbols.Symbols))
			expect.Equal(t, "", file.DynamicSymbols.Names[0])
			expect.Equal(t, "puts", file.DynamicSymbols.Names[1])

			table := file.Symbols
			expect.True(t, table.IsPresent())
			expect.Equal(t, 3, len(table.Symbols))
			expect.Equal(t, 3, len(table.Names))
			expect.Equal(t, "_start", table.Names[1])
			expect.Equal(t, "_ZN3foo3barEv", table.Names[2])

			start := table.Symbols[1]
			expect.Equal(t, 1, start.Index)
			expect.Equal(t, SymbolTypeFunction, start.Type())
			expect.Equal(t, SymbolBindingGlobal, start.Binding())
			expect.Equal(t, SectionIndex(1), start.SectionIndex)
			expect.Equal(t, uint64(0x1000), start.Value)
			expect.Equal(t, "_start", start.PrettyName())

			bar := table.Symbols[2]
			expect.Equal(t, SymbolBindingLocal, bar.Binding())
			expect.Equal(t, "foo::bar()", bar.DemangledName)
			expect.Equal(t, "foo::bar()", bar.PrettyName())
		})
	}
}

func (FileSuite) TestSymbolLookups(t *testing.T) {
	image := newDefaultTestFile(Class64, binary.LittleEndian).build()

	file, _, err := decodeDefault(t, image)
	expect.Nil(t, err)

	table := file.Symbols

	symbol := table.SymbolAt(FileAddress(file.Header.Entry()))
	expect.NotNil(t, symbol)
	expect.Equal(t, "_start", symbol.Name)

	expect.Nil(t, table.SymbolAt(0x1004))

	symbol = table.SymbolSpans(0x1004)
	expect.NotNil(t, symbol)
	expect.Equal(t, "_start", symbol.Name)

	symbol = table.SymbolSpans(0x100c)
	expect.NotNil(t, symbol)
	expect.Equal(t, "_ZN3foo3barEv", symbol.Name)

	expect.Nil(t, table.SymbolSpans(0x1010))

	symbols := table.SymbolsByName("_start")
	expect.Equal(t, 1, len(symbols))
	expect.Equal(t, "_start", symbols[0].Name)

	symbols = table.SymbolsByName("foo::bar()")
	expect.Equal(t, 1, len(symbols))
	expect.Equal(t, 2, symbols[0].Index)

	expect.Equal(t, 0, len(table.SymbolsByName("main")))
}

func (FileSuite) TestNotes(t *testing.T) {
	image := newDefaultTestFile(Class64, binary.BigEndian).build()

	file, recorder, err := decodeDefault(t, image)
	expect.Nil(t, err)

	expect.Equal(t, 1, len(file.Notes))
	note := file.Notes[0]
	expect.Equal(t, image.index(".note.gnu.build-id"), note.SectionIndex)
	expect.Equal(t, "GNU", note.Name)
	expect.Equal(t, "\x01\x02\x03\x04\x05", note.Description)
	expect.Equal(t, uint32(3), note.Type)
	expect.True(t, recorder.Has(diagnostics.Debug, CodeNotesDecoded))
}

func (FileSuite) TestMalformedNoteIsNotFatal(t *testing.T) {
	file := newDefaultTestFile(Class64, binary.LittleEndian)

	content := file.note("GNU", "abcd", 1)
	// Claim a description far larger than the section.
	binary.LittleEndian.PutUint32(content[4:], 100)

	file.addSection(
		&testSection{
			name:    ".note.broken",
			stype:   SectionTypeNote,
			content: content,
		})

	decoded, recorder, err := decodeDefault(t, file.build())
	expect.Nil(t, err)
	expect.Equal(t, 1, len(decoded.Notes))
	expect.Equal(t, "GNU", decoded.Notes[0].Name)
	expect.True(t, recorder.Has(diagnostics.Warning, CodeMalformedNote))
}

func (FileSuite) TestDecodeIsDeterministic(t *testing.T) {
	content := newDefaultTestFile(Class32, binary.LittleEndian).build().bytes()

	first, err := DecodeBytes(content, nil)
	expect.Nil(t, err)

	second, err := DecodeBytes(content, nil)
	expect.Nil(t, err)

	expect.Equal(t, first.SectionNames, second.SectionNames)
	expect.Equal(t, first.Symbols.Names, second.Symbols.Names)
	expect.Equal(t, first.DynamicSymbols.Names, second.DynamicSymbols.Names)
	expect.Equal(t, first.ProgramHeaders, second.ProgramHeaders)
	expect.Equal(t, len(first.Sections), len(second.Sections))
	for idx := range first.Sections {
		expect.Equal(t, *first.Sections[idx], *second.Sections[idx])
	}
}

func (FileSuite) TestOpen(t *testing.T) {
	content := newDefaultTestFile(Class64, binary.LittleEndian).build().bytes()

	path := filepath.Join(t.TempDir(), "a.out")
	err := os.WriteFile(path, content, 0o644)
	expect.Nil(t, err)

	file, err := Open(path, nil)
	expect.Nil(t, err)
	expect.Equal(t, uint64(len(content)), file.FileSize)
	expect.Equal(t, "_start", file.Symbols.Names[1])
}

func (FileSuite) TestOpenFailed(t *testing.T) {
	recorder := diagnostics.NewRecorder()

	path := filepath.Join(t.TempDir(), "missing")
	_, err := Open(path, recorder)
	expectKind(t, err, ErrOpenFailed)
	expect.True(t, errors.Is(err, os.ErrNotExist))
	expect.True(t, recorder.Has(diagnostics.Error, ErrOpenFailed.Code()))
}

func (FileSuite) TestEmptySectionTable(t *testing.T) {
	image := newDefaultTestFile(Class64, binary.LittleEndian).build()
	image.patchHeader(func(hdr *testHeader) {
		hdr.shnum = 0
		hdr.shstrndx = 0
	})

	_, _, err := decodeDefault(t, image)
	expectKind(t, err, ErrInvalidStringTableIndex)
}
