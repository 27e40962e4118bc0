// Based on linux's man page, elf.h, golang's debug/elf package,
// and the System V gabi4+ draft.
package elf

import (
	"fmt"
)

var (
	// EI_MAG0 - EI_MAG3
	IdentifierMagic = []byte{
		0x7f, // ELFMAG0
		'E',  // ELFMAG1
		'L',  // ELFMAG2
		'F',  // ELFMAG3
	}
)

const (
	SectionStringTableIndexNotDefined = 0 // SHN_UNDEF

	IdentifierVersion = 1 // EV_CURRENT
	FormatVersion     = 1 // EV_CURRENT

	ElfIdentifierSize = 16
	IdentifierPadding = 9 // EI_PAD

	Elf32HeaderSize             = 52
	Elf32ProgramHeaderEntrySize = 32
	Elf32SectionHeaderEntrySize = 40
	Elf32SymbolEntrySize        = 16

	Elf64HeaderSize             = 64
	Elf64ProgramHeaderEntrySize = 56
	Elf64SectionHeaderEntrySize = 64
	Elf64SymbolEntrySize        = 24

	// NOTE: Although Elf64_Nhdr is defined, it looks like elf64 files in general
	// still encode notes using Elf32_Nhdr.
	NoteHeaderSize = 12
)

// EI_CLASS
type Class byte

const (
	ClassNone = Class(0) // ELFCLASSNONE
	Class32   = Class(1) // ELFCLASS32
	Class64   = Class(2) // ELFCLASS64
)

var classNames = map[Class]string{
	ClassNone: "ClassNone",
	Class32:   "Class32",
	Class64:   "Class64",
}

func (class Class) String() string {
	return nameOf(classNames, class, "ClassUnknown(%d)")
}

// EI_DATA
type DataEncoding byte

const (
	DataEncodingNone                       = DataEncoding(0) // ELFDATANONE
	DataEncodingTwosComplementLittleEndian = DataEncoding(1) // ELFDATA2LSB
	DataEncodingTwosComplementBigEndian    = DataEncoding(2) // ELFDATA2MSB
)

var dataEncodingNames = map[DataEncoding]string{
	DataEncodingNone:                       "DataEncodingNone",
	DataEncodingTwosComplementLittleEndian: "TwosComplementLittleEndian",
	DataEncodingTwosComplementBigEndian:    "TwosComplementBigEndian",
}

func (encoding DataEncoding) String() string {
	return nameOf(dataEncodingNames, encoding, "DataEncodingUnknown(%d)")
}

// EI_OSABI
type OperatingSystemABI byte

const (
	OperatingSystemABINone       = OperatingSystemABI(0)   // ELFOSABI_NONE
	OperatingSystemABIHPUX       = OperatingSystemABI(1)   // ELFOSABI_HPUX
	OperatingSystemABINetBSD     = OperatingSystemABI(2)   // ELFOSABI_NETBSD
	OperatingSystemABILinux      = OperatingSystemABI(3)   // ELFOSABI_LINUX
	OperatingSystemABISolaris    = OperatingSystemABI(6)   // ELFOSABI_SOLARIS
	OperatingSystemABIAIX        = OperatingSystemABI(7)   // ELFOSABI_AIX
	OperatingSystemABIIRIX       = OperatingSystemABI(8)   // ELFOSABI_IRIX
	OperatingSystemABIFreeBSD    = OperatingSystemABI(9)   // ELFOSABI_FREEBSD
	OperatingSystemABITru64      = OperatingSystemABI(10)  // ELFOSABI_TRU64
	OperatingSystemABIModesto    = OperatingSystemABI(11)  // ELFOSABI_MODESTO
	OperatingSystemABIOpenBSD    = OperatingSystemABI(12)  // ELFOSABI_OPENBSD
	OperatingSystemABIOpenVMS    = OperatingSystemABI(13)  // ELFOSABI_OPENVMS
	OperatingSystemABINSK        = OperatingSystemABI(14)  // ELFOSABI_NSK
	OperatingSystemABIAROS       = OperatingSystemABI(15)  // ELFOSABI_AROS
	OperatingSystemABIFenixOS    = OperatingSystemABI(16)  // ELFOSABI_FENIXOS
	OperatingSystemABICloudABI   = OperatingSystemABI(17)  // ELFOSABI_CLOUDABI
	OperatingSystemABIOpenVOS    = OperatingSystemABI(18)  // ELFOSABI_OPENVOS
	OperatingSystemABIARMEABI    = OperatingSystemABI(64)  // ELFOSABI_ARM_AEABI
	OperatingSystemABIARM        = OperatingSystemABI(97)  // ELFOSABI_ARM
	OperatingSystemABIStandalone = OperatingSystemABI(255) // ELFOSABI_STANDALONE
)

var operatingSystemABINames = map[OperatingSystemABI]string{
	OperatingSystemABINone:       "UnixSystemV",
	OperatingSystemABIHPUX:       "HP-UX",
	OperatingSystemABINetBSD:     "NetBSD",
	OperatingSystemABILinux:      "Linux",
	OperatingSystemABISolaris:    "Solaris",
	OperatingSystemABIAIX:        "AIX",
	OperatingSystemABIIRIX:       "IRIX",
	OperatingSystemABIFreeBSD:    "FreeBSD",
	OperatingSystemABITru64:      "Tru64",
	OperatingSystemABIModesto:    "Modesto",
	OperatingSystemABIOpenBSD:    "OpenBSD",
	OperatingSystemABIOpenVMS:    "OpenVMS",
	OperatingSystemABINSK:        "NSK",
	OperatingSystemABIAROS:       "AROS",
	OperatingSystemABIFenixOS:    "FenixOS",
	OperatingSystemABICloudABI:   "CloudABI",
	OperatingSystemABIOpenVOS:    "OpenVOS",
	OperatingSystemABIARMEABI:    "ARM-EABI",
	OperatingSystemABIARM:        "ARM",
	OperatingSystemABIStandalone: "Standalone",
}

// IsKnown reports whether the value is listed in the gabi os/abi table.
func (osAbi OperatingSystemABI) IsKnown() bool {
	_, ok := operatingSystemABINames[osAbi]
	return ok
}

func (osAbi OperatingSystemABI) String() string {
	return nameOf(
		operatingSystemABINames,
		osAbi,
		"OperatingSystemABIUnknown(%d)")
}

// e_type
type FileType uint16

const (
	FileTypeNone         = FileType(0) // ET_NONE
	FileTypeRelocatable  = FileType(1) // ET_REL
	FileTypeExecutable   = FileType(2) // ET_EXEC
	FileTypeSharedObject = FileType(3) // ET_DYN
	FileTypeCore         = FileType(4) // ET_CORE
)

var fileTypeNames = map[FileType]string{
	FileTypeNone:         "FileTypeNone",
	FileTypeRelocatable:  "Relocatable",
	FileTypeExecutable:   "Executable",
	FileTypeSharedObject: "SharedObject",
	FileTypeCore:         "Core",
}

func (ft FileType) String() string {
	return nameOf(fileTypeNames, ft, "FileTypeUnknown(%d)")
}

type ProgramType uint32

// see debug/elf for a more complete list
const (
	ProgramNull             = ProgramType(0)          // PT_NULL
	ProgramLoadable         = ProgramType(1)          // PT_LOAD
	ProgramDynamicLinking   = ProgramType(2)          // PT_DYNAMIC
	ProgramInterpreterPath  = ProgramType(3)          // PT_INTERP
	ProgramNote             = ProgramType(4)          // PT_NOTE
	ProgramSharedLibrary    = ProgramType(5)          // PT_SHLIB
	ProgramHeaderInfo       = ProgramType(6)          // PT_PHDR
	ProgramThreadLocal      = ProgramType(7)          // PT_TLS
	ProgramGNUEHFrame       = ProgramType(0x6474e550) // PT_GNU_EH_FRAME
	ProgramGNUStack         = ProgramType(0x6474e551) // PT_GNU_STACK
	ProgramGNUReadOnlyAfter = ProgramType(0x6474e552) // PT_GNU_RELRO
	ProgramGNUProperty      = ProgramType(0x6474e553) // PT_GNU_PROPERTY
)

var programTypeNames = map[ProgramType]string{
	ProgramNull:             "ProgramNull",
	ProgramLoadable:         "Loadable",
	ProgramDynamicLinking:   "DynamicLinking",
	ProgramInterpreterPath:  "InterpreterPath",
	ProgramNote:             "Note",
	ProgramSharedLibrary:    "SharedLibrary",
	ProgramHeaderInfo:       "HeaderInfo",
	ProgramThreadLocal:      "ThreadLocal",
	ProgramGNUEHFrame:       "GNUEHFrame",
	ProgramGNUStack:         "GNUStack",
	ProgramGNUReadOnlyAfter: "GNUReadOnlyAfterRelocation",
	ProgramGNUProperty:      "GNUProperty",
}

func (programType ProgramType) String() string {
	return nameOf(programTypeNames, programType, "ProgramUnknown(%#x)")
}

type ProgramFlags uint32

const (
	ProgramFlagExecutableBit = ProgramFlags(0x1)
	ProgramFlagWritableBit   = ProgramFlags(0x2)
	ProgramFlagReadableBit   = ProgramFlags(0x4)

	programFlagMask = ProgramFlags(0x7)
)

var programFlagLetters = []flagLetter[ProgramFlags]{
	{ProgramFlagReadableBit, 'r'},
	{ProgramFlagWritableBit, 'w'},
	{ProgramFlagExecutableBit, 'x'},
}

func (bits ProgramFlags) String() string {
	if bits&^programFlagMask != 0 {
		return fmt.Sprintf("%#x", uint32(bits))
	}
	return flagString(programFlagLetters, bits)
}

type SectionType uint32

const (
	SectionTypeNull                  = SectionType(0)  // SHT_NULL
	SectionTypeProgramDefinedInfo    = SectionType(1)  // SHT_PROGBITS
	SectionTypeSymbolTable           = SectionType(2)  // SHT_SYMTAB
	SectionTypeStringTable           = SectionType(3)  // SHT_STRTAB
	SectionTypeRelocationWithAddends = SectionType(4)  // SHT_RELA
	SectionTypeSymbolHashTable       = SectionType(5)  // SHT_HASH
	SectionTypeDynamic               = SectionType(6)  // SHT_DYNAMIC
	SectionTypeNote                  = SectionType(7)  // SHT_NOTE
	SectionTypeNoSpace               = SectionType(8)  // SHT_NOBITS
	SectionTypeRelocationNoAddends   = SectionType(9)  // SHT_REL
	SectionTypeSharedLibrary         = SectionType(10) // SHT_SHLIB
	SectionTypeDynamicSymbolTable    = SectionType(11) // SHT_DYNSYM
	SectionTypeInitArray             = SectionType(14) // SHT_INIT_ARRAY
	SectionTypeFiniArray             = SectionType(15) // SHT_FINI_ARRAY
	SectionTypePreInitArray          = SectionType(16) // SHT_PREINIT_ARRAY
	SectionTypeGroup                 = SectionType(17) // SHT_GROUP
	SectionTypeExtendedIndices       = SectionType(18) // SHT_SYMTAB_SHNDX
)

var sectionTypeNames = map[SectionType]string{
	SectionTypeNull:                  "SectionTypeNull",
	SectionTypeProgramDefinedInfo:    "ProgramDefinedInfo",
	SectionTypeSymbolTable:           "SymbolTable",
	SectionTypeStringTable:           "StringTable",
	SectionTypeRelocationWithAddends: "RelocationWithAddends",
	SectionTypeSymbolHashTable:       "SymbolHashTable",
	SectionTypeDynamic:               "Dynamic",
	SectionTypeNote:                  "Note",
	SectionTypeNoSpace:               "NoSpace",
	SectionTypeRelocationNoAddends:   "RelocationNoAddends",
	SectionTypeSharedLibrary:         "SharedLibrary",
	SectionTypeDynamicSymbolTable:    "DynamicSymbolTable",
	SectionTypeInitArray:             "InitArray",
	SectionTypeFiniArray:             "FiniArray",
	SectionTypePreInitArray:          "PreInitArray",
	SectionTypeGroup:                 "Group",
	SectionTypeExtendedIndices:       "ExtendedIndices",
}

func (stype SectionType) String() string {
	return nameOf(sectionTypeNames, stype, "SectionTypeUnknown(%#x)")
}

type SectionFlags uint64

const (
	SectionContainsWritableData         = SectionFlags(0x1)   // SHF_WRITE
	SectionOccupiesMemory               = SectionFlags(0x2)   // SHF_ALLOC
	SectionContainsInstructions         = SectionFlags(0x4)   // SHF_EXECINSTR
	SectionMayBeMerged                  = SectionFlags(0x10)  // SHF_MERGE
	SectionContainsStrings              = SectionFlags(0x20)  // SHF_STRINGS
	SectionInfoHoldsSectionIndex        = SectionFlags(0x40)  // SHF_INFO_LINK
	SectionRequiresSpecialOrdering      = SectionFlags(0x80)  // SHF_LINK_ORDER
	SectionRequiresOsSpecificProcessing = SectionFlags(0x100) // SHF_OS_NONCONFORMING
	SectionIsGroupMember                = SectionFlags(0x200) // SHF_GROUP
	SectionContainsTLSData              = SectionFlags(0x400) // SHF_TLS
	SectionIsCompressed                 = SectionFlags(0x800) // SHF_COMPRESSED
)

// Letters follow readelf's key, one column per flag.
var sectionFlagLetters = []flagLetter[SectionFlags]{
	{SectionContainsWritableData, 'w'},
	{SectionOccupiesMemory, 'a'},
	{SectionContainsInstructions, 'x'},
	{SectionMayBeMerged, 'm'},
	{SectionContainsStrings, 's'},
	{SectionInfoHoldsSectionIndex, 'i'},
	{SectionRequiresSpecialOrdering, 'l'},
	{SectionRequiresOsSpecificProcessing, 'o'},
	{SectionIsGroupMember, 'g'},
	{SectionContainsTLSData, 't'},
	{SectionIsCompressed, 'c'},
}

func (flags SectionFlags) String() string {
	return flagString(sectionFlagLetters, flags)
}

// e_machine
// NOTE: golang's debug/elf.Machine defines a more complete list of machine
// types.
type MachineArchitecture uint16

const (
	MachineArchitectureNone    = MachineArchitecture(0)   // EM_NONE
	MachineArchitectureSPARC   = MachineArchitecture(2)   // EM_SPARC
	MachineArchitecture386     = MachineArchitecture(3)   // EM_386
	MachineArchitectureMIPS    = MachineArchitecture(8)   // EM_MIPS
	MachineArchitecturePPC     = MachineArchitecture(20)  // EM_PPC
	MachineArchitecturePPC64   = MachineArchitecture(21)  // EM_PPC64
	MachineArchitectureS390    = MachineArchitecture(22)  // EM_S390
	MachineArchitectureARM     = MachineArchitecture(40)  // EM_ARM
	MachineArchitectureX86_64  = MachineArchitecture(62)  // EM_X86_64
	MachineArchitectureAArch64 = MachineArchitecture(183) // EM_AARCH64
	MachineArchitectureRISCV   = MachineArchitecture(243) // EM_RISCV
)

var machineArchitectureNames = map[MachineArchitecture]string{
	MachineArchitectureNone:    "MachineArchitectureNone",
	MachineArchitectureSPARC:   "SPARC",
	MachineArchitecture386:     "x86",
	MachineArchitectureMIPS:    "MIPS",
	MachineArchitecturePPC:     "PowerPC",
	MachineArchitecturePPC64:   "PowerPC64",
	MachineArchitectureS390:    "S390",
	MachineArchitectureARM:     "ARM",
	MachineArchitectureX86_64:  "x86-64",
	MachineArchitectureAArch64: "AArch64",
	MachineArchitectureRISCV:   "RISC-V",
}

func (arch MachineArchitecture) String() string {
	return nameOf(
		machineArchitectureNames,
		arch,
		"MachineArchitectureUnknown(%d)")
}

// The bottom 4 bits of st_info
type SymbolType byte

func SymbolInfoToType(info byte) SymbolType {
	return SymbolType(info & 0xf)
}

const (
	SymbolTypeNone                     = SymbolType(0)  // STT_NOTYPE
	SymbolTypeObject                   = SymbolType(1)  // STT_OBJECT
	SymbolTypeFunction                 = SymbolType(2)  // STT_FUNC
	SymbolTypeSection                  = SymbolType(3)  // STT_SECTION
	SymbolTypeSourceFile               = SymbolType(4)  // STT_FILE
	SymbolTypeUninitializedCommonBlock = SymbolType(5)  // STT_COMMON
	SymbolTypeTLSObject                = SymbolType(6)  // STT_TLS
	SymbolTypeIndirectFunction         = SymbolType(10) // STT_GNU_IFUNC
)

var symbolTypeNames = map[SymbolType]string{
	SymbolTypeNone:                     "NoType",
	SymbolTypeObject:                   "Object",
	SymbolTypeFunction:                 "Function",
	SymbolTypeSection:                  "Section",
	SymbolTypeSourceFile:               "SourceFile",
	SymbolTypeUninitializedCommonBlock: "UninitializedCommonBlock",
	SymbolTypeTLSObject:                "TLSObject",
	SymbolTypeIndirectFunction:         "IndirectFunction",
}

func (st SymbolType) String() string {
	return nameOf(symbolTypeNames, st, "SymbolTypeUnknown(%d)")
}

// The top 4 bits of st_info
type SymbolBinding byte

func SymbolInfoToBinding(info byte) SymbolBinding {
	return SymbolBinding(info >> 4)
}

const (
	SymbolBindingLocal  = SymbolBinding(0)  // STB_LOCAL
	SymbolBindingGlobal = SymbolBinding(1)  // STB_GLOBAL
	SymbolBindingWeak   = SymbolBinding(2)  // STB_WEAK
	SymbolBindingUnique = SymbolBinding(10) // STB_GNU_UNIQUE
)

var symbolBindingNames = map[SymbolBinding]string{
	SymbolBindingLocal:  "Local",
	SymbolBindingGlobal: "Global",
	SymbolBindingWeak:   "Weak",
	SymbolBindingUnique: "Unique",
}

func (sb SymbolBinding) String() string {
	return nameOf(symbolBindingNames, sb, "SymbolBindingUnknown(%d)")
}

// The bottom 2 bits of st_other
type SymbolVisibility byte

const (
	SymbolVisibilityDefault   = SymbolVisibility(0) // STV_DEFAULT
	SymbolVisibilityInternal  = SymbolVisibility(1) // STV_INTERNAL
	SymbolVisibilityHidden    = SymbolVisibility(2) // STV_HIDDEN
	SymbolVisibilityProtected = SymbolVisibility(3) // STV_PROTECTED
)

var symbolVisibilityNames = map[SymbolVisibility]string{
	SymbolVisibilityDefault:   "Default",
	SymbolVisibilityInternal:  "Internal",
	SymbolVisibilityHidden:    "Hidden",
	SymbolVisibilityProtected: "Protected",
}

// Only the bottom 2 bits carry visibility; the rest of st_other is ignored.
func (vis SymbolVisibility) String() string {
	return nameOf(symbolVisibilityNames, vis&0x3, "SymbolVisibilityUnknown(%d)")
}

type SectionIndex uint16

const (
	SectionIndexUndefined = SectionIndex(0)
	SectionIndexAbsolute  = SectionIndex(0xfff1)
	SectionIndexCommon    = SectionIndex(0xfff2)

	SectionStringTableName       = ".shstrtab"
	SymbolTableName              = ".symtab"
	StringTableName              = ".strtab"
	DynamicSymbolTableName       = ".dynsym"
	DynamicSymbolStringTableName = ".dynstr"
)

var sectionIndexNames = map[SectionIndex]string{
	SectionIndexUndefined: "UND",
	SectionIndexAbsolute:  "ABS",
	SectionIndexCommon:    "COM",
}

func (idx SectionIndex) String() string {
	return nameOf(sectionIndexNames, idx, "%d")
}

type enumeration interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// nameOf formats values missing from names with format.  The value is
// widened first so that format never recurses into the value's String.
func nameOf[T enumeration](names map[T]string, value T, format string) string {
	name, ok := names[value]
	if ok {
		return name
	}
	return fmt.Sprintf(format, uint64(value))
}

type flagLetter[T enumeration] struct {
	flag   T
	letter byte
}

func flagString[T enumeration](letters []flagLetter[T], flags T) string {
	result := make([]byte, len(letters))
	for idx, entry := range letters {
		result[idx] = '-'
		if flags&entry.flag != 0 {
			result[idx] = entry.letter
		}
	}
	return string(result)
}
