package elf

import (
	"github.com/ianlancetaylor/demangle"

	"github.com/DylanMcBean/Exepose/diagnostics"
)

type Symbol struct {
	SymbolEntry

	// Index is the symbol's position within its symbol table.
	Index int

	Name          string
	DemangledName string // human readable c++ / rust name
}

func (symbol *Symbol) PrettyName() string {
	if symbol.DemangledName != "" {
		return symbol.DemangledName
	}

	return symbol.Name
}

func (symbol *Symbol) Type() SymbolType {
	return SymbolInfoToType(symbol.Info)
}

func (symbol *Symbol) Binding() SymbolBinding {
	return SymbolInfoToBinding(symbol.Info)
}

func (symbol *Symbol) AddressRange() (FileAddress, FileAddress, bool) {
	if symbol.Value == 0 ||
		symbol.NameIndex == 0 ||
		symbol.Type() == SymbolTypeTLSObject {

		return 0, 0, false
	}

	start := FileAddress(symbol.Value)
	end := FileAddress(symbol.Value + symbol.Size)
	return start, end, true
}

// SymbolNameMap maps symbol table index to resolved symbol name.
type SymbolNameMap map[int]string

type SymbolTable struct {
	// Section indices of the symbol table and its string table.  Both are -1
	// when the table is absent from the file.
	SectionIndex     int
	StringTableIndex int

	Symbols []*Symbol
	Names   SymbolNameMap
}

func newAbsentSymbolTable() *SymbolTable {
	return &SymbolTable{
		SectionIndex:     -1,
		StringTableIndex: -1,
		Symbols:          []*Symbol{},
		Names:            SymbolNameMap{},
	}
}

func (table *SymbolTable) IsPresent() bool {
	return table.SectionIndex >= 0
}

func (table *SymbolTable) SymbolsByName(name string) []*Symbol {
	result := []*Symbol{}
	for _, symbol := range table.Symbols {
		if symbol.Name == name || symbol.DemangledName == name {
			result = append(result, symbol)
		}
	}
	return result
}

func (table *SymbolTable) SymbolAt(address FileAddress) *Symbol {
	for _, symbol := range table.Symbols {
		low, _, ok := symbol.AddressRange()
		if ok && low == address {
			return symbol
		}
	}

	return nil
}

func (table *SymbolTable) SymbolSpans(address FileAddress) *Symbol {
	for _, symbol := range table.Symbols {
		low, high, ok := symbol.AddressRange()
		if ok && low <= address && address < high {
			return symbol
		}
	}

	return nil
}

// findSection returns the first section (in table order) with the given
// name.
func (p *parser) findSection(name string) *Section {
	var found *Section
	duplicates := 0
	for _, section := range p.Sections {
		if section.Name != name {
			continue
		}

		if found == nil {
			found = section
		} else {
			duplicates++
		}
	}

	if duplicates > 0 {
		p.emit(
			diagnostics.Warning,
			CodeDuplicateSectionName,
			"duplicate section name, using first occurrence",
			diagnostics.Fields{
				"name":       name,
				"section":    found.Index,
				"duplicates": duplicates,
			})
	}

	return found
}

func (p *parser) resolveSymbolTables() error {
	dynamicSymbols := p.findSection(DynamicSymbolTableName)
	dynamicStrings := p.findSection(DynamicSymbolStringTableName)
	if dynamicSymbols == nil || dynamicStrings == nil {
		return p.fail(
			ErrMissingDynamicTable,
			"missing dynamic symbol table",
			diagnostics.Fields{
				"dynsym_present": dynamicSymbols != nil,
				"dynstr_present": dynamicStrings != nil,
			},
			nil)
	}

	table, err := p.decodeSymbolTable(dynamicSymbols, dynamicStrings)
	if err != nil {
		return err
	}
	p.DynamicSymbols = table

	p.Symbols = newAbsentSymbolTable()

	symbols := p.findSection(SymbolTableName)
	strings := p.findSection(StringTableName)
	if symbols == nil && strings == nil {
		p.emit(
			diagnostics.Info,
			CodeStaticSymbolTableAbsent,
			"no static symbol table (stripped binary)",
			nil)
		return nil
	}

	if symbols == nil || strings == nil {
		p.emit(
			diagnostics.Warning,
			CodeIncompleteStaticSymbolTable,
			"static symbol table is incomplete, skipping",
			diagnostics.Fields{
				"symtab_present": symbols != nil,
				"strtab_present": strings != nil,
			})
		return nil
	}

	table, err = p.decodeSymbolTable(symbols, strings)
	if err != nil {
		return err
	}
	p.Symbols = table

	return nil
}

func (p *parser) decodeSymbolTable(
	symbols *Section,
	strings *Section,
) (
	*SymbolTable,
	error,
) {
	if symbols.Link != uint32(strings.Index) {
		p.emit(
			diagnostics.Warning,
			CodeSymbolTableLinkMismatch,
			"symbol table does not link to its string table",
			diagnostics.Fields{
				"symbol_table": symbols.Name,
				"link":         symbols.Link,
				"string_table": strings.Index,
			})
	}

	entrySize := uint64(p.layout.symbolSize())
	if symbols.Size == 0 ||
		symbols.Size > p.reader.size ||
		symbols.Size%entrySize != 0 {

		return nil, p.fail(
			ErrInvalidSymbolTableSize,
			"invalid symbol table size",
			diagnostics.Fields{
				"section":    symbols.Index,
				"size":       symbols.Size,
				"entry_size": entrySize,
				"file_size":  p.reader.size,
			},
			nil)
	}

	if strings.Size == 0 || strings.Size > p.reader.size {
		return nil, p.fail(
			ErrInvalidStringTableSize,
			"invalid symbol string table size",
			diagnostics.Fields{
				"section":   strings.Index,
				"size":      strings.Size,
				"file_size": p.reader.size,
			},
			nil)
	}

	content, err := p.reader.readAt(symbols.Offset, symbols.Size)
	if err != nil {
		return nil, p.fail(
			ErrTruncatedRead,
			"incomplete symbol table read",
			diagnostics.Fields{"section": symbols.Index},
			err)
	}

	nameContent, err := p.reader.readAt(strings.Offset, strings.Size)
	if err != nil {
		return nil, p.fail(
			ErrTruncatedRead,
			"incomplete symbol string table read",
			diagnostics.Fields{"section": strings.Index},
			err)
	}

	entries, err := p.layout.decodeSymbols(content, p.ByteOrder)
	if err != nil {
		return nil, p.fail(
			ErrInvalidSymbolTableSize,
			"failed to decode symbol table",
			diagnostics.Fields{"section": symbols.Index},
			err)
	}

	names := StringTable(nameContent)
	table := &SymbolTable{
		SectionIndex:     symbols.Index,
		StringTableIndex: strings.Index,
		Symbols:          make([]*Symbol, 0, len(entries)),
		Names:            make(SymbolNameMap, len(entries)),
	}

	for idx, entry := range entries {
		name, ok := names.Lookup(entry.NameIndex)
		if !ok {
			return nil, p.fail(
				ErrInvalidSymbolNameOffset,
				"invalid symbol name offset",
				diagnostics.Fields{
					"symbol_table": symbols.Name,
					"symbol":       idx,
					"name_offset":  entry.NameIndex,
					"table_size":   len(names),
				},
				nil)
		}

		symbol := &Symbol{
			SymbolEntry: entry,
			Index:       idx,
			Name:        name,
		}

		demangled, err := demangle.ToString(name)
		if err == nil {
			symbol.DemangledName = demangled
		}

		table.Symbols = append(table.Symbols, symbol)
		table.Names[idx] = name
	}

	p.emit(
		diagnostics.Debug,
		CodeSymbolTableResolved,
		"symbol table resolved",
		diagnostics.Fields{
			"symbol_table": symbols.Name,
			"string_table": strings.Name,
			"count":        len(table.Symbols),
		})
	return table, nil
}
