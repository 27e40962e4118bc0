package elf

import (
	"bytes"
	"sort"

	"github.com/DylanMcBean/Exepose/diagnostics"
)

type FileAddress uint64

// StringTable is the raw content of a string table section.
type StringTable []byte

// Lookup returns the NUL terminated string starting at offset.  The
// terminator must lie strictly within the table; a string that runs off the
// end of the table is invalid rather than truncated.
func (table StringTable) Lookup(offset uint32) (string, bool) {
	if uint64(offset) >= uint64(len(table)) {
		return "", false
	}

	chunk := table[offset:]
	end := bytes.IndexByte(chunk, 0)
	if end == -1 {
		return "", false
	}

	return string(chunk[:end]), true
}

func (table StringTable) NumEntries() int {
	if len(table) == 0 {
		return 0
	}

	count := 0
	for _, b := range table[1:] {
		if b == 0 {
			count += 1
		}
	}
	return count
}

type Section struct {
	SectionHeaderEntry

	// Index is the section's position in the section header table.  This is
	// the index space used by sh_link, st_shndx and the name map.
	Index int

	Name string
}

// FileRange returns the [start, end) file range occupied by the section.
// SHT_NOBITS sections occupy no file space.
func (section *Section) FileRange() (uint64, uint64) {
	if section.SectionType == SectionTypeNoSpace {
		return section.Offset, section.Offset
	}
	return section.Offset, section.Offset + section.Size
}

// SectionNameMap maps section header table index to resolved section name.
type SectionNameMap map[int]string

func sortByOffset(sections []*Section) []*Section {
	sorted := make([]*Section, len(sections))
	copy(sorted, sections)

	sort.SliceStable(sorted, func(i int, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	return sorted
}

func (p *parser) parseSectionHeaders() error {
	table := p.Header.SectionHeaderTable()
	entrySize := p.layout.sectionHeaderSize()
	if table.Count > 0 && int(table.EntrySize) != entrySize {
		p.emit(
			diagnostics.Warning,
			CodeEntrySizeMismatch,
			"unexpected section header entry size",
			diagnostics.Fields{
				"entry_size":  table.EntrySize,
				"layout_size": entrySize,
			})
	}

	p.Sections = []*Section{}
	if table.Count == 0 {
		return nil
	}

	content, err := p.reader.readAt(
		table.Offset,
		uint64(table.Count)*uint64(entrySize))
	if err != nil {
		return p.fail(
			ErrTruncatedSectionHeader,
			"incomplete section header read",
			diagnostics.Fields{
				"offset": table.Offset,
				"count":  table.Count,
			},
			err)
	}

	entries, err := p.layout.decodeSectionHeaders(content, p.ByteOrder)
	if err != nil {
		return p.fail(
			ErrTruncatedSectionHeader,
			"failed to decode section headers",
			nil,
			err)
	}

	for idx, entry := range entries {
		p.Sections = append(
			p.Sections,
			&Section{
				SectionHeaderEntry: entry,
				Index:              idx,
			})
	}
	p.sectionsByOffset = sortByOffset(p.Sections)

	err = p.checkSectionLayout()
	if err != nil {
		return err
	}

	p.emit(
		diagnostics.Debug,
		CodeSectionHeadersRead,
		"section headers read",
		diagnostics.Fields{"count": len(p.Sections)})
	return nil
}

// checkSectionLayout walks the offset sorted view and rejects sections which
// start outside the file or overlap their predecessor.  The predecessor is
// the non-empty in-file range reaching furthest into the file so far.
// Ranges which run past the end of the file never become the predecessor;
// their sizes are checked by the table resolvers and checkSectionExtents.
func (p *parser) checkSectionLayout() error {
	var prev *Section
	prevEnd := uint64(0)

	for _, section := range p.sectionsByOffset {
		start, end := section.FileRange()
		fields := diagnostics.Fields{
			"section":   section.Index,
			"offset":    section.Offset,
			"size":      section.Size,
			"file_size": p.reader.size,
		}

		if start > p.reader.size {
			return p.fail(
				ErrSectionOffsetExceedsFile,
				"section offset exceeds file size",
				fields,
				nil)
		}

		if !p.reader.inBounds(start, end-start) {
			continue
		}

		if prev == nil {
			if start != end {
				prev = section
				prevEnd = end
			}
			continue
		}

		fields["previous_section"] = prev.Index
		fields["previous_offset"] = prev.Offset

		if start == prev.Offset {
			p.emit(
				diagnostics.Warning,
				CodeCoincidentSections,
				"sections share the same file offset",
				fields)
		} else if prevEnd > start {
			if start != end {
				return p.fail(
					ErrOverlappingSections,
					"section overlaps previous section",
					fields,
					nil)
			}

			p.emit(
				diagnostics.Warning,
				CodeEmptySectionInsideSection,
				"empty section lies inside previous section",
				fields)
		}

		if end > prevEnd {
			prev = section
			prevEnd = end
		}
	}

	return nil
}

// checkSectionExtents rejects any remaining section whose file range runs
// past the end of the file.  It runs after the string and symbol tables are
// resolved so that those report their own size errors first.
func (p *parser) checkSectionExtents() error {
	for _, section := range p.sectionsByOffset {
		start, end := section.FileRange()
		if p.reader.inBounds(start, end-start) {
			continue
		}

		return p.fail(
			ErrSectionOffsetExceedsFile,
			"section extends beyond end of file",
			diagnostics.Fields{
				"section":   section.Index,
				"offset":    section.Offset,
				"size":      section.Size,
				"file_size": p.reader.size,
			},
			nil)
	}

	return nil
}

func (p *parser) resolveSectionNames() error {
	idx := int(p.Header.SectionStringTableIndex())
	if idx >= len(p.Sections) {
		return p.fail(
			ErrInvalidStringTableIndex,
			"section name string table index out of bound",
			diagnostics.Fields{
				"index":        idx,
				"num_sections": len(p.Sections),
			},
			nil)
	}

	header := p.Sections[idx].SectionHeaderEntry
	fields := diagnostics.Fields{
		"index":     idx,
		"offset":    header.Offset,
		"size":      header.Size,
		"file_size": p.reader.size,
	}

	if header.Size == 0 || header.Size > p.reader.size {
		return p.fail(
			ErrInvalidStringTableSize,
			"invalid section name string table size",
			fields,
			nil)
	}

	content, err := p.reader.readAt(header.Offset, header.Size)
	if err != nil {
		return p.fail(
			ErrTruncatedStringTable,
			"incomplete section name string table read",
			fields,
			err)
	}

	names := StringTable(content)
	p.SectionNames = make(SectionNameMap, len(p.Sections))
	for _, section := range p.Sections {
		name, ok := names.Lookup(section.NameIndex)
		if !ok {
			return p.fail(
				ErrInvalidNameOffset,
				"invalid section name offset",
				diagnostics.Fields{
					"section":     section.Index,
					"name_offset": section.NameIndex,
					"table_size":  len(names),
				},
				nil)
		}

		section.Name = name
		p.SectionNames[section.Index] = name
	}

	p.emit(
		diagnostics.Debug,
		CodeSectionNamesResolved,
		"section names resolved",
		diagnostics.Fields{"string_table": idx})
	return nil
}
