package elf

import (
	"encoding/binary"
	"fmt"

	"github.com/DylanMcBean/Exepose/diagnostics"
)

type Note struct {
	// SectionIndex is the owning SHT_NOTE section's table index.
	SectionIndex int

	Name        string
	Description string
	Type        uint32
}

func align4(size uint32) uint64 {
	return ((uint64(size) + 3) / 4) * 4
}

// parseNotes decodes every SHT_NOTE section.  Malformed note sections are
// reported and skipped.
func (p *parser) parseNotes() {
	p.Notes = []Note{}

	for _, section := range p.Sections {
		if section.SectionType != SectionTypeNote || section.Size == 0 {
			continue
		}

		notes, err := p.parseNoteSection(section)
		if err != nil {
			p.emit(
				diagnostics.Warning,
				CodeMalformedNote,
				"malformed note section, skipping",
				diagnostics.Fields{
					"section": section.Index,
					"name":    section.Name,
					"error":   err.Error(),
				})
			continue
		}

		p.Notes = append(p.Notes, notes...)
	}

	p.emit(
		diagnostics.Debug,
		CodeNotesDecoded,
		"notes decoded",
		diagnostics.Fields{"count": len(p.Notes)})
}

// NOTE: even though Elf64_Nhdr is defined, it looks like tools continue to
// use Elf32_Nhdr / 4-byte aligned note entries.
func (p *parser) parseNoteSection(section *Section) ([]Note, error) {
	content, err := p.reader.readAt(section.Offset, section.Size)
	if err != nil {
		return nil, err
	}

	if len(content)%4 != 0 {
		return nil, fmt.Errorf("note section is not 4-byte aligned")
	}

	notes := []Note{}
	for len(content) > 0 {
		header := NoteHeader{}
		n, err := binary.Decode(content, p.ByteOrder, &header)
		if err != nil {
			return nil, fmt.Errorf("failed to decode note header: %w", err)
		}
		if n != NoteHeaderSize {
			panic("should never happen")
		}
		content = content[n:]

		nameSize := align4(header.NameSize)
		if uint64(len(content)) < nameSize {
			return nil, fmt.Errorf("not enough name bytes (%d)", header.NameSize)
		}

		name := content[:header.NameSize]
		if len(name) > 0 && name[len(name)-1] == 0 {
			name = name[:len(name)-1]
		}
		content = content[nameSize:]

		descSize := align4(header.DescriptionSize)
		if uint64(len(content)) < descSize {
			return nil, fmt.Errorf(
				"not enough description bytes (%d)",
				header.DescriptionSize)
		}

		desc := content[:header.DescriptionSize]
		content = content[descSize:]

		notes = append(
			notes,
			Note{
				SectionIndex: section.Index,
				Name:         string(name),
				Description:  string(desc),
				Type:         header.Type,
			})
	}

	return notes, nil
}
