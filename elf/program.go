package elf

import (
	"github.com/DylanMcBean/Exepose/diagnostics"
)

func (p *parser) parseProgramHeaders() error {
	table := p.Header.ProgramHeaderTable()
	p.ProgramHeaders = []ProgramHeaderEntry{}
	if table.Count == 0 {
		return nil
	}

	entrySize := p.layout.programHeaderSize()
	if int(table.EntrySize) != entrySize {
		p.emit(
			diagnostics.Warning,
			CodeEntrySizeMismatch,
			"unexpected program header entry size",
			diagnostics.Fields{
				"entry_size":  table.EntrySize,
				"layout_size": entrySize,
			})
	}

	content, err := p.reader.readAt(
		table.Offset,
		uint64(table.Count)*uint64(entrySize))
	if err != nil {
		return p.fail(
			ErrTruncatedProgramHeader,
			"incomplete program header read",
			diagnostics.Fields{
				"offset": table.Offset,
				"count":  table.Count,
			},
			err)
	}

	entries, err := p.layout.decodeProgramHeaders(content, p.ByteOrder)
	if err != nil {
		return p.fail(
			ErrTruncatedProgramHeader,
			"failed to decode program headers",
			nil,
			err)
	}

	for idx, entry := range entries {
		if !p.reader.inBounds(entry.ContentOffset, entry.FileImageSize) {
			return p.fail(
				ErrProgramHeaderOutOfBounds,
				"program segment lies outside of file",
				diagnostics.Fields{
					"segment":      idx,
					"offset":       entry.ContentOffset,
					"segment_size": entry.FileImageSize,
					"file_size":    p.reader.size,
				},
				nil)
		}
	}

	p.ProgramHeaders = entries
	p.emit(
		diagnostics.Debug,
		CodeProgramHeadersRead,
		"program headers read",
		diagnostics.Fields{"count": len(entries)})
	return nil
}
