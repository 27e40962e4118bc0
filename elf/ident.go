package elf

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/DylanMcBean/Exepose/diagnostics"
)

const hexDigits = "0123456789ABCDEF"

// EscapeBytes renders data as printable text.  Printable ASCII is kept as is,
// everything else is rendered as \xHH.
func EscapeBytes(data []byte) string {
	builder := strings.Builder{}
	builder.Grow(len(data) * 4)

	for _, b := range data {
		if b < 0x20 || b > 0x7e {
			builder.WriteString(`\x`)
			builder.WriteByte(hexDigits[b>>4])
			builder.WriteByte(hexDigits[b&0x0f])
		} else {
			builder.WriteByte(b)
		}
	}

	return builder.String()
}

// NOTE: identifier (e_ident) has no endian-ness.  We must parse identifier
// to determine the elf file's endian-ness (including the elf header).
func (p *parser) parseIdentifier() error {
	content, err := p.reader.readAt(0, ElfIdentifierSize)
	if err != nil {
		return p.fail(
			ErrTruncatedInput,
			"incomplete identifier read",
			diagnostics.Fields{"file_size": p.reader.size},
			err)
	}

	id := Identifier{}
	n, err := binary.Decode(content, binary.LittleEndian, &id)
	if err != nil || n != ElfIdentifierSize {
		panic("should never happen")
	}

	if !bytes.Equal(id.Magic[:], IdentifierMagic) {
		return p.fail(
			ErrBadMagic,
			"invalid elf magic",
			diagnostics.Fields{
				"expected": EscapeBytes(IdentifierMagic),
				"actual":   EscapeBytes(id.Magic[:]),
			},
			nil)
	}

	p.layout = layouts[id.Class]
	if p.layout == nil {
		return p.fail(
			ErrBadClass,
			"invalid elf class",
			diagnostics.Fields{"class": uint8(id.Class)},
			nil)
	}

	switch id.DataEncoding {
	case DataEncodingTwosComplementLittleEndian:
		p.ByteOrder = binary.LittleEndian
	case DataEncodingTwosComplementBigEndian:
		p.ByteOrder = binary.BigEndian
	default:
		return p.fail(
			ErrBadEncoding,
			"invalid elf data encoding",
			diagnostics.Fields{"data_encoding": uint8(id.DataEncoding)},
			nil)
	}

	p.identifier = id
	p.emit(
		diagnostics.Debug,
		CodeIdentifierRead,
		"identifier read",
		diagnostics.Fields{
			"class":         id.Class.String(),
			"data_encoding": id.DataEncoding.String(),
		})
	return nil
}

// validateIdentifier runs the identifier checks which depend on the decoded
// header.  Unknown os/abi values and non-zero padding are only warnings.
func (p *parser) validateIdentifier() error {
	if p.Header.Class() != p.identifier.Class {
		return p.fail(
			ErrWidthMismatch,
			"header layout does not match identifier class",
			diagnostics.Fields{
				"layout_class":     p.Header.Class().String(),
				"identifier_class": p.identifier.Class.String(),
			},
			nil)
	}

	if uint32(p.identifier.IdentifierVersion) != p.Header.Version() {
		return p.fail(
			ErrVersionMismatch,
			"identifier version does not match header version",
			diagnostics.Fields{
				"identifier_version": p.identifier.IdentifierVersion,
				"header_version":     p.Header.Version(),
			},
			nil)
	}

	p.OperatingSystemABI = p.identifier.OperatingSystemABI
	if !p.OperatingSystemABI.IsKnown() {
		p.emit(
			diagnostics.Warning,
			CodeUnknownOperatingSystemABI,
			"unknown elf os/abi, defaulting to none",
			diagnostics.Fields{"os_abi": uint8(p.OperatingSystemABI)})
		p.OperatingSystemABI = OperatingSystemABINone
	}

	for _, padding := range p.identifier.Padding {
		if padding != 0 {
			p.emit(
				diagnostics.Warning,
				CodeNonZeroPadding,
				"elf identifier padding is not all zero",
				diagnostics.Fields{
					"padding": EscapeBytes(p.identifier.Padding[:]),
				})
			break
		}
	}

	return nil
}
