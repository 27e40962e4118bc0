package elf

import (
	"encoding/binary"
	"testing"
)

func FuzzDecodeBytes(f *testing.F) {
	for _, v := range variants {
		f.Add(newDefaultTestFile(v.class, v.order).build().bytes())
	}
	f.Add([]byte{})
	f.Add([]byte("\x7fELF"))

	image := newDefaultTestFile(Class64, binary.LittleEndian).build()
	image.patchHeader(func(hdr *testHeader) {
		hdr.shnum = 0xffff
		hdr.phnum = 0xffff
	})
	f.Add(image.bytes())

	f.Fuzz(func(t *testing.T, content []byte) {
		file, err := DecodeBytes(content, nil)
		if err != nil {
			if file != nil {
				t.Fatalf("partial model returned with error: %v", err)
			}
			if _, ok := KindOf(err); !ok {
				t.Fatalf("untyped decode error: %v", err)
			}
			return
		}

		for _, section := range file.Sections {
			start, end := section.FileRange()
			if end < start || end > file.FileSize {
				t.Fatalf("section %d outside of file", section.Index)
			}
		}
	})
}
