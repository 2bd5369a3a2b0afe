// Package pak reads and writes .pak bundles: a flat archive of asset files
// with a zlib-compressed file table, used to ship encrypted assets as one file.
//
// Layout (little endian):
//
//	Header   magic[8] version:u32 fileCount:u32 tableOffset:u64
//	Data     entry payloads, stored or zlib-compressed
//	Table    compressedSize:u32 uncompressedSize:u32 zlib(entries)
//	Entry    name\0 compressedSize:u32 size:u32 flags:u8 offset:u64
package pak

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

const (
	magic   = "RRPAK\x00\r\n"
	version = 1

	headerSize = 24
	entrySize  = 17
)

// Entry flags.
const (
	FlagFile       uint8 = 0x01
	FlagCompressed uint8 = 0x02
)

// Archive errors.
var (
	ErrInvalidMagic       = errors.New("invalid pak magic")
	ErrUnsupportedVersion = errors.New("unsupported pak version")
	ErrCorruptTable       = errors.New("corrupt pak file table")
	ErrNotFound           = errors.New("file not found in pak")
)

// Header is the fixed-size archive header.
type Header struct {
	Magic       [8]byte
	Version     uint32
	FileCount   uint32
	TableOffset uint64
}

// Entry describes one file in the archive.
type Entry struct {
	Name           string
	CompressedSize uint32
	Size           uint32
	Flags          uint8
	Offset         uint64
}

// Compressed reports whether the payload is zlib-compressed.
func (e *Entry) Compressed() bool {
	return e.Flags&FlagCompressed != 0
}

// Archive is an opened .pak bundle. Reads use ReadAt and are safe for
// concurrent use.
type Archive struct {
	r       io.ReaderAt
	closer  io.Closer
	size    int64
	header  Header
	entries map[string]*Entry
}

// Open opens a .pak file for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	a, err := NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, err
	}
	a.closer = file
	return a, nil
}

// NewReader reads an archive from r, which holds size bytes.
func NewReader(r io.ReaderAt, size int64) (*Archive, error) {
	a := &Archive{
		r:       r,
		size:    size,
		entries: make(map[string]*Entry),
	}
	if err := a.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := a.readFileTable(); err != nil {
		return nil, fmt.Errorf("reading file table: %w", err)
	}
	return a, nil
}

// Close closes the underlying file, if the archive owns one.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *Archive) readHeader() error {
	sr := io.NewSectionReader(a.r, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &a.header); err != nil {
		return err
	}
	if string(a.header.Magic[:]) != magic {
		return ErrInvalidMagic
	}
	if a.header.Version != version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	off := int64(a.header.TableOffset)
	if off < headerSize || off+8 > a.size {
		return fmt.Errorf("%w: table offset %d", ErrCorruptTable, off)
	}

	var sizes [8]byte
	if _, err := a.r.ReadAt(sizes[:], off); err != nil {
		return err
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[0:])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])
	if off+8+int64(compressedSize) > a.size {
		return fmt.Errorf("%w: table exceeds file", ErrCorruptTable)
	}

	zr, err := zlib.NewReader(io.NewSectionReader(a.r, off+8, int64(compressedSize)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}
	defer zr.Close()

	table := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(zr, table); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	offset := 0
	for i := uint32(0); i < a.header.FileCount; i++ {
		nameEnd := bytes.IndexByte(table[offset:], 0)
		if nameEnd < 0 {
			return fmt.Errorf("%w: entry %d has no name terminator", ErrCorruptTable, i)
		}
		name := string(table[offset : offset+nameEnd])
		offset += nameEnd + 1

		if offset+entrySize > len(table) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorruptTable, i)
		}
		entry := &Entry{
			Name:           name,
			CompressedSize: binary.LittleEndian.Uint32(table[offset:]),
			Size:           binary.LittleEndian.Uint32(table[offset+4:]),
			Flags:          table[offset+8],
			Offset:         binary.LittleEndian.Uint64(table[offset+9:]),
		}
		offset += entrySize

		if entry.Offset+uint64(entry.CompressedSize) > uint64(a.size) {
			return fmt.Errorf("%w: %s points past end of file", ErrCorruptTable, name)
		}
		if entry.Flags&FlagFile != 0 {
			a.entries[normalizePath(name)] = entry
		}
	}
	return nil
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		result = append(result, e.Name)
	}
	sort.Strings(result)
	return result
}

// Len returns the number of files.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.entries[normalizePath(path)]
	return ok
}

// Stat returns the entry for path.
func (a *Archive) Stat(path string) (*Entry, bool) {
	e, ok := a.entries[normalizePath(path)]
	return e, ok
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	entry, ok := a.entries[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	sr := io.NewSectionReader(a.r, int64(entry.Offset), int64(entry.CompressedSize))
	if !entry.Compressed() {
		data := make([]byte, entry.Size)
		if _, err := io.ReadFull(sr, data); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return data, nil
	}

	zr, err := zlib.NewReader(sr)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	defer zr.Close()

	data := make([]byte, entry.Size)
	if _, err := io.ReadFull(zr, data); err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return data, nil
}

func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimPrefix(path, "./")
	return strings.ToLower(path)
}
