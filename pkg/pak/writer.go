package pak

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrDuplicate is returned when the same path is added twice.
var ErrDuplicate = errors.New("duplicate pak entry")

// Writer builds an archive. The header is written as a placeholder and
// patched on Close once the table offset is known.
type Writer struct {
	w       io.WriteSeeker
	offset  uint64
	entries []Entry
	seen    map[string]bool
	closed  bool
}

// NewWriter starts a new archive on w.
func NewWriter(w io.WriteSeeker) (*Writer, error) {
	if _, err := w.Write(make([]byte, headerSize)); err != nil {
		return nil, fmt.Errorf("writing header placeholder: %w", err)
	}
	return &Writer{w: w, offset: headerSize, seen: make(map[string]bool)}, nil
}

// Add appends a file. With compress set, the payload is stored
// zlib-compressed when that makes it smaller.
func (pw *Writer) Add(name string, data []byte, compress bool) error {
	key := normalizePath(name)
	if pw.seen[key] {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}

	payload := data
	flags := FlagFile
	if compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		if buf.Len() < len(data) {
			payload = buf.Bytes()
			flags |= FlagCompressed
		}
	}

	if _, err := pw.w.Write(payload); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	pw.entries = append(pw.entries, Entry{
		Name:           name,
		CompressedSize: uint32(len(payload)),
		Size:           uint32(len(data)),
		Flags:          flags,
		Offset:         pw.offset,
	})
	pw.seen[key] = true
	pw.offset += uint64(len(payload))
	return nil
}

// Close writes the file table and patches the header. It does not close
// the underlying writer.
func (pw *Writer) Close() error {
	if pw.closed {
		return nil
	}
	pw.closed = true

	var table bytes.Buffer
	for _, e := range pw.entries {
		table.WriteString(e.Name)
		table.WriteByte(0)
		var rec [entrySize]byte
		binary.LittleEndian.PutUint32(rec[0:], e.CompressedSize)
		binary.LittleEndian.PutUint32(rec[4:], e.Size)
		rec[8] = e.Flags
		binary.LittleEndian.PutUint64(rec[9:], e.Offset)
		table.Write(rec[:])
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(table.Bytes()); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:], uint32(compressed.Len()))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(table.Len()))
	if _, err := pw.w.Write(sizes[:]); err != nil {
		return err
	}
	if _, err := pw.w.Write(compressed.Bytes()); err != nil {
		return err
	}

	header := Header{
		Version:     version,
		FileCount:   uint32(len(pw.entries)),
		TableOffset: pw.offset,
	}
	copy(header.Magic[:], magic)
	if _, err := pw.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(pw.w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("patching header: %w", err)
	}
	_, err := pw.w.Seek(0, io.SeekEnd)
	return err
}
