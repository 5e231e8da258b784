package pff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

var (
	// BufferSize is the default size for buffer.
	BufferSize = 128 * 1024

	// MaxStringSize is the longest NUL-terminated string (marker, format or language tag) accepted.
	MaxStringSize = 64 * 1024
)

var le = binary.LittleEndian

// readError is a failure of the underlying reader. It says nothing about the document.
type readError struct {
	err error
}

func (e *readError) Error() string {
	return e.err.Error()
}

func (e *readError) Unwrap() error {
	return e.err
}

// Buffer provides the data source for the demuxer and the video decoder.
// All fields are little-endian. A Buffer either pulls data from an io.Reader
// or serves bytes handed over with Write, and keeps track of the absolute
// byte offset so errors can point at the failing field.
type Buffer struct {
	reader io.Reader
	bytes  []byte

	index  int   // read position within bytes
	offset int64 // absolute offset of bytes[0]

	hasEnded bool
	err      error

	available []byte
}

// NewBuffer creates a buffer instance. If r is nil, data must be supplied via Write.
func NewBuffer(r io.Reader) *Buffer {
	buf := &Buffer{}

	buf.reader = r
	buf.bytes = make([]byte, 0, BufferSize)
	if r != nil {
		buf.available = make([]byte, BufferSize)
	}

	return buf
}

// Bytes returns a slice holding the unread portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.bytes[b.index:]
}

// Offset returns the absolute offset of the next unread byte.
func (b *Buffer) Offset() int64 {
	return b.offset + int64(b.index)
}

// Remaining returns the number of loaded, yet unread bytes in the buffer.
func (b *Buffer) Remaining() int {
	return len(b.bytes) - b.index
}

// Write appends the contents of p to the buffer.
func (b *Buffer) Write(p []byte) int {
	b.discardReadBytes()

	b.bytes = append(b.bytes, p...)

	b.hasEnded = false

	return len(p)
}

// Rewind drops all data of an in-memory buffer and resets the offset to 0.
// It has no effect on buffers reading from an io.Reader.
func (b *Buffer) Rewind() {
	if b.reader != nil {
		return
	}

	b.bytes = b.bytes[:0]
	b.index = 0
	b.offset = 0
	b.hasEnded = false
}

// HasEnded checks whether the underlying source is exhausted.
func (b *Buffer) HasEnded() bool {
	return b.hasEnded
}

// Err returns the first non-EOF error returned by the underlying reader.
func (b *Buffer) Err() error {
	return b.err
}

func (b *Buffer) load() bool {
	if b.reader == nil || b.hasEnded {
		b.hasEnded = true

		return false
	}

	n, err := io.ReadFull(b.reader, b.available)
	if n > 0 {
		b.Write(b.available[:n])
	}

	switch {
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
	case errors.Is(err, io.EOF):
		b.hasEnded = true
	default:
		b.err = err
		b.hasEnded = true
	}

	return n > 0
}

func (b *Buffer) discardReadBytes() {
	if b.index == 0 {
		return
	}

	n := copy(b.bytes, b.bytes[b.index:])
	b.bytes = b.bytes[:n]

	b.offset += int64(b.index)
	b.index = 0
}

func (b *Buffer) has(count int) bool {
	for b.Remaining() < count {
		if !b.load() {
			return false
		}
	}

	return true
}

func (b *Buffer) truncated() error {
	if b.err != nil {
		return &readError{b.err}
	}

	return io.ErrUnexpectedEOF
}

func (b *Buffer) peek(count int) []byte {
	if !b.has(count) {
		return nil
	}

	return b.bytes[b.index : b.index+count]
}

func (b *Buffer) readUint8() (uint8, error) {
	if !b.has(1) {
		return 0, b.truncated()
	}

	v := b.bytes[b.index]
	b.index++

	return v, nil
}

func (b *Buffer) readUint16() (uint16, error) {
	if !b.has(2) {
		return 0, b.truncated()
	}

	v := le.Uint16(b.bytes[b.index:])
	b.index += 2

	return v, nil
}

func (b *Buffer) readUint32() (uint32, error) {
	if !b.has(4) {
		return 0, b.truncated()
	}

	v := le.Uint32(b.bytes[b.index:])
	b.index += 4

	return v, nil
}

func (b *Buffer) readFloat64() (float64, error) {
	if !b.has(8) {
		return 0, b.truncated()
	}

	v := math.Float64frombits(le.Uint64(b.bytes[b.index:]))
	b.index += 8

	return v, nil
}

// readBytes returns a copy of the next count bytes. Payloads larger than the
// loaded window are streamed from the reader, so a corrupt size field costs
// at most the size of the remaining input.
func (b *Buffer) readBytes(count int) ([]byte, error) {
	if count <= b.Remaining() || b.reader == nil {
		if !b.has(count) {
			return nil, b.truncated()
		}

		p := make([]byte, count)
		copy(p, b.bytes[b.index:])
		b.index += count

		return p, nil
	}

	out := bytes.NewBuffer(make([]byte, 0, min(count, BufferSize)))
	out.Write(b.bytes[b.index:])

	b.offset += int64(len(b.bytes))
	b.bytes = b.bytes[:0]
	b.index = 0

	if b.hasEnded {
		return nil, b.truncated()
	}

	n, err := io.CopyN(out, b.reader, int64(count-out.Len()))
	b.offset += n
	if err != nil {
		b.hasEnded = true
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		b.err = err

		return nil, &readError{err}
	}

	return out.Bytes(), nil
}

func (b *Buffer) readCString() (string, error) {
	for i := 0; i < MaxStringSize; i++ {
		if !b.has(i + 1) {
			return "", b.truncated()
		}

		if b.bytes[b.index+i] == 0 {
			s := string(b.bytes[b.index : b.index+i])
			b.index += i + 1

			return s, nil
		}
	}

	return "", fmt.Errorf("string longer than %d bytes", MaxStringSize)
}

// hasPrefix reports whether the unread data starts with prefix, without consuming it.
func (b *Buffer) hasPrefix(prefix string) bool {
	p := b.peek(len(prefix))

	return p != nil && string(p) == prefix
}

// hasMarker reports whether the unread data starts with the NUL-terminated marker,
// without consuming it.
func (b *Buffer) hasMarker(marker string) bool {
	p := b.peek(len(marker) + 1)

	return p != nil && p[len(marker)] == 0 && string(p[:len(marker)]) == marker
}

func (b *Buffer) expectMarker(marker string) error {
	if b.hasMarker(marker) {
		b.index += len(marker) + 1

		return nil
	}

	if b.hasEnded && b.Remaining() <= len(marker) && (b.err != nil || strings.HasPrefix(marker, string(b.Bytes()))) {
		return b.truncated()
	}

	return fmt.Errorf("expected marker %q", marker)
}
