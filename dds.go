package pff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	ddsMagic           = "DDS "
	ddsHeaderSize      = 124
	ddsPixelFormatSize = 32

	// DDSPixelFourCC is the pixel format flag marking a valid FourCC field.
	DDSPixelFourCC = 0x4

	fourCCDXT1 = "DXT1"
)

// DDSPixelFormat is the DDS_PIXELFORMAT structure nested in DDSHeader.
type DDSPixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      [4]byte
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

// DDSHeader is the 124-byte DDS_HEADER structure that follows the "DDS " magic.
// Reserved fields are kept, so a parsed header marshals back to the same bytes.
type DDSHeader struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       DDSPixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

// FourCC returns the compression tag without NUL padding.
func (h *DDSHeader) FourCC() string {
	return strings.TrimRight(string(h.PixelFormat.FourCC[:]), "\x00")
}

// MarshalBinary encodes the header in its 124-byte on-disk form.
func (h *DDSHeader) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(ddsHeaderSize)

	if err := binary.Write(&buf, le, h); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a 124-byte header and checks its structure sizes.
func (h *DDSHeader) UnmarshalBinary(p []byte) error {
	if len(p) != ddsHeaderSize {
		return fmt.Errorf("dds header: got %d bytes, want %d", len(p), ddsHeaderSize)
	}

	var hdr DDSHeader
	if err := binary.Read(bytes.NewReader(p), le, &hdr); err != nil {
		return err
	}

	if hdr.Size != ddsHeaderSize {
		return fmt.Errorf("dds header: size field %d, want %d", hdr.Size, ddsHeaderSize)
	}

	if hdr.PixelFormat.Size != ddsPixelFormatSize {
		return fmt.Errorf("dds pixel format: size field %d, want %d", hdr.PixelFormat.Size, ddsPixelFormatSize)
	}

	*h = hdr

	return nil
}

// DDSMetadata is the image description sent once, at the start of the first video chunk.
type DDSMetadata struct {
	DecompressedSize uint32
	Header           DDSHeader
}

func (b *Buffer) readDDSMetadata() (*DDSMetadata, error) {
	m := &DDSMetadata{}

	var err error
	if m.DecompressedSize, err = b.readUint32(); err != nil {
		return nil, err
	}

	magic := b.peek(len(ddsMagic))
	if magic == nil {
		return nil, b.truncated()
	}

	if string(magic) != ddsMagic {
		return nil, fmt.Errorf("dds magic %q", magic)
	}
	b.index += len(ddsMagic)

	if !b.has(ddsHeaderSize) {
		return nil, b.truncated()
	}

	if err := m.Header.UnmarshalBinary(b.bytes[b.index : b.index+ddsHeaderSize]); err != nil {
		return nil, err
	}
	b.index += ddsHeaderSize

	if m.Header.PixelFormat.Flags&DDSPixelFourCC == 0 {
		return nil, fmt.Errorf("%w: dds pixel format without FourCC", ErrUnsupported)
	}

	if m.Header.FourCC() != fourCCDXT1 {
		return nil, fmt.Errorf("%w: dds compression %q", ErrUnsupported, m.Header.FourCC())
	}

	return m, nil
}

// ImagePrefix returns "DDS " followed by the marshaled header, the bytes that
// precede the pixel data of every frame image.
func (m *DDSMetadata) ImagePrefix() ([]byte, error) {
	hdr, err := m.Header.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return append([]byte(ddsMagic), hdr...), nil
}
