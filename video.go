package pff

import (
	"fmt"
	"strings"
)

// VideoFlags is the leading byte of a video chunk, selecting the decoding stages.
type VideoFlags uint8

// Video chunk flags.
const (
	// FlagIntermediate marks a chunk coded as XOR difference to the previous frame.
	FlagIntermediate VideoFlags = 1 << iota
	// FlagCompressed marks an entropy coded chunk. Uncompressed chunks are not supported.
	FlagCompressed
	// FlagRLE marks zero-run encoding applied after entropy decoding.
	FlagRLE
	// FlagTwoParts marks pixel data split into two planes of 32-bit words.
	FlagTwoParts
)

var errUncompressed = fmt.Errorf("%w: uncompressed video chunk", ErrUnsupported)

func (f VideoFlags) String() string {
	var names []string
	if f&FlagIntermediate != 0 {
		names = append(names, "INTERMEDIATE")
	}
	if f&FlagCompressed != 0 {
		names = append(names, "COMPRESSED")
	}
	if f&FlagRLE != 0 {
		names = append(names, "RLE")
	}
	if f&FlagTwoParts != 0 {
		names = append(names, "TWO_PARTS")
	}

	if len(names) == 0 {
		return "0"
	}

	return strings.Join(names, "|")
}

// Video decodes DDS video chunks into DXT1 pixel data.
// The DDS metadata is taken from the first chunk; each decoded frame is the
// reference for the next delta-coded chunk, so chunks must be decoded in order.
type Video struct {
	buf *Buffer

	metadata *DDSMetadata
	prefix   []byte

	reference     []byte
	framesDecoded int
}

// NewVideo creates a video decoder.
func NewVideo() *Video {
	video := &Video{}
	video.buf = NewBuffer(nil)

	return video
}

// HasHeader checks whether the DDS metadata has been decoded.
func (v *Video) HasHeader() bool {
	return v.metadata != nil
}

// Metadata returns the DDS metadata, nil before the first chunk was decoded.
func (v *Video) Metadata() *DDSMetadata {
	return v.metadata
}

// Width returns the frame width in pixels.
func (v *Video) Width() int {
	if v.HasHeader() {
		return int(v.metadata.Header.Width)
	}

	return 0
}

// Height returns the frame height in pixels.
func (v *Video) Height() int {
	if v.HasHeader() {
		return int(v.metadata.Header.Height)
	}

	return 0
}

// FramesDecoded returns the number of chunks decoded so far.
func (v *Video) FramesDecoded() int {
	return v.framesDecoded
}

// Decode decodes one video chunk of the given frame and returns the complete
// DDS image: "DDS ", the 124-byte header and the pixel data.
// The returned slice is never modified by later calls.
func (v *Video) Decode(chunk *Chunk, frame int) ([]byte, error) {
	v.buf.Rewind()
	v.buf.Write(chunk.Data)

	fail := func(field string, err error) error {
		return newFormatError(chunk.Offset+v.buf.Offset(), frame, field, err)
	}

	if v.metadata == nil {
		m, err := v.buf.readDDSMetadata()
		if err != nil {
			return nil, fail("dds metadata", err)
		}

		prefix, err := m.ImagePrefix()
		if err != nil {
			return nil, fail("dds metadata", err)
		}

		v.metadata = m
		v.prefix = prefix
	}

	flags, err := v.buf.readUint8()
	if err != nil {
		return nil, fail("video flags", err)
	}

	data, err := v.decodePixels(VideoFlags(flags))
	if err != nil {
		return nil, fail("video "+VideoFlags(flags).String(), err)
	}

	v.reference = data
	v.framesDecoded++

	img := make([]byte, 0, len(v.prefix)+len(data))
	img = append(img, v.prefix...)
	img = append(img, data...)

	return img, nil
}

func (v *Video) decodePixels(flags VideoFlags) ([]byte, error) {
	if flags&FlagCompressed == 0 {
		return nil, errUncompressed
	}

	data, err := v.buf.readHuffman(nil)
	if err != nil {
		return nil, err
	}

	if flags&FlagTwoParts != 0 && flags&FlagRLE == 0 {
		if data, err = v.buf.readHuffman(data); err != nil {
			return nil, err
		}
	}

	if flags&FlagRLE != 0 {
		if data, err = expandZeroRuns(data); err != nil {
			return nil, err
		}
	}

	if flags&FlagTwoParts != 0 {
		if data, err = mergePlanes(data); err != nil {
			return nil, err
		}
	}

	if flags&FlagIntermediate != 0 {
		if data, err = applyDelta(data, v.reference); err != nil {
			return nil, err
		}
	}

	return data, nil
}
