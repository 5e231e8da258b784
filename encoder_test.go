package pff

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
)

// huffmanNode is a node of the tree built by encodeHuffman.
type huffmanNode struct {
	value       int
	weight      int
	left, right *huffmanNode
}

// buildHuffmanTable flattens a tree into the node table layout: an internal
// node stores the index of its right child, its left child follows it.
func buildHuffmanTable(n *huffmanNode, table []uint16, codes map[int][]byte, code []byte) []uint16 {
	pos := len(table)
	table = append(table, 0)

	if n.left == nil {
		table[pos] = huffmanLeaf | uint16(n.value)
		codes[n.value] = append([]byte(nil), code...)

		return table
	}

	table = buildHuffmanTable(n.left, table, codes, append(code, 0))
	table[pos] = uint16(len(table))
	table = buildHuffmanTable(n.right, table, codes, append(code, 1))

	return table
}

// encodeHuffman returns one entropy coded block of src, terminated by the end symbol.
func encodeHuffman(src []byte) []byte {
	weights := map[int]int{huffmanEnd: 1}
	for _, c := range src {
		weights[int(c)]++
	}

	// The root must be an internal node.
	if len(weights) == 1 {
		weights[0] = 1
	}

	var nodes []*huffmanNode
	for v, w := range weights {
		nodes = append(nodes, &huffmanNode{value: v, weight: w})
	}

	for len(nodes) > 1 {
		sort.Slice(nodes, func(i, j int) bool {
			if nodes[i].weight == nodes[j].weight {
				return nodes[i].value < nodes[j].value
			}

			return nodes[i].weight < nodes[j].weight
		})

		n := &huffmanNode{value: nodes[0].value, weight: nodes[0].weight + nodes[1].weight, left: nodes[0], right: nodes[1]}
		nodes = append([]*huffmanNode{n}, nodes[2:]...)
	}

	codes := make(map[int][]byte)
	table := buildHuffmanTable(nodes[0], nil, codes, nil)

	var bits []byte
	for _, c := range src {
		bits = append(bits, codes[int(c)]...)
	}
	bits = append(bits, codes[huffmanEnd]...)

	return packHuffman(table, bits)
}

// packHuffman serializes a node table and a bit sequence, packed MSB-first into little-endian words.
func packHuffman(table []uint16, bits []byte) []byte {
	var buf bytes.Buffer

	binary.Write(&buf, binary.LittleEndian, uint16(len(table)))
	binary.Write(&buf, binary.LittleEndian, table)

	for i := 0; i < len(bits); i += 32 {
		var word uint32
		for j := 0; j < 32 && i+j < len(bits); j++ {
			if bits[i+j] != 0 {
				word |= 0x80000000 >> j
			}
		}
		binary.Write(&buf, binary.LittleEndian, word)
	}

	return buf.Bytes()
}

// encodeZeroRuns is the inverse of expandZeroRuns.
func encodeZeroRuns(src []byte) []byte {
	var dst []byte

	for i := 0; i < len(src); {
		if src[i] == 0 {
			n := 0
			for i+n < len(src) && src[i+n] == 0 && n < rleRunCount {
				n++
			}
			dst = append(dst, rleRun|byte(n))
			i += n

			continue
		}

		n := 0
		for i+n < len(src) && src[i+n] != 0 && n < rleRunCount {
			n++
		}
		dst = append(dst, byte(n))
		dst = append(dst, src[i:i+n]...)
		i += n
	}

	return dst
}

// splitPlanes is the inverse of mergePlanes.
func splitPlanes(src []byte) []byte {
	half := len(src) / 2
	dst := make([]byte, len(src))

	for i, j := 0, 0; j < len(src); i, j = i+4, j+8 {
		copy(dst[i:i+4], src[j:j+4])
		copy(dst[half+i:half+i+4], src[j+4:j+8])
	}

	return dst
}

func xorBytes(a, b []byte) []byte {
	dst := make([]byte, len(a))
	for i := range a {
		dst[i] = a[i] ^ b[i]
	}

	return dst
}

// testHeader returns a DXT1 header with non-zero reserved fields.
func testHeader(width, height int) DDSHeader {
	h := DDSHeader{
		Size:              ddsHeaderSize,
		Flags:             0x1007 | 0x80000,
		Height:            uint32(height),
		Width:             uint32(width),
		PitchOrLinearSize: uint32(DXT1Size(width, height)),
		MipMapCount:       1,
		Caps:              0x1000,
	}

	for i := range h.Reserved1 {
		h.Reserved1[i] = uint32(i + 1)
	}
	h.Reserved2 = 0xDEADBEEF

	h.PixelFormat = DDSPixelFormat{
		Size:   ddsPixelFormatSize,
		Flags:  DDSPixelFourCC,
		FourCC: [4]byte{'D', 'X', 'T', '1'},
	}

	return h
}

// encodeMetadata returns the metadata block that opens the first video chunk.
func encodeMetadata(h DDSHeader) []byte {
	var buf bytes.Buffer

	binary.Write(&buf, binary.LittleEndian, uint32(DXT1Size(int(h.Width), int(h.Height))))
	buf.WriteString(ddsMagic)
	binary.Write(&buf, binary.LittleEndian, h)

	return buf.Bytes()
}

// encodeVideoChunk encodes pixels with the given flags. Metadata is prepended
// when header is not nil; reference is the previous frame for FlagIntermediate.
func encodeVideoChunk(header *DDSHeader, flags VideoFlags, pixels, reference []byte) []byte {
	var chunk []byte
	if header != nil {
		chunk = encodeMetadata(*header)
	}
	chunk = append(chunk, byte(flags))

	data := pixels
	if flags&FlagIntermediate != 0 {
		data = xorBytes(pixels, reference)
	}

	if flags&FlagTwoParts != 0 {
		data = splitPlanes(data)
	}

	if flags&FlagRLE != 0 {
		data = encodeZeroRuns(data)
	}

	if flags&FlagTwoParts != 0 && flags&FlagRLE == 0 {
		half := len(data) / 2
		chunk = append(chunk, encodeHuffman(data[:half])...)

		return append(chunk, encodeHuffman(data[half:])...)
	}

	return append(chunk, encodeHuffman(data)...)
}

// testSound is one sound chunk of a test frame.
type testSound struct {
	Track int
	Data  []byte
}

// testDocument builds PFF documents.
type testDocument struct {
	bytes.Buffer
}

func (d *testDocument) cstring(s string) {
	d.WriteString(s)
	d.WriteByte(0)
}

// Header writes the document header. An empty video skips the video descriptor.
func (d *testDocument) Header(video string, languages ...string) *testDocument {
	d.cstring(markerMagic)
	if video != "" {
		d.cstring(video)
	}

	for _, lang := range languages {
		d.cstring(formatSoundVorbis)
		d.cstring(lang)
	}

	d.cstring(markerEndHeader)

	return d
}

// Frame writes a frame block. A nil video skips the video chunk.
func (d *testDocument) Frame(timestamp float64, video []byte, sounds ...testSound) *testDocument {
	var body bytes.Buffer

	binary.Write(&body, binary.LittleEndian, math.Float64bits(timestamp))

	if video != nil {
		body.WriteString(markerVideo)
		body.WriteByte(0)
		binary.Write(&body, binary.LittleEndian, uint32(len(video)))
		body.Write(video)
	}

	for _, s := range sounds {
		body.WriteString(markerSound)
		body.WriteByte(0)
		binary.Write(&body, binary.LittleEndian, uint32(len(s.Data)+1))
		body.WriteByte(byte(s.Track))
		body.Write(s.Data)
	}

	body.WriteString(markerEndFrame)
	body.WriteByte(0)

	d.cstring(markerFrame)
	binary.Write(d, binary.LittleEndian, uint32(body.Len()))
	d.Write(body.Bytes())

	return d
}

// End writes the end-of-document marker.
func (d *testDocument) End() []byte {
	d.cstring(markerEndFile)

	return d.Bytes()
}

// testPixels returns deterministic DXT1 data for a width x height image.
func testPixels(width, height int, seed byte) []byte {
	p := make([]byte, DXT1Size(width, height))
	for i := range p {
		if i%5 == 0 {
			continue
		}
		p[i] = byte(i)*31 + seed
	}

	return p
}
