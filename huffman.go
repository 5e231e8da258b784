package pff

import (
	"errors"
	"fmt"
)

const (
	huffmanLeaf      = 0x8000
	huffmanValueMask = 0x1FF
	huffmanEnd       = 0x100
)

var errHuffmanTable = errors.New("empty huffman table")

// huffmanTable is a binary decoding automaton flattened into node entries.
// From node i a 1 bit jumps to node table[i], a 0 bit moves to node i+1.
// Entries with the top bit set are leaves holding a 9-bit symbol.
type huffmanTable []uint16

func (b *Buffer) readHuffmanTable() (huffmanTable, error) {
	count, err := b.readUint16()
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return nil, errHuffmanTable
	}

	if !b.has(int(count) * 2) {
		return nil, b.truncated()
	}

	table := make(huffmanTable, count)
	for i := range table {
		table[i], _ = b.readUint16()
	}

	return table, nil
}

// readHuffman decodes one entropy coded block: a node table followed by a
// bit stream packed MSB-first into little-endian 32-bit words. Decoded bytes
// are appended to dst. The buffer is left right after the last word consumed.
func (b *Buffer) readHuffman(dst []byte) ([]byte, error) {
	table, err := b.readHuffmanTable()
	if err != nil {
		return dst, fmt.Errorf("huffman table: %w", err)
	}

	var bits, mask uint32
	index := 0

	for {
		if mask == 0 {
			if bits, err = b.readUint32(); err != nil {
				return dst, fmt.Errorf("huffman stream: %w", err)
			}
			mask = 0x80000000
		}

		if bits&mask != 0 {
			index = int(table[index])
		} else {
			index++
		}
		mask >>= 1

		if index >= len(table) {
			return dst, fmt.Errorf("huffman node %d out of %d", index, len(table))
		}

		node := table[index]
		if node&huffmanLeaf == 0 {
			continue
		}

		value := node & huffmanValueMask
		if value == huffmanEnd {
			return dst, nil
		}

		if value > 0xFF {
			return dst, fmt.Errorf("huffman symbol 0x%03X", value)
		}

		dst = append(dst, byte(value))
		index = 0
	}
}
