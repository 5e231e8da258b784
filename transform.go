package pff

import (
	"fmt"
)

const (
	rleRun      = 0x80
	rleRunCount = 0x7F
)

var zeros [rleRunCount]byte

// expandZeroRuns undoes the zero-run encoding. A control byte with the top bit
// set stands for (c & 0x7F) zero bytes, any other control byte is followed by
// c literal bytes.
func expandZeroRuns(src []byte) ([]byte, error) {
	dst := make([]byte, 0, 2*len(src))

	for i := 0; i < len(src); {
		c := src[i]
		i++

		if c&rleRun != 0 {
			dst = append(dst, zeros[:c&rleRunCount]...)
			continue
		}

		n := int(c)
		if i+n > len(src) {
			return nil, fmt.Errorf("rle: literal run of %d at %d, %d bytes left", n, i-1, len(src)-i)
		}

		dst = append(dst, src[i:i+n]...)
		i += n
	}

	return dst, nil
}

// mergePlanes interleaves the 32-bit words of the two halves of src:
// a0 b0 a1 b1 ... The length of src must be a multiple of 8.
func mergePlanes(src []byte) ([]byte, error) {
	if len(src)%8 != 0 {
		return nil, fmt.Errorf("merge: length %d is not a multiple of 8", len(src))
	}

	half := len(src) / 2
	dst := make([]byte, len(src))

	for i, j := 0, 0; i < half; i, j = i+4, j+8 {
		le.PutUint32(dst[j:], le.Uint32(src[i:]))
		le.PutUint32(dst[j+4:], le.Uint32(src[half+i:]))
	}

	return dst, nil
}

// applyDelta returns the byte-wise XOR of src and the reference frame.
func applyDelta(src, reference []byte) ([]byte, error) {
	if reference == nil {
		return nil, fmt.Errorf("%w: delta-coded chunk without previous frame", ErrReference)
	}

	if len(src) != len(reference) {
		return nil, fmt.Errorf("%w: delta of %d bytes against %d byte frame", ErrReference, len(src), len(reference))
	}

	dst := make([]byte, len(src))
	for i := range src {
		dst[i] = src[i] ^ reference[i]
	}

	return dst, nil
}
