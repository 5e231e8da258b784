package pff

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	_ "github.com/lukegb/dds"
)

const dxt1BlockSize = 8

// DXT1Size returns the number of bytes of the first mip level of a DXT1 image.
func DXT1Size(width, height int) int {
	return max(1, (width+3)/4) * max(1, (height+3)/4) * dxt1BlockSize
}

// DecodeImage decodes a complete DDS file, such as Frame.Video, into image.RGBA.
func DecodeImage(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dds: %w", err)
	}

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	return rgba, nil
}
