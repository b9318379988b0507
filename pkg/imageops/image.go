// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package imageops holds the per-sample image operations of the input pipeline: decoding and resizing JPEG
// files into float images, and the random augmentations applied to training samples.
//
// Images are kept as float32 values in the [0, 1] range, in "height, width, channels" (channels last) layout,
// which is the layout of the batches yielded to the model.
package imageops

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// Channels is the number of channels of every Image: red, green and blue.
const Channels = 3

// Image is a 3-channel float image, stored as a flat slice in height, width, channels order.
type Image struct {
	Height, Width int
	Pix           []float32
}

// New returns a black image of the given size.
func New(height, width int) *Image {
	return &Image{
		Height: height,
		Width:  width,
		Pix:    make([]float32, height*width*Channels),
	}
}

// Shape returns the dimensions of the image as `[height, width, channels]`.
func (img *Image) Shape() []int {
	return []int{img.Height, img.Width, Channels}
}

// Size is the number of float values in the image.
func (img *Image) Size() int {
	return img.Height * img.Width * Channels
}

// offset of the first channel of pixel (x, y) in Pix.
func (img *Image) offset(x, y int) int {
	return (y*img.Width + x) * Channels
}

// At returns the value of the channel of pixel (x, y).
func (img *Image) At(x, y, channel int) float32 {
	return img.Pix[img.offset(x, y)+channel]
}

// Set the value of the channel of pixel (x, y).
func (img *Image) Set(x, y, channel int, value float32) {
	img.Pix[img.offset(x, y)+channel] = value
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	clone := &Image{Height: img.Height, Width: img.Width, Pix: make([]float32, len(img.Pix))}
	copy(clone.Pix, img.Pix)
	return clone
}

// Validate checks that the image is consistent: dimensions are positive and match the data size.
func (img *Image) Validate() error {
	if img == nil {
		return errors.New("nil image")
	}
	if img.Height <= 0 || img.Width <= 0 {
		return errors.Errorf("invalid image dimensions %dx%d", img.Height, img.Width)
	}
	if len(img.Pix) != img.Size() {
		return errors.Errorf("image %dx%dx%d should have %d values, got %d",
			img.Height, img.Width, Channels, img.Size(), len(img.Pix))
	}
	return nil
}

// MinMax returns the smallest and largest values in the image.
func (img *Image) MinMax() (minValue, maxValue float32) {
	minValue, maxValue = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range img.Pix {
		minValue = min(minValue, v)
		maxValue = max(maxValue, v)
	}
	return
}

// FromImage converts an image.Image to an Image, with values scaled to [0, 1].
// The alpha channel is dropped.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	img := New(height, width)
	if nrgba, ok := src.(*image.NRGBA); ok {
		// Fast path: imaging returns *image.NRGBA, 8 bits per channel.
		pos := 0
		for y := range height {
			row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
			for x := range width {
				for c := range Channels {
					img.Pix[pos] = float32(row[x*4+c]) / 255
					pos++
				}
			}
		}
		return img
	}
	pos := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// color.RGBA() returns 16 bits values packaged in uint32.
			r, g, b, _ := src.At(x, y).RGBA()
			for _, channel := range [Channels]uint32{r, g, b} {
				img.Pix[pos] = float32(channel) / float32(0xFFFF)
				pos++
			}
		}
	}
	return img
}

// ToNRGBA converts the image back to a displayable *image.NRGBA. Values are clipped to [0, 1] before
// being scaled to 8 bits, and the alpha channel is fully opaque.
func (img *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	pos := 0
	for y := range img.Height {
		for x := range img.Width {
			for c := range Channels {
				v := min(max(float64(img.Pix[pos]), 0), 1)
				out.Pix[y*out.Stride+x*4+c] = uint8(math.Round(255 * v))
				pos++
			}
			out.Pix[y*out.Stride+x*4+3] = 255
		}
	}
	return out
}
