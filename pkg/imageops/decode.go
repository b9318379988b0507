// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageops

import (
	"bytes"
	"image/jpeg"
	"os"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultImageSize is the height and width images are resized to.
const DefaultImageSize = 224

// Filters maps the names accepted by ParseFilter to the imaging resampling filters.
var Filters = map[string]imaging.ResampleFilter{
	"nearest":  imaging.NearestNeighbor,
	"box":      imaging.Box,
	"bilinear": imaging.Linear,
	"bicubic":  imaging.CatmullRom,
	"lanczos":  imaging.Lanczos,
}

// DefaultFilter is the name of the interpolation used by default to resize images.
const DefaultFilter = "bilinear"

// ParseFilter returns the resampling filter with the given name (case-insensitive).
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	filter, found := Filters[strings.ToLower(name)]
	if !found {
		names := make([]string, 0, len(Filters))
		for k := range Filters {
			names = append(names, k)
		}
		slices.Sort(names)
		return imaging.ResampleFilter{}, errors.Errorf("unknown resize filter %q, valid values are %q", name, names)
	}
	return filter, nil
}

// Decoder reads JPEG files and converts them to float images of a fixed size.
//
// It holds no mutable state, and can be used concurrently.
type Decoder struct {
	Height, Width int
	Filter        imaging.ResampleFilter
}

// NewDecoder returns a Decoder that resizes to size x size with bilinear interpolation.
func NewDecoder(size int) *Decoder {
	return &Decoder{
		Height: size,
		Width:  size,
		Filter: Filters[DefaultFilter],
	}
}

// WithFilter sets the interpolation filter used to resize.
//
// It returns the Decoder, so calls can be cascaded.
func (d *Decoder) WithFilter(filter imaging.ResampleFilter) *Decoder {
	d.Filter = filter
	return d
}

// DecodeFile reads the JPEG file at filePath and returns it as a float image of the configured size.
func (d *Decoder) DecodeFile(filePath string) (*Image, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image %q", filePath)
	}
	img, err := d.Decode(contents)
	if err != nil {
		return nil, errors.WithMessagef(err, "image %q", filePath)
	}
	return img, nil
}

// Decode the JPEG contents and return it as a float image of the configured size.
//
// Only the JPEG decoder is used, the format is not sniffed. Grayscale and CMYK JPEGs
// are converted to 3 channels.
func (d *Decoder) Decode(contents []byte) (*Image, error) {
	if d.Height <= 0 || d.Width <= 0 {
		return nil, errors.Errorf("invalid decoder target size %dx%d", d.Height, d.Width)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(contents))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode JPEG")
	}
	size := decoded.Bounds().Size()
	if size.X == d.Width && size.Y == d.Height {
		return FromImage(decoded), nil
	}
	return FromImage(imaging.Resize(decoded, d.Width, d.Height, d.Filter)), nil
}
