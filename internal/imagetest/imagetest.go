// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package imagetest creates JPEG fixtures for tests.
package imagetest

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
)

// Gradient returns a colorful image of the given size: red grows along x, green along y and blue is
// set by variant, so different variants yield different images.
func Gradient(width, height, variant int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(255 * x / max(width-1, 1)),
				G: uint8(255 * y / max(height-1, 1)),
				B: uint8((variant * 37) % 256),
				A: 255,
			})
		}
	}
	return img
}

// WriteJPEG encodes img as a JPEG file in filePath.
func WriteJPEG(tb testing.TB, filePath string, img image.Image) {
	tb.Helper()
	f := must.M1(os.Create(filePath))
	defer func() { must.M(f.Close()) }()
	must.M(jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
}

// WriteSigns writes one gradient JPEG per label in dir, named "{label}_IMG_{index}.jpg",
// and returns their paths in the same order as labels.
func WriteSigns(tb testing.TB, dir string, width, height int, labels ...int) []string {
	tb.Helper()
	paths := make([]string, 0, len(labels))
	for ii, label := range labels {
		filePath := filepath.Join(dir, fmt.Sprintf("%d_IMG_%d.jpg", label, 1000+ii))
		WriteJPEG(tb, filePath, Gradient(width, height, ii))
		paths = append(paths, filePath)
	}
	return paths
}
