// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gomlx/compute/dtypes/float16"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/signs/pkg/imageops"
	"github.com/gomlx/signs/pkg/pipeline"
	"github.com/pkg/errors"
)

// previewFileName is the name of the contact sheet written in the preview directory.
const previewFileName = "first_batch.png"

// batchImages converts the images tensor of a batch, float32 or float16, back to individual images.
func batchImages(batch map[string]*tensors.Tensor, float16Images bool) ([]*imageops.Image, error) {
	imagesT, found := batch[pipeline.ImagesKey]
	if !found {
		return nil, errors.Errorf("batch has no %q tensor", pipeline.ImagesKey)
	}
	dims := imagesT.Shape().Dimensions
	if len(dims) != 4 || dims[3] != imageops.Channels {
		return nil, errors.Errorf("images tensor has dimensions %v, expected [batch, height, width, %d]",
			dims, imageops.Channels)
	}
	var flat []float32
	if float16Images {
		half := tensors.MustCopyFlatData[float16.Float16](imagesT)
		flat = make([]float32, len(half))
		for ii, v := range half {
			flat[ii] = v.Float32()
		}
	} else {
		flat = tensors.MustCopyFlatData[float32](imagesT)
	}
	batchSize, height, width := dims[0], dims[1], dims[2]
	imageSize := height * width * imageops.Channels
	images := make([]*imageops.Image, batchSize)
	for ii := range images {
		img := imageops.New(height, width)
		copy(img.Pix, flat[ii*imageSize:(ii+1)*imageSize])
		images[ii] = img
	}
	return images, nil
}

// contactSheet tiles the images in a grid as square as possible, with a 2 pixels border.
func contactSheet(images []*imageops.Image) *image.NRGBA {
	if len(images) == 0 {
		return imaging.New(1, 1, color.Black)
	}
	const border = 2
	cols := int(math.Ceil(math.Sqrt(float64(len(images)))))
	rows := (len(images) + cols - 1) / cols
	cellW, cellH := images[0].Width+border, images[0].Height+border
	sheet := imaging.New(cols*cellW+border, rows*cellH+border, color.Black)
	for ii, img := range images {
		row, col := ii/cols, ii%cols
		sheet = imaging.Paste(sheet, img.ToNRGBA(), image.Pt(border+col*cellW, border+row*cellH))
	}
	return sheet
}

// writePreview saves the contact sheet of the batch images in dir/runID, and returns the file path.
// Labels are written to a text file next to it, in the same order as the images.
func writePreview(dir, runID string, images []*imageops.Image, labels []int32) (string, error) {
	outDir := filepath.Join(dir, runID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create preview directory %q", outDir)
	}
	filePath := filepath.Join(outDir, previewFileName)
	if err := imaging.Save(contactSheet(images), filePath); err != nil {
		return "", errors.Wrapf(err, "failed to save preview %q", filePath)
	}
	labelsPath := filepath.Join(outDir, "labels.txt")
	f, err := os.Create(labelsPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %q", labelsPath)
	}
	for _, label := range labels {
		_, _ = fmt.Fprintln(f, label)
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to write %q", labelsPath)
	}
	return filePath, nil
}
