// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package signs

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/signs/internal/imagetest"
	"github.com/gomlx/signs/pkg/pipeline"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputFnTwoFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "0_IMG_1.jpg"), filepath.Join(dir, "5_IMG_2.jpg")}
	imagetest.WriteJPEG(t, paths[0], imagetest.Gradient(64, 64, 0))
	imagetest.WriteJPEG(t, paths[1], imagetest.Gradient(80, 60, 1))

	params := DefaultParams()
	params.BatchSize = 2
	params.NumEpochs = 1
	params.Seed = 1
	p, err := InputFn(paths, params)
	require.NoError(t, err)
	defer p.Done()

	batch, err := p.Next()
	require.NoError(t, err)
	images, labels := batch[pipeline.ImagesKey], batch[pipeline.LabelsKey]
	assert.Equal(t, []int{2, 224, 224, 3}, images.Shape().Dimensions)
	assert.Equal(t, []int{2}, labels.Shape().Dimensions)
	gotLabels := tensors.MustCopyFlatData[int32](labels)
	slices.Sort(gotLabels)
	assert.Equal(t, []int32{0, 5}, gotLabels)
	for _, v := range tensors.MustCopyFlatData[float32](images) {
		require.True(t, v >= 0 && v <= 1, "augmented values must be in [0, 1], got %g", v)
	}

	for range 2 {
		_, err = p.Next()
		assert.Equal(t, pipeline.ErrEndOfStream, err)
	}
}

func TestInputFnEpochs(t *testing.T) {
	dir := t.TempDir()
	paths := imagetest.WriteSigns(t, dir, 32, 32, 0, 1, 2, 3, 4, 5, 0)
	params := DefaultParams()
	params.ImageSize = 16
	params.BatchSize = 3
	params.NumEpochs = 2
	params.NumParallelCalls = 3
	p, err := InputFn(paths, params)
	require.NoError(t, err)
	defer p.Done()

	var sizes []int
	var epochLabels []int32
	for {
		batch, err := p.Next()
		if err == pipeline.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		labels := tensors.MustCopyFlatData[int32](batch[pipeline.LabelsKey])
		sizes = append(sizes, len(labels))
		epochLabels = append(epochLabels, labels...)
		assert.Equal(t, []int{len(labels), 16, 16, 3}, batch[pipeline.ImagesKey].Shape().Dimensions)
	}
	assert.Equal(t, []int{3, 3, 1, 3, 3, 1}, sizes)
	for epoch := range 2 {
		labels := slices.Clone(epochLabels[epoch*7 : (epoch+1)*7])
		slices.Sort(labels)
		assert.Equal(t, []int32{0, 0, 1, 2, 3, 4, 5}, labels)
	}
}

func TestInputFnEvalIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	paths := imagetest.WriteSigns(t, dir, 24, 24, 3, 1, 4, 1, 5)
	params := DefaultParams().EvalParams()
	params.ImageSize = 8
	params.BatchSize = 2

	run := func() (labels []int32, images []float32) {
		p, err := InputFn(paths, params)
		require.NoError(t, err)
		defer p.Done()
		for {
			batch, err := p.Next()
			if err == pipeline.ErrEndOfStream {
				return
			}
			require.NoError(t, err)
			labels = append(labels, tensors.MustCopyFlatData[int32](batch[pipeline.LabelsKey])...)
			images = append(images, tensors.MustCopyFlatData[float32](batch[pipeline.ImagesKey])...)
		}
	}
	labels1, images1 := run()
	labels2, images2 := run()
	assert.Equal(t, []int32{3, 1, 4, 1, 5}, labels1, "evaluation keeps the file order")
	assert.Equal(t, labels1, labels2)
	assert.Equal(t, images1, images2)
}

func TestInputFnErrors(t *testing.T) {
	dir := t.TempDir()
	paths := imagetest.WriteSigns(t, dir, 16, 16, 1, 2)

	// Invalid label.
	_, err := InputFn(append(slices.Clone(paths), filepath.Join(dir, "8_IMG_1.jpg")), DefaultParams())
	assert.ErrorIs(t, err, ErrInvalidLabel)

	// Invalid params.
	params := DefaultParams()
	params.BatchSize = 0
	_, err = InputFn(paths, params)
	assert.Error(t, err)

	// Corrupt file: the error surfaces from Next, with the file path.
	corrupt := filepath.Join(dir, "3_IMG_9.jpg")
	must.M(os.WriteFile(corrupt, []byte("not a jpeg"), 0o644))
	params = DefaultParams().EvalParams()
	params.ImageSize = 8
	params.BatchSize = 1
	p, err := InputFn([]string{paths[0], corrupt, paths[1]}, params)
	require.NoError(t, err)
	defer p.Done()
	var lastErr error
	for range 3 {
		if _, lastErr = p.Next(); lastErr != nil {
			break
		}
	}
	require.Error(t, lastErr)
	assert.NotEqual(t, pipeline.ErrEndOfStream, lastErr)
	assert.Contains(t, lastErr.Error(), "3_IMG_9.jpg")
}
