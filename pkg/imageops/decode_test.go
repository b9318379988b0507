package imageops

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/signs/internal/imagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkUnitRange(t *testing.T, img *Image) {
	t.Helper()
	minV, maxV := img.MinMax()
	assert.GreaterOrEqual(t, minV, float32(0))
	assert.LessOrEqual(t, maxV, float32(1))
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "3_IMG_1.jpg")
	imagetest.WriteJPEG(t, filePath, imagetest.Gradient(64, 48, 1))

	for name, filter := range Filters {
		t.Run(name, func(t *testing.T) {
			img, err := NewDecoder(DefaultImageSize).WithFilter(filter).DecodeFile(filePath)
			require.NoError(t, err)
			require.NoError(t, img.Validate())
			assert.Equal(t, []int{224, 224, 3}, img.Shape())
			checkUnitRange(t, img)
			// Gradient: red grows from left to right.
			assert.Less(t, img.At(0, 100, 0), img.At(223, 100, 0))
		})
	}
}

func TestDecodeGrayscale(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	for ii := range gray.Pix {
		gray.Pix[ii] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gray, nil))
	img, err := NewDecoder(16).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []int{16, 16, 3}, img.Shape())
	assert.InDelta(t, 200.0/255.0, img.At(8, 8, 0), 0.02)
	assert.InDelta(t, img.At(8, 8, 0), img.At(8, 8, 2), 1e-6)
}

func TestDecodeSameSizeSkipsResize(t *testing.T) {
	var buf bytes.Buffer
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			src.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 100}))
	img, err := NewDecoder(8).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []int{8, 8, 3}, img.Shape())
	assert.InDelta(t, 1.0, img.At(4, 4, 0), 0.02)
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewDecoder(DefaultImageSize).DecodeFile(filepath.Join(dir, "missing.jpg"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// A PNG is not accepted: only the JPEG decoder is used.
	corrupt := filepath.Join(dir, "0_IMG_2.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("\x89PNG\r\n\x1a\nnot really"), 0o644))
	_, err = NewDecoder(DefaultImageSize).DecodeFile(corrupt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), corrupt)

	_, err = (&Decoder{}).Decode(nil)
	require.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	filter, err := ParseFilter("Bilinear")
	require.NoError(t, err)
	assert.Equal(t, Filters["bilinear"].Support, filter.Support)
	_, err = ParseFilter("sinc")
	require.Error(t, err)
}
