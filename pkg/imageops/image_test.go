package imageops

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromImageNRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	copy(src.Pix, []uint8{
		0, 51, 255, 255,
		255, 0, 0, 255,
		10, 20, 30, 255,
		1, 2, 3, 255,
		30, 30, 30, 255,
		50, 100, 150, 255})
	img := FromImage(src)
	require.NoError(t, img.Validate())
	assert.Equal(t, []int{2, 3, 3}, img.Shape())
	assert.InDelta(t, 0.0, img.At(0, 0, 0), 1e-6)
	assert.InDelta(t, 0.2, img.At(0, 0, 1), 1e-6)
	assert.InDelta(t, 1.0, img.At(0, 0, 2), 1e-6)
	assert.InDelta(t, 1.0, img.At(1, 0, 0), 1e-6)
	assert.InDelta(t, 150.0/255.0, img.At(2, 1, 2), 1e-6)

	// Round trip back to NRGBA.
	back := img.ToNRGBA()
	require.Equal(t, src.Bounds(), back.Bounds())
	assert.Equal(t, src.Pix, back.Pix)
}

func TestFromImageGeneric(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	src.SetGray(1, 2, color.Gray{Y: 255})
	img := FromImage(src)
	require.NoError(t, img.Validate())
	assert.Equal(t, []int{4, 4, 3}, img.Shape())
	for c := range Channels {
		assert.InDelta(t, 1.0, img.At(1, 2, c), 1e-6)
		assert.InDelta(t, 0.0, img.At(2, 1, c), 1e-6)
	}
}

func TestToNRGBAClips(t *testing.T) {
	img := New(1, 2)
	copy(img.Pix, []float32{-0.5, 0.5, 1.5, 1, 0, 2})
	out := img.ToNRGBA()
	assert.Equal(t, []uint8{0, 128, 255, 255, 255, 0, 255, 255}, out.Pix)
}

func TestValidateAndClone(t *testing.T) {
	var nilImg *Image
	require.Error(t, nilImg.Validate())
	require.Error(t, (&Image{Height: 0, Width: 3}).Validate())
	require.Error(t, (&Image{Height: 2, Width: 2, Pix: make([]float32, 5)}).Validate())

	img := New(2, 2)
	img.Set(1, 1, 2, 0.75)
	clone := img.Clone()
	clone.Set(1, 1, 2, 0.25)
	assert.Equal(t, float32(0.75), img.At(1, 1, 2))
	minV, maxV := img.MinMax()
	assert.Equal(t, float32(0), minV)
	assert.Equal(t, float32(0.75), maxV)
}
