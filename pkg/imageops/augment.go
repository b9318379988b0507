// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageops

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// FlipHorizontal mirrors the image left-right, in place.
func FlipHorizontal(img *Image) {
	for y := range img.Height {
		left, right := img.offset(0, y), img.offset(img.Width-1, y)
		for left < right {
			for c := range Channels {
				img.Pix[left+c], img.Pix[right+c] = img.Pix[right+c], img.Pix[left+c]
			}
			left += Channels
			right -= Channels
		}
	}
}

// AdjustBrightness adds delta to every value of the image, in place. Values are not clipped.
func AdjustBrightness(img *Image, delta float32) {
	for ii := range img.Pix {
		img.Pix[ii] += delta
	}
}

// AdjustSaturation multiplies the saturation of every pixel by factor, in place.
//
// Pixels are converted to HSV, the saturation is scaled and clipped to [0, 1], and converted back to RGB.
func AdjustSaturation(img *Image, factor float32) {
	for pos := 0; pos < len(img.Pix); pos += Channels {
		h, s, v := rgbToHSV(img.Pix[pos], img.Pix[pos+1], img.Pix[pos+2])
		s = min(max(s*factor, 0), 1)
		img.Pix[pos], img.Pix[pos+1], img.Pix[pos+2] = hsvToRGB(h, s, v)
	}
}

// Clip every value of the image to the [lower, upper] range, in place.
func Clip(img *Image, lower, upper float32) {
	for ii, v := range img.Pix {
		img.Pix[ii] = min(max(v, lower), upper)
	}
}

// Augmenter applies the random training augmentations to images.
//
// The zero value applies no augmentation (other than clipping to [0, 1]).
type Augmenter struct {
	// FlipProb is the probability of flipping the image horizontally.
	FlipProb float64

	// MaxBrightnessDelta bounds the random additive brightness change: the delta
	// is sampled uniformly from [-MaxBrightnessDelta, MaxBrightnessDelta].
	MaxBrightnessDelta float64

	// SaturationLower and SaturationUpper bound the random saturation factor, sampled uniformly
	// from [SaturationLower, SaturationUpper]. If both are 0 saturation is not changed.
	SaturationLower, SaturationUpper float64
}

// DefaultAugmenter returns the augmentation used for training: flip with probability 1/2,
// brightness delta up to 32/255, and saturation factor in [0.5, 1.5].
func DefaultAugmenter() Augmenter {
	return Augmenter{
		FlipProb:           0.5,
		MaxBrightnessDelta: 32.0 / 255.0,
		SaturationLower:    0.5,
		SaturationUpper:    1.5,
	}
}

// Validate the Augmenter configuration.
func (a Augmenter) Validate() error {
	if a.FlipProb < 0 || a.FlipProb > 1 {
		return errors.Errorf("flip probability must be in [0, 1], got %g", a.FlipProb)
	}
	if a.MaxBrightnessDelta < 0 {
		return errors.Errorf("max brightness delta must be >= 0, got %g", a.MaxBrightnessDelta)
	}
	if a.SaturationLower < 0 || a.SaturationUpper < a.SaturationLower {
		return errors.Errorf("saturation range must satisfy 0 <= lower <= upper, got [%g, %g]",
			a.SaturationLower, a.SaturationUpper)
	}
	return nil
}

// Apply the augmentations to img in place, in order: random horizontal flip, random brightness,
// random saturation and finally clipping back to [0, 1].
//
// rng must not be shared with other goroutines. The same number of random values is drawn
// on every call, so a given rng state always produces the same augmentation.
func (a Augmenter) Apply(img *Image, rng *rand.Rand) {
	flip := rng.Float64() < a.FlipProb
	delta := (2*rng.Float64() - 1) * a.MaxBrightnessDelta
	factor := a.SaturationLower + rng.Float64()*(a.SaturationUpper-a.SaturationLower)

	if flip {
		FlipHorizontal(img)
	}
	if delta != 0 {
		AdjustBrightness(img, float32(delta))
	}
	if a.SaturationLower != 0 || a.SaturationUpper != 0 {
		AdjustSaturation(img, float32(factor))
	}
	Clip(img, 0, 1)
}
