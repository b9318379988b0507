// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageops

// rgbToHSV converts a pixel to hue (in [0, 6), sextants of the color wheel), saturation and value.
//
// Inputs are not required to be in [0, 1]: brightness adjustments may have pushed them out.
func rgbToHSV(r, g, b float32) (h, s, v float32) {
	v = max(r, g, b)
	chroma := v - min(r, g, b)
	if v > 0 {
		s = chroma / v
	}
	if chroma <= 0 {
		return 0, s, v
	}
	switch v {
	case r:
		h = (g - b) / chroma
		if h < 0 {
			h += 6
		}
	case g:
		h = 2 + (b-r)/chroma
	default:
		h = 4 + (r-g)/chroma
	}
	return
}

// hsvToRGB is the inverse of rgbToHSV.
func hsvToRGB(h, s, v float32) (r, g, b float32) {
	if s <= 0 {
		return v, v, v
	}
	sector := int(h)
	frac := h - float32(sector)
	p := v * (1 - s)
	q := v * (1 - s*frac)
	t := v * (1 - s*(1-frac))
	switch sector % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
