package asset

import (
	"cmp"
	"image"
	"image/color"
	"slices"

	goquantize "github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/draw"
)

// buildPalette returns a palette of at most maxColors colors for img.
// An image with no more distinct colors than maxColors gets them exactly;
// otherwise the palette comes from a median cut with mean aggregation.
// The result is sorted by RGB so equal inputs give equal palettes.
func buildPalette(img *image.RGBA, maxColors int) color.Palette {
	seen := map[color.RGBA]struct{}{}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y && len(seen) <= maxColors; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			seen[color.RGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: 0xFF}] = struct{}{}
		}
	}

	var palette color.Palette
	if len(seen) <= maxColors {
		palette = make(color.Palette, 0, len(seen))
		for c := range seen {
			palette = append(palette, c)
		}
	} else {
		q := goquantize.MedianCutQuantizer{Aggregation: goquantize.Mean}
		palette = q.Quantize(make(color.Palette, 0, maxColors), img)
	}

	slices.SortFunc(palette, func(a, c color.Color) int {
		return cmp.Compare(rgbKey(a), rgbKey(c))
	})
	return palette
}

func rgbKey(c color.Color) uint32 {
	r, g, b, _ := c.RGBA()
	return (r>>8)<<16 | (g>>8)<<8 | b>>8
}

// quantize maps img onto a palette of at most maxColors colors.
// With dither set the mapping uses Floyd-Steinberg error diffusion, otherwise
// every pixel takes its nearest palette color.
func quantize(img *image.RGBA, maxColors int, dither bool) *image.Paletted {
	palette := buildPalette(img, maxColors)
	if len(palette) == 0 {
		palette = color.Palette{color.RGBA{A: 0xFF}}
	}
	dst := image.NewPaletted(img.Bounds(), palette)
	if dither {
		draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, img.Bounds().Min)
	} else {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	return dst
}

// paletteBytes serializes palette as RGB triples padded with zeros, or
// truncated, to exactly size entries.
func paletteBytes(palette color.Palette, size int) []byte {
	out := make([]byte, size*3)
	for i, c := range palette {
		if i >= size {
			break
		}
		r, g, b, _ := c.RGBA()
		out[i*3] = uint8(r >> 8)
		out[i*3+1] = uint8(g >> 8)
		out[i*3+2] = uint8(b >> 8)
	}
	return out
}
