package asset

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	_ "image/gif"  // GIF デコーダを登録
	_ "image/jpeg" // JPEG デコーダを登録
	_ "image/png"  // PNG デコーダを登録

	_ "golang.org/x/image/bmp" // 非圧縮BMP デコーダを登録
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF デコーダを登録
	_ "golang.org/x/image/webp" // WebP デコーダを登録

	"github.com/zurustar/espg/pkg/compiler/config"
	"github.com/zurustar/espg/pkg/compiler/diag"
)

// MaxDimension is the largest width or height the u16 size fields can hold.
const MaxDimension = 0xFFFF

// Palette sizes in entries.
const (
	Indexed8Colors = 256
	Indexed4Colors = 16
)

// RGB565 packs an 8-bit-per-channel color into 16 bits.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b>>3)
}

// decodeImage decodes any registered image format. RLE-compressed BMPs,
// which x/image/bmp rejects, go through the in-package decoder.
func decodeImage(data []byte) (image.Image, string, error) {
	if isRLEBMP(data) {
		img, err := decodeRLEBMP(data)
		return img, "bmp", err
	}
	return image.Decode(bytes.NewReader(data))
}

// targetSize resolves the requested output size. A zero dimension follows the
// source aspect ratio; both zero keeps the source size.
func targetSize(src image.Rectangle, width, height int) (int, int) {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return sw, sh
	}
	switch {
	case width == 0 && height == 0:
		return sw, sh
	case width == 0:
		width = (sw*height + sh/2) / sh
	case height == 0:
		height = (sh*width + sw/2) / sw
	}
	return max(width, 1), max(height, 1)
}

// toRGB copies img into an opaque RGBA image anchored at the origin,
// optionally resampling it with Catmull-Rom. Alpha is dropped, not composited.
func toRGB(img image.Image, width, height int) *image.RGBA {
	w, h := targetSize(img.Bounds(), width, height)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == img.Bounds().Dx() && h == img.Bounds().Dy() {
		b := img.Bounds()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
			}
		}
		return dst
	}

	scaled := image.NewNRGBA(dst.Bounds())
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
	for i := 0; i < len(scaled.Pix); i += 4 {
		copy(dst.Pix[i:i+3], scaled.Pix[i:i+3])
		dst.Pix[i+3] = 0xFF
	}
	return dst
}

// sizeHeader returns the little-endian width/height prefix.
func sizeHeader(w, h int) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint16(out[0:2], uint16(w))
	binary.LittleEndian.PutUint16(out[2:4], uint16(h))
	return out
}

// encodeRGB565 serializes width, height and one little-endian u16 per pixel.
func encodeRGB565(img *image.RGBA) []byte {
	b := img.Bounds()
	out := make([]byte, 4, 4+b.Dx()*b.Dy()*2)
	copy(out, sizeHeader(b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			out = binary.LittleEndian.AppendUint16(out, RGB565(img.Pix[i], img.Pix[i+1], img.Pix[i+2]))
		}
	}
	return out
}

// encodeIndexed serializes width, height, one palette index byte per pixel and
// the palette as exactly colors RGB triples.
func encodeIndexed(img *image.RGBA, colors int, dither bool) []byte {
	p := quantize(img, colors, dither)
	b := p.Bounds()
	out := make([]byte, 0, 4+b.Dx()*b.Dy()+colors*3)
	out = append(out, sizeHeader(b.Dx(), b.Dy())...)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := p.PixOffset(b.Min.X, y)
		out = append(out, p.Pix[row:row+b.Dx()]...)
	}
	return append(out, paletteBytes(p.Palette, colors)...)
}

// Encode converts the encoded image file data to the raw asset bytes of the
// declared pixel format, before compression.
//
// Parameters:
//   - data: The image file contents
//   - decl: The asset declaration (format, optional resample, dither)
//
// Returns:
//   - []byte: The raw asset payload
//   - image.Point: The encoded width and height
//   - error: AssetDecodeError, or UnsupportedPixelFormat for an unknown format
//     or a size that does not fit the u16 fields
func Encode(data []byte, decl config.AssetDeclaration) ([]byte, image.Point, error) {
	if decl.Format == config.FormatPNG {
		// passthrough; decode the header only to validate and report the size
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, image.Point{}, diag.Wrap(diag.AssetDecodeError, err, "decoding image")
		}
		return data, image.Pt(cfg.Width, cfg.Height), nil
	}

	img, _, err := decodeImage(data)
	if err != nil {
		return nil, image.Point{}, diag.Wrap(diag.AssetDecodeError, err, "decoding image")
	}

	w, h := targetSize(img.Bounds(), decl.Width, decl.Height)
	if w > MaxDimension || h > MaxDimension {
		return nil, image.Point{}, diag.New(diag.UnsupportedPixelFormat,
			"image size %dx%d exceeds %d", w, h, MaxDimension)
	}
	rgb := toRGB(img, decl.Width, decl.Height)
	size := image.Pt(w, h)

	switch decl.Format {
	case config.FormatRGB565:
		return encodeRGB565(rgb), size, nil
	case config.FormatIndexed8:
		return encodeIndexed(rgb, Indexed8Colors, decl.Dither), size, nil
	case config.FormatIndexed4:
		return encodeIndexed(rgb, Indexed4Colors, decl.Dither), size, nil
	default:
		return nil, image.Point{}, diag.New(diag.UnsupportedPixelFormat, "unsupported pixel format %s", decl.Format)
	}
}
