package asset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
)

// BMP圧縮方式
// 非圧縮BMPは golang.org/x/image/bmp に任せ、ここではRLE圧縮のみを扱う
const (
	biRLE8 = 1 // 8ビットRLE圧縮
	biRLE4 = 2 // 4ビットRLE圧縮
)

const (
	bmpFileHeaderSize = 14
	bmpInfoHeaderSize = 40
)

var errRLETruncated = errors.New("truncated RLE data")

// rleHeader はRLEデコードに必要なヘッダー情報
type rleHeader struct {
	dataOffset  uint32
	width       int
	height      int
	topDown     bool
	bitCount    uint16
	compression uint32
	colorsUsed  uint32
}

// isRLEBMP はバイト列がRLE8またはRLE4で圧縮されたBMPかどうかを判定する
func isRLEBMP(data []byte) bool {
	if len(data) < bmpFileHeaderSize+bmpInfoHeaderSize || data[0] != 'B' || data[1] != 'M' {
		return false
	}
	// 圧縮方式はオフセット 30 (14 + 16)
	c := binary.LittleEndian.Uint32(data[30:34])
	return c == biRLE8 || c == biRLE4
}

func parseRLEHeader(data []byte) (*rleHeader, error) {
	if len(data) < bmpFileHeaderSize+bmpInfoHeaderSize {
		return nil, fmt.Errorf("BMP header too short: %d bytes", len(data))
	}
	le := binary.LittleEndian
	info := data[bmpFileHeaderSize:]
	h := &rleHeader{
		dataOffset:  le.Uint32(data[10:14]),
		width:       int(int32(le.Uint32(info[4:8]))),
		height:      int(int32(le.Uint32(info[8:12]))),
		bitCount:    le.Uint16(info[14:16]),
		compression: le.Uint32(info[16:20]),
		colorsUsed:  le.Uint32(info[32:36]),
	}
	// 高さが負の場合はトップダウン
	if h.height < 0 {
		h.height = -h.height
		h.topDown = true
	}
	if h.width <= 0 || h.height == 0 {
		return nil, fmt.Errorf("invalid BMP dimensions %dx%d", h.width, h.height)
	}

	switch {
	case h.compression == biRLE8 && h.bitCount == 8:
	case h.compression == biRLE4 && h.bitCount == 4:
	default:
		return nil, fmt.Errorf("compression %d requires a matching bit depth, got %d", h.compression, h.bitCount)
	}
	return h, nil
}

// decodeRLEBMP はRLE圧縮BMPをパレット画像としてデコードする
// 元のパレットインデックスをそのまま保持する
func decodeRLEBMP(data []byte) (*image.Paletted, error) {
	h, err := parseRLEHeader(data)
	if err != nil {
		return nil, err
	}

	// カラーパレット (BGRA)
	n := int(h.colorsUsed)
	if n == 0 || n > 1<<h.bitCount {
		n = 1 << h.bitCount
	}
	palStart := bmpFileHeaderSize + int(binary.LittleEndian.Uint32(data[14:18]))
	if palStart+n*4 > len(data) {
		return nil, fmt.Errorf("BMP palette truncated")
	}
	palette := make(color.Palette, n)
	for i := range palette {
		e := data[palStart+i*4:]
		palette[i] = color.RGBA{R: e[2], G: e[1], B: e[0], A: 0xFF}
	}

	if int(h.dataOffset) > len(data) {
		return nil, fmt.Errorf("BMP data offset %d beyond end of file", h.dataOffset)
	}
	img := image.NewPaletted(image.Rect(0, 0, h.width, h.height), palette)
	d := &rleDecoder{
		img:     img,
		src:     data[h.dataOffset:],
		topDown: h.topDown,
		nibbles: h.bitCount == 4,
	}
	if err := d.run(); err != nil {
		return nil, fmt.Errorf("decoding RLE%d: %w", h.bitCount, err)
	}
	return img, nil
}

// rleDecoder はRLE8/RLE4共通のデコード状態を持つ
//
// エンコーディング (2バイト単位):
//   - 先頭が0以外: エンコードモード。2バイト目を先頭バイト回繰り返す
//     (RLE4では上位4ビットと下位4ビットを交互に)
//   - 先頭が0: エスケープ。2バイト目が0なら行末、1ならビットマップ終了、
//     2ならデルタ（位置移動）、それ以外は絶対モード
type rleDecoder struct {
	img     *image.Paletted
	src     []byte
	pos     int
	x, y    int
	topDown bool
	nibbles bool
}

func (d *rleDecoder) next(n int) ([]byte, error) {
	if d.pos+n > len(d.src) {
		return nil, errRLETruncated
	}
	b := d.src[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// put は現在位置にピクセルを書き込み、xを進める
// 範囲外やパレット外のインデックスは無視する
func (d *rleDecoder) put(idx uint8) {
	b := d.img.Rect
	if d.x < b.Dx() && d.y < b.Dy() && int(idx) < len(d.img.Palette) {
		destY := d.y
		// BMPはボトムアップ形式
		if !d.topDown {
			destY = b.Dy() - 1 - d.y
		}
		d.img.SetColorIndex(d.x, destY, idx)
	}
	d.x++
}

func (d *rleDecoder) run() error {
	for d.pos < len(d.src) {
		pair, err := d.next(2)
		if err != nil {
			// 末尾の端数バイトは無視する
			return nil
		}
		count, value := int(pair[0]), pair[1]

		if count > 0 {
			for i := 0; i < count; i++ {
				d.put(d.pixel(value, i))
			}
			continue
		}

		switch value {
		case 0:
			// 行末
			d.x = 0
			d.y++
		case 1:
			// ビットマップ終了
			return nil
		case 2:
			delta, err := d.next(2)
			if err != nil {
				return err
			}
			d.x += int(delta[0])
			d.y += int(delta[1])
		default:
			// 絶対モード: value個のピクセルをそのまま読み取る
			absCount := int(value)
			absBytes := absCount
			if d.nibbles {
				absBytes = (absCount + 1) / 2
			}
			abs, err := d.next(absBytes)
			if err != nil {
				return err
			}
			for i := 0; i < absCount; i++ {
				if d.nibbles {
					d.put(d.pixel(abs[i/2], i))
				} else {
					d.put(abs[i])
				}
			}
			// 絶対モードは2バイト境界にパディングされる
			if absBytes%2 != 0 {
				if _, err := d.next(1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// pixel はi番目のピクセルのインデックスを返す
// RLE4では偶数番目が上位4ビット、奇数番目が下位4ビット
func (d *rleDecoder) pixel(b uint8, i int) uint8 {
	if !d.nibbles {
		return b
	}
	if i%2 == 0 {
		return b >> 4
	}
	return b & 0x0F
}
