package asset

import (
	"encoding/binary"
	"image/color"
	"testing"

	"github.com/zurustar/espg/pkg/compiler/config"
)

// buildRLEBMP はテスト用のRLE圧縮BMPを組み立てる
func buildRLEBMP(width, height int32, bitCount uint16, compression uint32, palette []color.RGBA, data []byte) []byte {
	le := binary.LittleEndian
	dataOffset := uint32(14 + 40 + len(palette)*4)

	out := make([]byte, dataOffset)
	out[0], out[1] = 'B', 'M'
	le.PutUint32(out[2:], dataOffset+uint32(len(data)))
	le.PutUint32(out[10:], dataOffset)

	info := out[14:]
	le.PutUint32(info[0:], 40)
	le.PutUint32(info[4:], uint32(width))
	le.PutUint32(info[8:], uint32(height))
	le.PutUint16(info[12:], 1)
	le.PutUint16(info[14:], bitCount)
	le.PutUint32(info[16:], compression)
	le.PutUint32(info[20:], uint32(len(data)))
	le.PutUint32(info[32:], uint32(len(palette)))

	for i, c := range palette {
		e := out[54+i*4:]
		e[0], e[1], e[2] = c.B, c.G, c.R
	}
	return append(out, data...)
}

var testPalette = []color.RGBA{
	{R: 0x00, G: 0x00, B: 0x00, A: 0xFF},
	{R: 0xFF, G: 0x00, B: 0x00, A: 0xFF},
	{R: 0x00, G: 0xFF, B: 0x00, A: 0xFF},
}

// TestDecodeRLE8 はRLE8のエンコードモード、絶対モード、行末、終了を確認する
func TestDecodeRLE8(t *testing.T) {
	data := buildRLEBMP(3, 2, 8, biRLE8, testPalette, []byte{
		// 下の行: 1 1 1
		0x03, 0x01,
		// 行末
		0x00, 0x00,
		// 上の行 (絶対モード): 2 0 1 + パディング
		0x00, 0x03, 0x02, 0x00, 0x01, 0x00,
		// 終了
		0x00, 0x01,
	})

	if !isRLEBMP(data) {
		t.Fatal("isRLEBMP() = false, want true")
	}
	img, err := decodeRLEBMP(data)
	if err != nil {
		t.Fatalf("decodeRLEBMP() error = %v", err)
	}

	want := [][]uint8{
		{2, 0, 1},
		{1, 1, 1},
	}
	for y, row := range want {
		for x, idx := range row {
			if got := img.ColorIndexAt(x, y); got != idx {
				t.Errorf("index at (%d,%d) = %d, want %d", x, y, got, idx)
			}
		}
	}
}

// TestDecodeRLE4 はRLE4のニブル交互展開とデルタを確認する
func TestDecodeRLE4(t *testing.T) {
	data := buildRLEBMP(4, 2, 4, biRLE4, testPalette, []byte{
		// 下の行: 1 2 1 2
		0x04, 0x12,
		// デルタ: (4,0) -> (5,1)
		0x00, 0x02, 0x01, 0x01,
		// 行末
		0x00, 0x00,
		// 上の行 (絶対モード): 2 1 0
		0x00, 0x03, 0x21, 0x00,
		0x00, 0x01,
	})

	img, err := decodeRLEBMP(data)
	if err != nil {
		t.Fatalf("decodeRLEBMP() error = %v", err)
	}
	if got := img.Bounds().Dx(); got != 4 {
		t.Fatalf("width = %d, want 4", got)
	}

	// デルタで y=1 に移動した後の行末で y=2 になり、上の行は書かれない
	bottom := []uint8{1, 2, 1, 2}
	for x, idx := range bottom {
		if got := img.ColorIndexAt(x, 1); got != idx {
			t.Errorf("bottom index at %d = %d, want %d", x, got, idx)
		}
	}
	for x := 0; x < 4; x++ {
		if got := img.ColorIndexAt(x, 0); got != 0 {
			t.Errorf("top index at %d = %d, want 0", x, got)
		}
	}
}

func TestDecodeRLETopDown(t *testing.T) {
	data := buildRLEBMP(2, -2, 8, biRLE8, testPalette, []byte{
		0x02, 0x02,
		0x00, 0x00,
		0x02, 0x01,
		0x00, 0x01,
	})
	img, err := decodeRLEBMP(data)
	if err != nil {
		t.Fatalf("decodeRLEBMP() error = %v", err)
	}
	if img.ColorIndexAt(0, 0) != 2 || img.ColorIndexAt(0, 1) != 1 {
		t.Errorf("top-down rows decoded in the wrong order")
	}
}

func TestDecodeRLEErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"depth mismatch", buildRLEBMP(2, 2, 4, biRLE8, testPalette, []byte{0x00, 0x01})},
		{"zero width", buildRLEBMP(0, 2, 8, biRLE8, testPalette, []byte{0x00, 0x01})},
		{"truncated delta", buildRLEBMP(2, 2, 8, biRLE8, testPalette, []byte{0x00, 0x02, 0x01})},
		{"truncated absolute", buildRLEBMP(4, 1, 8, biRLE8, testPalette, []byte{0x00, 0x04, 0x01})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeRLEBMP(tt.data); err == nil {
				t.Error("decodeRLEBMP() error = nil, want error")
			}
		})
	}
}

func TestIsRLEBMP(t *testing.T) {
	rle := buildRLEBMP(1, 1, 8, biRLE8, testPalette, []byte{0x00, 0x01})
	plain := buildRLEBMP(1, 1, 8, 0, testPalette, []byte{0, 0, 0, 0})

	if !isRLEBMP(rle) {
		t.Error("isRLEBMP(rle) = false")
	}
	if isRLEBMP(plain) {
		t.Error("isRLEBMP(plain) = true")
	}
	if isRLEBMP([]byte("BM")) {
		t.Error("isRLEBMP(short) = true")
	}
}

// TestEncodeRLEBMP はRLE BMPが通常の変換経路を通ることを確認する
func TestEncodeRLEBMP(t *testing.T) {
	data := buildRLEBMP(2, 1, 8, biRLE8, testPalette, []byte{0x02, 0x01, 0x00, 0x01})
	raw, size, err := Encode(data, config.AssetDeclaration{Format: config.FormatRGB565})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if size.X != 2 || size.Y != 1 {
		t.Fatalf("size = %v, want 2x1", size)
	}
	for i := 0; i < 2; i++ {
		if got := binary.LittleEndian.Uint16(raw[4+i*2:]); got != 0xF800 {
			t.Errorf("pixel %d = %#04x, want 0xF800", i, got)
		}
	}
}
