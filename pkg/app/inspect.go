package app

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/png"

	"github.com/zurustar/espg/pkg/bytecode"
	"github.com/zurustar/espg/pkg/compiler/config"
	"github.com/zurustar/espg/pkg/container"
	"github.com/zurustar/espg/pkg/heatshrink"
)

// inspect パッケージを読み込み、ヘッダ・アセット表・イベント表を表示する
// disasm が true ならゲームロジックも逆アセンブルする
func (app *Application) inspect(path string, disasm bool) error {
	f, err := container.Read(path)
	if err != nil {
		return err
	}

	printHeader(app.stdout, path, f)

	if len(f.Assets) > 0 {
		fmt.Fprintln(app.stdout)
		rows := make([]assetRow, len(f.Assets))
		for i, a := range f.Assets {
			rows[i] = assetRow{entry: a}
			rows[i].width, rows[i].height, rows[i].err = assetSize(f, i)
			if rows[i].err != nil {
				app.log.Warn("Asset does not decode", "index", i, "error", rows[i].err)
			}
		}
		printAssets(app.stdout, rows)
	}

	if len(f.Events) > 0 {
		fmt.Fprintln(app.stdout)
		printEvents(app.stdout, f.Events)
	}

	code, compressed, err := logicCode(f.Logic)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "\nlogic: %d bytes, compressed=%t\n", len(code), compressed)

	if !disasm {
		return nil
	}
	fmt.Fprintln(app.stdout)
	return bytecode.NewDisassembler(app.stdout).Disassemble(code)
}

// assetSize はアセットを展開して幅と高さを取り出す
// PNGはそのまま格納されているので画像ヘッダから読む
func assetSize(f *container.File, i int) (int, int, error) {
	payload, err := f.Payload(i)
	if err != nil {
		return 0, 0, err
	}
	raw, err := heatshrink.Decode(payload, heatshrink.AssetParams)
	if err != nil {
		return 0, 0, err
	}
	if len(raw) != int(f.Assets[i].RawSize) {
		return 0, 0, fmt.Errorf("decompressed to %d bytes, table says %d", len(raw), f.Assets[i].RawSize)
	}

	if config.PixelFormat(f.Assets[i].Format) == config.FormatPNG {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
		if err != nil {
			return 0, 0, err
		}
		return cfg.Width, cfg.Height, nil
	}

	if len(raw) < 4 {
		return 0, 0, errors.New("payload shorter than the size header")
	}
	return int(binary.LittleEndian.Uint16(raw[0:2])), int(binary.LittleEndian.Uint16(raw[2:4])), nil
}

// logicCode はロジック領域からバイトコードを取り出す
// 圧縮の有無はファイルに記録されないので、そのままで妥当ならそれを使い、
// そうでなければ展開して確かめる
func logicCode(logic []byte) ([]byte, bool, error) {
	if bytecode.Validate(logic) == nil {
		return logic, false, nil
	}
	code, err := heatshrink.Decode(logic, heatshrink.LogicParams)
	if err == nil && bytecode.Validate(code) == nil {
		return code, true, nil
	}
	return nil, false, errors.New("logic region is neither bytecode nor compressed bytecode")
}
