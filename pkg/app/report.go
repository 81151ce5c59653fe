package app

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/zurustar/espg/pkg/bytecode"
	"github.com/zurustar/espg/pkg/compiler"
	"github.com/zurustar/espg/pkg/compiler/config"
	"github.com/zurustar/espg/pkg/container"
)

// newTable は罫線なしで数値列を右寄せにした表を作る
func newTable(w io.Writer, header []string, rightAligned ...int) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)

	align := make([]int, len(header))
	for i := range align {
		align[i] = tablewriter.ALIGN_LEFT
	}
	for _, i := range rightAligned {
		align[i] = tablewriter.ALIGN_RIGHT
	}
	table.SetColumnAlignment(align)
	return table
}

// printSummary ビルド結果のアセット一覧とパッケージの大きさを表示する
func printSummary(w io.Writer, res *compiler.Result) {
	table := newTable(w, []string{"#", "Name", "Kind", "Format", "Size", "Offset", "Compressed", "Raw", "Ratio"}, 0, 5, 6, 7, 8)
	for i, e := range res.Assets {
		table.Append([]string{
			strconv.Itoa(i),
			e.Name,
			e.Kind.String(),
			e.Format.String(),
			fmt.Sprintf("%dx%d", e.Width, e.Height),
			strconv.FormatUint(uint64(e.Offset), 10),
			strconv.FormatUint(uint64(e.CompressedSize), 10),
			strconv.FormatUint(uint64(e.RawSize), 10),
			ratio(e.CompressedSize, e.RawSize),
		})
	}
	table.Render()

	fmt.Fprintf(w, "%s: %d bytes, %d assets, %d events, logic %d bytes (%d raw)\n",
		res.Output, res.Size, len(res.Assets), len(res.Events), len(res.Logic), res.RawLogicSize)
}

// printHeader パッケージヘッダを項目と値の表で表示する
func printHeader(w io.Writer, path string, f *container.File) {
	h := f.Header
	table := newTable(w, []string{"Field", "Value"})
	table.AppendBulk([][]string{
		{"File", path},
		{"Magic", string(h.Magic[:])},
		{"Version", strconv.Itoa(int(h.Version))},
		{"Assets", fmt.Sprintf("%d @ %d", h.AssetCount, h.AssetTableOffset)},
		{"Events", fmt.Sprintf("%d @ %d", h.EventCount, h.EventTableOffset)},
		{"Logic", fmt.Sprintf("%d bytes @ %d", len(f.Logic), h.LogicOffset)},
		{"Size", fmt.Sprintf("%d bytes", f.Size())},
	})
	table.Render()
}

// assetRow は inspect のアセット表の1行。Size は展開できた場合だけ埋まる
type assetRow struct {
	entry  container.AssetEntry
	width  int
	height int
	err    error
}

func printAssets(w io.Writer, rows []assetRow) {
	table := newTable(w, []string{"#", "Kind", "Format", "Size", "Offset", "Compressed", "Raw", "Ratio"}, 0, 4, 5, 6, 7)
	for i, r := range rows {
		size := fmt.Sprintf("%dx%d", r.width, r.height)
		if r.err != nil {
			size = "error: " + r.err.Error()
		}
		a := r.entry
		table.Append([]string{
			strconv.Itoa(i),
			config.AssetKind(a.Kind).String(),
			config.PixelFormat(a.Format).String(),
			size,
			strconv.FormatUint(uint64(a.Offset), 10),
			strconv.FormatUint(uint64(a.CompressedSize), 10),
			strconv.FormatUint(uint64(a.RawSize), 10),
			ratio(a.CompressedSize, a.RawSize),
		})
	}
	table.Render()
}

func printEvents(w io.Writer, events []container.EventEntry) {
	table := newTable(w, []string{"#", "Kind", "X", "Y", "Radius", "Handler"}, 0, 2, 3, 4, 5)
	for i, e := range events {
		table.Append([]string{
			strconv.Itoa(i),
			bytecode.EventKind(e.Kind).String(),
			strconv.Itoa(int(e.X)),
			strconv.Itoa(int(e.Y)),
			strconv.Itoa(int(e.Radius)),
			fmt.Sprintf("%04d", e.Handler),
		})
	}
	table.Render()
}

// ratio は圧縮後の大きさを展開後に対する百分率で返す
func ratio(compressed, raw uint32) string {
	if raw == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(compressed)*100/float64(raw))
}
