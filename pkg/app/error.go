package app

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// PrintError エラーを "Error: <message>" の形で書き出す
// 出力先が端末のときだけ赤で表示する
func PrintError(w io.Writer, err error) {
	c := color.New(color.FgRed)
	if !isTerminal(w) {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	c.Fprintf(w, "Error: %v\n", err)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
