package app

import (
	"bytes"
	"errors"
	"testing"
)

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, errors.New("asset \"ghost.png\" not found"))

	// バッファは端末ではないのでエスケープシーケンスを含まない
	want := "Error: asset \"ghost.png\" not found\n"
	if buf.String() != want {
		t.Errorf("PrintError wrote %q, want %q", buf.String(), want)
	}
}
