package container

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurustar/espg/pkg/compiler/diag"
)

func sampleFile(t *testing.T, events []EventEntry) *File {
	t.Helper()
	blob := []byte{0xA0, 0x80, 0xB1, 0x11, 0x22}
	base := BlobOffset(2, len(events))
	assets := []AssetEntry{
		{Kind: 0, Offset: base, CompressedSize: 2, RawSize: 1, Format: 0},
		{Kind: 1, Offset: base + 2, CompressedSize: 3, RawSize: 9, Format: 2},
	}
	f, err := New(assets, events, blob, []byte{0x10, 0x01, 0x00, 0x00, 0x00, 0xFF})
	require.NoError(t, err)
	return f
}

func TestEntrySizes(t *testing.T) {
	assert.Equal(t, HeaderSize, binary.Size(Header{}))
	assert.Equal(t, AssetEntrySize, binary.Size(AssetEntry{}))
	assert.Equal(t, EventEntrySize, binary.Size(EventEntry{}))
}

func TestLayout(t *testing.T) {
	tests := []struct {
		name                   string
		assets, events, blob   int
		eventTable, logic, end uint32
	}{
		{"empty", 0, 0, 0, 21, 21, 21},
		{"assets only", 2, 0, 10, 53, 63, 63},
		{"with events", 2, 1, 10, 53, 75, 75},
		{"events only", 0, 3, 0, 21, 57, 57},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Layout(tt.assets, tt.events, tt.blob)
			require.NoError(t, err)
			assert.Equal(t, Magic, string(h.Magic[:]))
			assert.Equal(t, uint8(Version), h.Version)
			assert.Equal(t, uint32(HeaderSize), h.AssetTableOffset)
			assert.Equal(t, tt.eventTable, h.EventTableOffset)
			assert.Equal(t, tt.logic, h.LogicOffset)
			assert.Equal(t, tt.end, BlobOffset(tt.assets, tt.events)+uint32(tt.blob))
		})
	}

	_, err := Layout(70000, 0, 0)
	assert.Equal(t, diag.AssemblyError, diag.KindOf(err))
}

func TestMarshalBinary(t *testing.T) {
	f := sampleFile(t, []EventEntry{{Kind: 1, X: 32767, Y: 65535, Radius: 6553, Handler: 13}})
	data, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, f.Size())

	le := binary.LittleEndian
	assert.Equal(t, []byte("ESPG"), data[0:4])
	assert.Equal(t, byte(0x02), data[4])
	assert.Equal(t, uint16(2), le.Uint16(data[5:7]))
	assert.Equal(t, uint32(21), le.Uint32(data[7:11]))
	assert.Equal(t, uint16(1), le.Uint16(data[11:13]))
	assert.Equal(t, uint32(53), le.Uint32(data[13:17]))
	assert.Equal(t, uint32(70), le.Uint32(data[17:21]))

	// second asset entry
	entry := data[21+16 : 21+32]
	assert.Equal(t, []byte{
		0x01,
		67, 0, 0, 0,
		3, 0, 0, 0,
		9, 0, 0, 0,
		0x02,
		0, 0,
	}, entry)

	event := data[53:65]
	assert.Equal(t, []byte{0x01, 0xFF, 0x7F, 0xFF, 0xFF, 0x99, 0x19, 13, 0, 0, 0, 0}, event)

	assert.Equal(t, f.Blob, data[65:70])
	assert.Equal(t, f.Logic, data[70:])
	assert.Equal(t, byte(0xFF), data[le.Uint32(data[17:21])+5])
}

func TestMarshalBinaryEntriesStayAligned(t *testing.T) {
	f := sampleFile(t, nil)
	data, err := f.MarshalBinary()
	require.NoError(t, err)

	le := binary.LittleEndian
	for i, a := range f.Assets {
		at := HeaderSize + i*AssetEntrySize
		assert.Equal(t, a.Kind, data[at], "entry %d kind", i)
		assert.Equal(t, a.Offset, le.Uint32(data[at+1:]), "entry %d offset", i)
		assert.Equal(t, a.Format, data[at+13], "entry %d format", i)
	}
	logic := le.Uint32(data[17:21])
	assert.Equal(t, BlobOffset(2, 0)+uint32(len(f.Blob)), logic)
	assert.Equal(t, f.Logic, data[logic:])

	got, err := Parse(data)
	require.NoError(t, err)
	p, err := got.Payload(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB1, 0x11, 0x22}, p)
}

func TestMarshalBinaryRejectsStaleHeader(t *testing.T) {
	f := sampleFile(t, nil)
	f.Events = append(f.Events, EventEntry{Kind: 1})
	_, err := f.MarshalBinary()
	assert.Equal(t, diag.AssemblyError, diag.KindOf(err))
}

func TestParse(t *testing.T) {
	f := sampleFile(t, []EventEntry{{Kind: 1, X: 1, Y: 2, Radius: 3, Handler: 13}})
	data, err := f.MarshalBinary()
	require.NoError(t, err)

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, f.Header, got.Header)
	assert.Equal(t, f.Assets, got.Assets)
	assert.Equal(t, f.Events, got.Events)
	assert.Equal(t, f.Blob, got.Blob)
	assert.Equal(t, f.Logic, got.Logic)

	p, err := got.Payload(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB1, 0x11, 0x22}, p)
	_, err = got.Payload(2)
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	good, err := sampleFile(t, nil).MarshalBinary()
	require.NoError(t, err)

	mutate := func(fn func(b []byte) []byte) []byte {
		b := append([]byte(nil), good...)
		return fn(b)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"short", good[:10]},
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b })},
		{"bad version", mutate(func(b []byte) []byte { b[4] = 1; return b })},
		{"asset table truncated", good[:30]},
		{"logic beyond end", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[17:21], uint32(len(b)+1))
			return b
		})},
		{"payload outside blob", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[21+1:], 5)
			return b
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			assert.Equal(t, diag.AssemblyError, diag.KindOf(err))
		})
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "nested", "game.espg")
	f := sampleFile(t, nil)

	require.NoError(t, Write(path, f))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, f.Header, got.Header)
	assert.Equal(t, f.Logic, got.Logic)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not remain")

	// overwrite in place
	f2 := sampleFile(t, []EventEntry{{Kind: 1}})
	require.NoError(t, Write(path, f2))
	got, err = Read(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), got.Header.EventCount)
}

func TestWriteFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	// the destination is a non-empty directory, so the final rename fails
	path := filepath.Join(dir, "game.espg")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "keep"), 0o755))

	err := Write(path, sampleFile(t, nil))
	require.Error(t, err)
	assert.Equal(t, diag.AssemblyError, diag.KindOf(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "game.espg", entries[0].Name())
	assert.True(t, entries[0].IsDir())
}

func TestWriteInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.espg")
	f := sampleFile(t, nil)
	f.Blob = f.Blob[:1]

	err := Write(path, f)
	assert.Equal(t, diag.AssemblyError, diag.KindOf(err))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "none.espg"))
	assert.Equal(t, diag.AssemblyError, diag.KindOf(err))
}

// TestPropertyLayoutRegions checks that the regions tile the file with no gap
// or overlap.
func TestPropertyLayoutRegions(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	properties.Property("asset table, event table and blob are adjacent", prop.ForAll(
		func(assets, events, blob int) bool {
			h, err := Layout(assets, events, blob)
			if err != nil {
				return false
			}
			return h.AssetTableOffset == HeaderSize &&
				h.EventTableOffset == HeaderSize+uint32(assets*AssetEntrySize) &&
				h.LogicOffset == h.EventTableOffset+uint32(events*EventEntrySize)+uint32(blob)
		},
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}
