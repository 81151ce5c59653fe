// Package container reads and writes the .espg binary package: a fixed
// header, the asset table, the optional event table, the compressed asset
// blob and the game-logic bytecode, all little-endian.
package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zurustar/espg/pkg/compiler/diag"
)

// Wire constants.
const (
	Magic          = "ESPG"
	Version        = 0x02
	HeaderSize     = 21
	AssetEntrySize = 16
	EventEntrySize = 12
)

// Header is the fixed-size file header.
type Header struct {
	Magic            [4]byte
	Version          uint8
	AssetCount       uint16
	AssetTableOffset uint32
	EventCount       uint16
	EventTableOffset uint32
	LogicOffset      uint32
}

// AssetEntry locates one compressed asset in the blob.
// Offset is absolute from the start of the file.
type AssetEntry struct {
	Kind           uint8
	Offset         uint32
	CompressedSize uint32
	RawSize        uint32
	Format         uint8
	Reserved       [2]byte
}

// EventEntry describes one touch handler. X, Y and Radius are fractions of
// the screen scaled to 0..65535; Handler is a byte offset into the
// uncompressed logic stream.
type EventEntry struct {
	Kind     uint8
	X        uint16
	Y        uint16
	Radius   uint16
	Handler  int32
	Reserved uint8
}

// File is a complete package.
type File struct {
	Header Header
	Assets []AssetEntry
	Events []EventEntry
	Blob   []byte
	Logic  []byte
}

// BlobOffset returns the absolute offset of the first asset payload.
func BlobOffset(assetCount, eventCount int) uint32 {
	return uint32(HeaderSize + assetCount*AssetEntrySize + eventCount*EventEntrySize)
}

// Layout computes the header for the given region sizes.
//
// Parameters:
//   - assetCount: Number of asset table entries
//   - eventCount: Number of event table entries (0 when the table is disabled)
//   - blobSize: Total size of the compressed asset blob
//
// Returns:
//   - Header: The header with magic, version, counts and offsets filled in
//   - error: AssemblyError if a count or offset does not fit its field
func Layout(assetCount, eventCount, blobSize int) (Header, error) {
	if assetCount > math.MaxUint16 || eventCount > math.MaxUint16 {
		return Header{}, diag.New(diag.AssemblyError, "too many table entries: %d assets, %d events", assetCount, eventCount)
	}
	logic := uint64(BlobOffset(assetCount, eventCount)) + uint64(blobSize)
	if logic > math.MaxUint32 {
		return Header{}, diag.New(diag.AssemblyError, "logic offset %d does not fit in 32 bits", logic)
	}

	h := Header{
		Version:          Version,
		AssetCount:       uint16(assetCount),
		AssetTableOffset: HeaderSize,
		EventCount:       uint16(eventCount),
		EventTableOffset: uint32(HeaderSize + assetCount*AssetEntrySize),
		LogicOffset:      uint32(logic),
	}
	copy(h.Magic[:], Magic)
	return h, nil
}

// New assembles a File and computes its header.
func New(assets []AssetEntry, events []EventEntry, blob, logic []byte) (*File, error) {
	h, err := Layout(len(assets), len(events), len(blob))
	if err != nil {
		return nil, err
	}
	return &File{Header: h, Assets: assets, Events: events, Blob: blob, Logic: logic}, nil
}

// Size returns the total encoded size in bytes.
func (f *File) Size() int {
	return int(f.Header.LogicOffset) + len(f.Logic)
}

// MarshalBinary encodes the package in file order.
func (f *File) MarshalBinary() ([]byte, error) {
	want, err := Layout(len(f.Assets), len(f.Events), len(f.Blob))
	if err != nil {
		return nil, err
	}
	if f.Header != want {
		return nil, diag.New(diag.AssemblyError, "header does not match the table and blob sizes")
	}

	buf := bytes.NewBuffer(make([]byte, 0, f.Size()))
	// writes to a bytes.Buffer cannot fail
	_ = binary.Write(buf, binary.LittleEndian, &f.Header)
	for i := range f.Assets {
		_ = binary.Write(buf, binary.LittleEndian, &f.Assets[i])
	}
	for i := range f.Events {
		_ = binary.Write(buf, binary.LittleEndian, &f.Events[i])
	}
	buf.Write(f.Blob)
	buf.Write(f.Logic)
	return buf.Bytes(), nil
}

// Parse decodes a package and checks that every region lies inside data.
func Parse(data []byte) (*File, error) {
	if len(data) < HeaderSize {
		return nil, diag.New(diag.AssemblyError, "file too short for header: %d bytes", len(data))
	}
	f := &File{}
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &f.Header); err != nil {
		return nil, diag.Wrap(diag.AssemblyError, err, "reading header")
	}
	h := f.Header
	if string(h.Magic[:]) != Magic {
		return nil, diag.New(diag.AssemblyError, "bad magic %q", h.Magic[:])
	}
	if h.Version != Version {
		return nil, diag.New(diag.AssemblyError, "unsupported version %d", h.Version)
	}

	size := uint64(len(data))
	assetEnd := uint64(h.AssetTableOffset) + uint64(h.AssetCount)*AssetEntrySize
	eventEnd := uint64(h.EventTableOffset) + uint64(h.EventCount)*EventEntrySize
	switch {
	case h.AssetTableOffset < HeaderSize || assetEnd > size:
		return nil, diag.New(diag.AssemblyError, "asset table [%d, %d) out of bounds", h.AssetTableOffset, assetEnd)
	case h.EventTableOffset < uint32(assetEnd) || eventEnd > size:
		return nil, diag.New(diag.AssemblyError, "event table [%d, %d) out of bounds", h.EventTableOffset, eventEnd)
	case uint64(h.LogicOffset) < eventEnd || uint64(h.LogicOffset) > size:
		return nil, diag.New(diag.AssemblyError, "logic offset %d out of bounds", h.LogicOffset)
	}

	f.Assets = make([]AssetEntry, h.AssetCount)
	if err := binary.Read(bytes.NewReader(data[h.AssetTableOffset:assetEnd]), binary.LittleEndian, f.Assets); err != nil {
		return nil, diag.Wrap(diag.AssemblyError, err, "reading asset table")
	}
	f.Events = make([]EventEntry, h.EventCount)
	if err := binary.Read(bytes.NewReader(data[h.EventTableOffset:eventEnd]), binary.LittleEndian, f.Events); err != nil {
		return nil, diag.Wrap(diag.AssemblyError, err, "reading event table")
	}

	f.Blob = data[eventEnd:h.LogicOffset]
	f.Logic = data[h.LogicOffset:]
	for i, a := range f.Assets {
		end := uint64(a.Offset) + uint64(a.CompressedSize)
		if uint64(a.Offset) < eventEnd || end > uint64(h.LogicOffset) {
			return nil, diag.New(diag.AssemblyError, "asset %d payload [%d, %d) outside the blob", i, a.Offset, end)
		}
	}
	return f, nil
}

// Payload returns the compressed bytes of asset i.
func (f *File) Payload(i int) ([]byte, error) {
	if i < 0 || i >= len(f.Assets) {
		return nil, fmt.Errorf("asset index %d out of range", i)
	}
	a := f.Assets[i]
	start := a.Offset - (f.Header.LogicOffset - uint32(len(f.Blob)))
	return f.Blob[start : start+a.CompressedSize], nil
}
