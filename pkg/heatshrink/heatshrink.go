// Package heatshrink implements the heatshrink LZSS bit-stream format used
// by the embedded runtime to decompress assets and game logic.
//
// Stream format (bits are packed MSB first, the last byte is zero padded):
//
//	literal:        1 | byte (8 bits)
//	back-reference: 0 | distance-1 (WindowBits) | length-1 (LookaheadBits)
//
// A back-reference copies length bytes starting distance bytes before the
// current output position; source and destination may overlap.
package heatshrink

import (
	"errors"
	"fmt"
)

// Params selects the window and lookahead sizes as powers of two.
type Params struct {
	WindowBits    uint8
	LookaheadBits uint8
}

// Parameter sets fixed by the runtime's decompressor.
var (
	// AssetParams compresses converted asset data (256-byte window, 16-byte lookahead).
	AssetParams = Params{WindowBits: 8, LookaheadBits: 4}
	// LogicParams compresses the bytecode stream (2048-byte window, 16-byte lookahead).
	LogicParams = Params{WindowBits: 11, LookaheadBits: 4}
)

// ErrInvalidParams is returned for window/lookahead sizes the format does not allow.
var ErrInvalidParams = errors.New("heatshrink: invalid parameters")

// Validate checks 4 <= WindowBits <= 15 and 3 <= LookaheadBits < WindowBits.
func (p Params) Validate() error {
	if p.WindowBits < 4 || p.WindowBits > 15 || p.LookaheadBits < 3 || p.LookaheadBits >= p.WindowBits {
		return fmt.Errorf("%w: window=%d lookahead=%d", ErrInvalidParams, p.WindowBits, p.LookaheadBits)
	}
	return nil
}

func (p Params) windowSize() int    { return 1 << p.WindowBits }
func (p Params) lookaheadSize() int { return 1 << p.LookaheadBits }

// breakEven is the longest match that is not worth a back-reference.
func (p Params) breakEven() int {
	return (1 + int(p.WindowBits) + int(p.LookaheadBits)) / 8
}

// Encode compresses src.
func Encode(src []byte, p Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	w := &bitWriter{buf: make([]byte, 0, len(src)/2+1)}
	window := p.windowSize()
	maxLen := p.lookaheadSize()
	breakEven := p.breakEven()
	chains := newMatchIndex(len(src))

	for i := 0; i < len(src); {
		dist, length := chains.longest(src, i, window, maxLen)
		if length > breakEven {
			w.writeBits(0, 1)
			w.writeBits(uint32(dist-1), p.WindowBits)
			w.writeBits(uint32(length-1), p.LookaheadBits)
			for j := 0; j < length; j++ {
				chains.insert(src, i+j)
			}
			i += length
			continue
		}
		w.writeBits(1, 1)
		w.writeBits(uint32(src[i]), 8)
		chains.insert(src, i)
		i++
	}

	return w.finish(), nil
}

// Decode decompresses src. Trailing padding bits that cannot form a complete
// token are ignored.
func Decode(src []byte, p Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r := &bitReader{buf: src}
	out := make([]byte, 0, len(src)*2)
	backrefBits := int(p.WindowBits) + int(p.LookaheadBits)

	for {
		if r.remaining() < 9 && (r.remaining() < 1+backrefBits || r.peekBit() == 1) {
			break
		}
		if r.readBits(1) == 1 {
			out = append(out, byte(r.readBits(8)))
			continue
		}
		if r.remaining() < backrefBits {
			break
		}
		dist := int(r.readBits(p.WindowBits)) + 1
		length := int(r.readBits(p.LookaheadBits)) + 1
		if dist > len(out) {
			return nil, fmt.Errorf("heatshrink: back-reference distance %d exceeds %d decoded bytes", dist, len(out))
		}
		start := len(out) - dist
		for j := 0; j < length; j++ {
			out = append(out, out[start+j])
		}
	}

	return out, nil
}

// matchIndex chains earlier positions by their first two bytes.
type matchIndex struct {
	head map[uint16]int
	prev []int
}

func newMatchIndex(n int) *matchIndex {
	prev := make([]int, n)
	for i := range prev {
		prev[i] = -1
	}
	return &matchIndex{head: make(map[uint16]int), prev: prev}
}

func key(src []byte, i int) uint16 {
	return uint16(src[i])<<8 | uint16(src[i+1])
}

func (m *matchIndex) insert(src []byte, i int) {
	if i+1 >= len(src) {
		return
	}
	k := key(src, i)
	if h, ok := m.head[k]; ok {
		m.prev[i] = h
	}
	m.head[k] = i
}

// longest returns the longest match for src[i:] within the window.
// Nearer candidates are visited first, so ties keep the smallest distance.
func (m *matchIndex) longest(src []byte, i, window, maxLen int) (dist, length int) {
	if i+1 >= len(src) {
		return 0, 0
	}
	limit := maxLen
	if rest := len(src) - i; rest < limit {
		limit = rest
	}
	cand, ok := m.head[key(src, i)]
	if !ok {
		return 0, 0
	}
	for ; cand >= 0 && i-cand <= window; cand = m.prev[cand] {
		n := 0
		for n < limit && src[cand+n] == src[i+n] {
			n++
		}
		if n > length {
			dist, length = i-cand, n
			if n == limit {
				break
			}
		}
	}
	return dist, length
}

type bitWriter struct {
	buf   []byte
	cur   byte
	nbits uint8
}

func (w *bitWriter) writeBits(v uint32, n uint8) {
	for i := int(n) - 1; i >= 0; i-- {
		w.cur = w.cur<<1 | byte((v>>uint(i))&1)
		w.nbits++
		if w.nbits == 8 {
			w.buf = append(w.buf, w.cur)
			w.cur, w.nbits = 0, 0
		}
	}
}

func (w *bitWriter) finish() []byte {
	if w.nbits > 0 {
		w.buf = append(w.buf, w.cur<<(8-w.nbits))
		w.cur, w.nbits = 0, 0
	}
	return w.buf
}

type bitReader struct {
	buf []byte
	pos int // bit position
}

func (r *bitReader) remaining() int {
	return len(r.buf)*8 - r.pos
}

func (r *bitReader) peekBit() uint32 {
	return uint32(r.buf[r.pos/8]>>(7-uint(r.pos%8))) & 1
}

func (r *bitReader) readBits(n uint8) uint32 {
	var v uint32
	for i := uint8(0); i < n; i++ {
		v = v<<1 | r.peekBit()
		r.pos++
	}
	return v
}
