package formats

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Faultbox/tmdl/pkg/encoding"
)

// binReader is a little-endian cursor over a byte slice. The first short
// read is recorded in err and every later read returns zero values.
type binReader struct {
	data      []byte
	off       int
	err       error
	truncated error
}

func newBinReader(data []byte, truncated error) *binReader {
	return &binReader{data: data, truncated: truncated}
}

func (r *binReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", r.truncated, n, r.off, len(r.data)-r.off)
		r.off = len(r.data)
		return nil
	}
	p := r.data[r.off : r.off+n]
	r.off += n
	return p
}

func (r *binReader) remaining() int { return len(r.data) - r.off }

func (r *binReader) skip(n int) { r.take(n) }

func (r *binReader) u8() uint8 {
	if p := r.take(1); p != nil {
		return p[0]
	}
	return 0
}

func (r *binReader) i16() int16 {
	if p := r.take(2); p != nil {
		return int16(binary.LittleEndian.Uint16(p))
	}
	return 0
}

func (r *binReader) u16() uint16 {
	if p := r.take(2); p != nil {
		return binary.LittleEndian.Uint16(p)
	}
	return 0
}

func (r *binReader) i32() int32 {
	if p := r.take(4); p != nil {
		return int32(binary.LittleEndian.Uint32(p))
	}
	return 0
}

func (r *binReader) f32() float32 {
	if p := r.take(4); p != nil {
		return math.Float32frombits(binary.LittleEndian.Uint32(p))
	}
	return 0
}

func (r *binReader) vec3() [3]float32 {
	return [3]float32{r.f32(), r.f32(), r.f32()}
}

func (r *binReader) vec4() [4]float32 {
	return [4]float32{r.f32(), r.f32(), r.f32(), r.f32()}
}

// fixedString reads a NUL-padded EUC-KR string of n bytes as UTF-8.
func (r *binReader) fixedString(n int) string {
	p := r.take(n)
	if p == nil {
		return ""
	}
	return encoding.FixedStringToUTF8(p)
}

// count reads an int32 element count and checks it against limit.
func (r *binReader) count(what string, limit int) int {
	n := r.i32()
	if r.err == nil && (n < 0 || int(n) > limit) {
		r.err = fmt.Errorf("invalid %s count %d at offset %d", what, n, r.off-4)
		return 0
	}
	return int(n)
}
