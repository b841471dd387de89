package binary

import (
	"encoding/binary"
	"math"
)

// Writer appends primitives to a growing byte slice.
type Writer struct {
	b []byte
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{b: make([]byte, 0, 256)}
}

// Bytes returns the encoded bytes. The slice aliases the writer.
func (w *Writer) Bytes() []byte {
	return w.b
}

func (w *Writer) Len() int {
	return len(w.b)
}

func (w *Writer) Byte(b byte) {
	w.b = append(w.b, b)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

// WriteU32 writes an unsigned LEB128 uint32.
func (w *Writer) WriteU32(v uint32) {
	for v >= 0x80 {
		w.b = append(w.b, byte(v)|0x80)
		v >>= 7
	}
	w.b = append(w.b, byte(v))
}

// WriteS32 writes a signed LEB128 int32.
func (w *Writer) WriteS32(v int32) {
	w.WriteS64(int64(v))
}

// WriteS64 writes a signed LEB128 int64.
func (w *Writer) WriteS64(v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := v == 0 && b&0x40 == 0 || v == -1 && b&0x40 != 0
		if done {
			w.b = append(w.b, b)
			return
		}
		w.b = append(w.b, b|0x80)
	}
}

// WriteName writes a length-prefixed string.
func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.b = append(w.b, s...)
}

func (w *Writer) WriteU32LE(v uint32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
}

func (w *Writer) WriteF32(v float32) {
	w.WriteU32LE(math.Float32bits(v))
}

func (w *Writer) WriteF64(v float64) {
	w.b = binary.LittleEndian.AppendUint64(w.b, math.Float64bits(v))
}
