package binary

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

func TestULEB128(t *testing.T) {
	tests := []struct {
		encoded []byte
		v       uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, math.MaxUint32},
	}
	for _, tt := range tests {
		w := NewWriter()
		w.WriteU32(tt.v)
		if !bytes.Equal(w.Bytes(), tt.encoded) {
			t.Errorf("WriteU32(%d) = % x, want % x", tt.v, w.Bytes(), tt.encoded)
		}
		got, err := NewReader(tt.encoded).ReadU32()
		if err != nil || got != tt.v {
			t.Errorf("ReadU32(% x) = %d, %v; want %d", tt.encoded, got, err, tt.v)
		}
	}
}

func TestSLEB128(t *testing.T) {
	tests := []struct {
		encoded []byte
		v       int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0x40}, -64},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0xbf, 0x7f}, -65},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x78}, math.MinInt32},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x07}, math.MaxInt32},
	}
	for _, tt := range tests {
		w := NewWriter()
		w.WriteS64(tt.v)
		if !bytes.Equal(w.Bytes(), tt.encoded) {
			t.Errorf("WriteS64(%d) = % x, want % x", tt.v, w.Bytes(), tt.encoded)
		}
		got, err := NewReader(tt.encoded).ReadS32()
		if err != nil || int64(got) != tt.v {
			t.Errorf("ReadS32(% x) = %d, %v; want %d", tt.encoded, got, err, tt.v)
		}
	}
}

func TestLEB128Overflow(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *Reader) error
	}{
		{"u32 too long", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, func(r *Reader) error { _, err := r.ReadU32(); return err }},
		{"u32 high bits", []byte{0xff, 0xff, 0xff, 0xff, 0x1f}, func(r *Reader) error { _, err := r.ReadU32(); return err }},
		{"s32 out of range", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, func(r *Reader) error { _, err := r.ReadS32(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.read(NewReader(tt.data)); !errors.Is(err, ErrOverflow) {
				t.Errorf("got %v, want ErrOverflow", err)
			}
		})
	}
}

func TestReaderTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *Reader) error
	}{
		{"byte", nil, func(r *Reader) error { _, err := r.ReadByte(); return err }},
		{"leb", []byte{0x80}, func(r *Reader) error { _, err := r.ReadU32(); return err }},
		{"name", []byte{0x05, 'a', 'b'}, func(r *Reader) error { _, err := r.ReadName(); return err }},
		{"u32le", []byte{1, 2, 3}, func(r *Reader) error { _, err := r.ReadU32LE(); return err }},
		{"f64", []byte{1, 2, 3, 4}, func(r *Reader) error { _, err := r.ReadF64(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.read(NewReader(tt.data)); !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Errorf("got %v, want io.ErrUnexpectedEOF", err)
			}
		})
	}
}

func TestReaderRejectsBadValues(t *testing.T) {
	if _, err := NewReader([]byte{0x02}).ReadBool(); err == nil {
		t.Error("ReadBool accepted 0x02")
	}
	if _, err := NewReader([]byte{0x02, 0xff, 0xfe}).ReadName(); err == nil {
		t.Error("ReadName accepted invalid UTF-8")
	}
}

func TestWrapError(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	if _, err := r.ReadBytes(2); err != nil {
		t.Fatal(err)
	}
	var pe *ParseError
	if !errors.As(r.WrapError("types", io.ErrUnexpectedEOF), &pe) {
		t.Fatal("WrapError did not return a *ParseError")
	}
	if got, want := pe.Error(), "il: types at position 2: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := (&ParseError{Position: 5, Err: io.EOF}).Error(), "il: at position 5: EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if r.Remaining() != 1 {
		t.Errorf("Remaining() = %d, want 1", r.Remaining())
	}
}

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU32(12345)
	w.WriteS32(-42)
	w.WriteS64(math.MinInt64)
	w.WriteName("OnUpdate_LambdaJob0")
	w.WriteBool(true)
	w.WriteF32(0.016)
	w.WriteF64(-2.25)
	w.WriteU32LE(0xDEADBEEF)

	r := NewReader(w.Bytes())
	if v, err := r.ReadU32(); err != nil || v != 12345 {
		t.Errorf("ReadU32 = %d, %v", v, err)
	}
	if v, err := r.ReadS32(); err != nil || v != -42 {
		t.Errorf("ReadS32 = %d, %v", v, err)
	}
	if v, err := r.ReadS64(); err != nil || v != math.MinInt64 {
		t.Errorf("ReadS64 = %d, %v", v, err)
	}
	if v, err := r.ReadName(); err != nil || v != "OnUpdate_LambdaJob0" {
		t.Errorf("ReadName = %q, %v", v, err)
	}
	if v, err := r.ReadBool(); err != nil || !v {
		t.Errorf("ReadBool = %v, %v", v, err)
	}
	if v, err := r.ReadF32(); err != nil || v != 0.016 {
		t.Errorf("ReadF32 = %v, %v", v, err)
	}
	if v, err := r.ReadF64(); err != nil || v != -2.25 {
		t.Errorf("ReadF64 = %v, %v", v, err)
	}
	if v, err := r.ReadU32LE(); err != nil || v != 0xDEADBEEF {
		t.Errorf("ReadU32LE = %#x, %v", v, err)
	}
	if r.Remaining() != 0 || r.Position() != w.Len() {
		t.Errorf("position %d of %d", r.Position(), w.Len())
	}
}
