package nbt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf16"

	"github.com/FocuswithJustin/legacyfix/core/errors"
)

// maxDepth bounds nesting while decoding untrusted binary or text input.
const maxDepth = 512

// ReadNamed decodes one named compound in the big-endian binary format used
// by level, player and region files. The stream must already be decompressed.
func ReadNamed(r io.Reader) (string, *Document, error) {
	br := &binReader{r: bufio.NewReader(r)}
	t := TagType(br.u8())
	if br.err != nil {
		return "", nil, br.fail("read root tag")
	}
	if t != TagCompound {
		return "", nil, errors.NewParse("NBT", "", fmt.Sprintf("root tag is %s, want compound", t))
	}
	name := br.str()
	v := br.payload(TagCompound, 0)
	if br.err != nil {
		return "", nil, br.fail("read root compound")
	}
	return name, v.(*Document), nil
}

// WriteNamed encodes d as a named root compound.
func WriteNamed(w io.Writer, name string, d *Document) error {
	bw := &binWriter{w: bufio.NewWriter(w)}
	bw.u8(byte(TagCompound))
	bw.str(name)
	bw.payload(d)
	if bw.err != nil {
		return errors.NewIO("write", "", bw.err)
	}
	if err := bw.w.Flush(); err != nil {
		return errors.NewIO("write", "", err)
	}
	return nil
}

type binReader struct {
	r   *bufio.Reader
	err error
	buf [8]byte
}

func (br *binReader) fail(msg string) error {
	return &errors.ParseError{Format: "NBT", Message: msg + ": " + br.err.Error(), Err: br.err}
}

func (br *binReader) read(n int) []byte {
	if br.err != nil {
		return br.buf[:n]
	}
	_, br.err = io.ReadFull(br.r, br.buf[:n])
	return br.buf[:n]
}

func (br *binReader) u8() byte    { return br.read(1)[0] }
func (br *binReader) u16() uint16 { return binary.BigEndian.Uint16(br.read(2)) }
func (br *binReader) u32() uint32 { return binary.BigEndian.Uint32(br.read(4)) }
func (br *binReader) u64() uint64 { return binary.BigEndian.Uint64(br.read(8)) }

func (br *binReader) length() int {
	n := int32(br.u32())
	if n < 0 && br.err == nil {
		br.err = fmt.Errorf("negative length %d", n)
	}
	return int(max(n, 0))
}

func (br *binReader) str() string {
	n := int(br.u16())
	if br.err != nil {
		return ""
	}
	b := make([]byte, n)
	if _, br.err = io.ReadFull(br.r, b); br.err != nil {
		return ""
	}
	return decodeModifiedUTF8(b)
}

func (br *binReader) payload(t TagType, depth int) Value {
	if depth > maxDepth {
		br.err = fmt.Errorf("nesting deeper than %d", maxDepth)
		return nil
	}
	switch t {
	case TagByte:
		return Byte(int8(br.u8()))
	case TagShort:
		return Short(int16(br.u16()))
	case TagInt:
		return Int(int32(br.u32()))
	case TagLong:
		return Long(int64(br.u64()))
	case TagFloat:
		return Float(math.Float32frombits(br.u32()))
	case TagDouble:
		return Double(math.Float64frombits(br.u64()))
	case TagString:
		return String(br.str())
	case TagByteArray:
		n := br.length()
		out := make(ByteArray, 0, min(n, 1<<16))
		for i := 0; i < n && br.err == nil; i++ {
			out = append(out, int8(br.u8()))
		}
		return out
	case TagIntArray:
		n := br.length()
		out := make(IntArray, 0, min(n, 1<<16))
		for i := 0; i < n && br.err == nil; i++ {
			out = append(out, int32(br.u32()))
		}
		return out
	case TagLongArray:
		n := br.length()
		out := make(LongArray, 0, min(n, 1<<16))
		for i := 0; i < n && br.err == nil; i++ {
			out = append(out, int64(br.u64()))
		}
		return out
	case TagList:
		elem := TagType(br.u8())
		n := br.length()
		l := &List{elem: elem}
		if elem == TagEnd {
			return l
		}
		for i := 0; i < n && br.err == nil; i++ {
			if v := br.payload(elem, depth+1); v != nil {
				l.items = append(l.items, v)
			}
		}
		return l
	case TagCompound:
		d := New()
		for br.err == nil {
			ct := TagType(br.u8())
			if ct == TagEnd || br.err != nil {
				break
			}
			name := br.str()
			if v := br.payload(ct, depth+1); v != nil {
				d.Put(name, v)
			}
		}
		return d
	default:
		if br.err == nil {
			br.err = fmt.Errorf("unknown tag type %d", byte(t))
		}
		return nil
	}
}

type binWriter struct {
	w   *bufio.Writer
	err error
	buf [8]byte
}

func (bw *binWriter) write(b []byte) {
	if bw.err == nil {
		_, bw.err = bw.w.Write(b)
	}
}

func (bw *binWriter) u8(v byte) { bw.write([]byte{v}) }
func (bw *binWriter) u16(v uint16) {
	binary.BigEndian.PutUint16(bw.buf[:2], v)
	bw.write(bw.buf[:2])
}
func (bw *binWriter) u32(v uint32) {
	binary.BigEndian.PutUint32(bw.buf[:4], v)
	bw.write(bw.buf[:4])
}
func (bw *binWriter) u64(v uint64) {
	binary.BigEndian.PutUint64(bw.buf[:8], v)
	bw.write(bw.buf[:8])
}

func (bw *binWriter) str(s string) {
	b := encodeModifiedUTF8(s)
	if len(b) > math.MaxUint16 {
		if bw.err == nil {
			bw.err = fmt.Errorf("string of %d bytes exceeds 65535", len(b))
		}
		return
	}
	bw.u16(uint16(len(b)))
	bw.write(b)
}

// encodeModifiedUTF8 writes s the way java.io.DataOutput.writeUTF does: NUL
// takes two bytes (C0 80) and characters outside the BMP are written as a
// surrogate pair of three-byte sequences.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
		default:
			out = append(out, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
		}
	}
	return out
}

// decodeModifiedUTF8 reverses encodeModifiedUTF8. Input that is not valid
// modified UTF-8 is returned as raw bytes.
func decodeModifiedUTF8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b) && b[i+1]&0xC0 == 0x80:
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b) && b[i+1]&0xC0 == 0x80 && b[i+2]&0xC0 == 0x80:
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return string(b)
		}
	}
	return string(utf16.Decode(units))
}

func (bw *binWriter) payload(v Value) {
	switch x := v.(type) {
	case Byte:
		bw.u8(byte(x))
	case Short:
		bw.u16(uint16(x))
	case Int:
		bw.u32(uint32(x))
	case Long:
		bw.u64(uint64(x))
	case Float:
		bw.u32(math.Float32bits(float32(x)))
	case Double:
		bw.u64(math.Float64bits(float64(x)))
	case String:
		bw.str(string(x))
	case ByteArray:
		bw.u32(uint32(len(x)))
		for _, n := range x {
			bw.u8(byte(n))
		}
	case IntArray:
		bw.u32(uint32(len(x)))
		for _, n := range x {
			bw.u32(uint32(n))
		}
	case LongArray:
		bw.u32(uint32(len(x)))
		for _, n := range x {
			bw.u64(uint64(n))
		}
	case *List:
		bw.u8(byte(x.elem))
		bw.u32(uint32(len(x.items)))
		for _, item := range x.items {
			bw.payload(item)
		}
	case *Document:
		for _, k := range x.keys {
			item := x.values[k]
			bw.u8(byte(item.Type()))
			bw.str(k)
			bw.payload(item)
		}
		bw.u8(byte(TagEnd))
	}
}
