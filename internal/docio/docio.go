// Package docio reads and writes documents on disk. Input may be SNBT text
// or the binary named-tag format, optionally compressed with gzip, zlib or
// xz; the compression is detected from the content, not the file name.
package docio

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

// Limits applied to untrusted input.
const (
	// MaxDocumentSize bounds the decompressed size of one document (256 MB).
	MaxDocumentSize = 256 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Encoding is the compression wrapped around a document.
type Encoding int

const (
	Plain Encoding = iota
	Gzip
	Zlib
	XZ
)

func (e Encoding) String() string {
	switch e {
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	case XZ:
		return "xz"
	}
	return "plain"
}

// Format is the serialization of a document.
type Format int

const (
	SNBT Format = iota
	Binary
)

func (f Format) String() string {
	if f == Binary {
		return "binary"
	}
	return "snbt"
}

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "snbt":
		return SNBT, nil
	case "binary", "nbt":
		return Binary, nil
	}
	return SNBT, errors.NewValidation("format", "unknown document format "+s)
}

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// Sniff identifies the compression of a stream from its first bytes.
func Sniff(header []byte) Encoding {
	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		return Gzip
	case bytes.HasPrefix(header, xzMagic):
		return XZ
	case len(header) >= 2 && header[0] == 0x78 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0:
		return Zlib
	}
	return Plain
}

// ValidatePath rejects empty or overlong paths and paths carrying control
// characters.
func ValidatePath(path string) error {
	if path == "" {
		return errors.NewValidation("path", "path cannot be empty")
	}
	if len(path) > MaxPathLength {
		return errors.NewValidation("path", "path too long")
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return errors.NewValidation("path", "control character not allowed")
		}
	}
	return nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Decompress wraps r in the decompressor its content calls for.
func Decompress(r io.Reader) (io.Reader, Encoding, error) {
	br := bufio.NewReader(r)
	header, _ := br.Peek(len(xzMagic))
	enc := Sniff(header)

	var (
		out io.Reader
		err error
	)
	switch enc {
	case Gzip:
		out, err = gzip.NewReader(br)
	case Zlib:
		out, err = zlib.NewReader(br)
	case XZ:
		out, err = xz.NewReader(br)
	default:
		out = br
	}
	if err != nil {
		return nil, enc, errors.NewIO(enc.String()+" decode", "", err)
	}
	return out, enc, nil
}

// Open opens path and returns a reader over its decompressed content.
func Open(path string) (io.ReadCloser, Encoding, error) {
	if err := ValidatePath(path); err != nil {
		return nil, Plain, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, Plain, errors.NewIO("open", path, err)
	}
	r, enc, err := Decompress(f)
	if err != nil {
		f.Close()
		return nil, enc, err
	}
	rc := &readCloser{Reader: r, closers: []io.Closer{f}}
	if c, ok := r.(io.Closer); ok {
		rc.closers = append([]io.Closer{c}, rc.closers...)
	}
	return rc, enc, nil
}

// Read decodes one document from r after decompression. Content whose first
// non-whitespace byte is '{' is SNBT; otherwise content starting with the
// compound tag id is binary. The tag id 0x0A is also '\n', so the SNBT check
// comes first.
func Read(r io.Reader) (*nbt.Document, Format, error) {
	plain, _, err := Decompress(r)
	if err != nil {
		return nil, SNBT, err
	}
	data, err := io.ReadAll(io.LimitReader(plain, MaxDocumentSize+1))
	if err != nil {
		return nil, SNBT, errors.NewIO("read", "", err)
	}
	if len(data) > MaxDocumentSize {
		return nil, SNBT, errors.NewValidation("document", "exceeds maximum size")
	}
	text := bytes.TrimLeft(data, " \t\r\n")
	if (len(text) == 0 || text[0] != '{') && len(data) > 0 && data[0] == byte(nbt.TagCompound) {
		_, doc, err := nbt.ReadNamed(bytes.NewReader(data))
		return doc, Binary, err
	}
	doc, err := nbt.ParseSNBT(strings.TrimSpace(string(text)))
	return doc, SNBT, err
}

// ReadDocument reads the document stored at path.
func ReadDocument(path string) (*nbt.Document, Format, error) {
	if err := ValidatePath(path); err != nil {
		return nil, SNBT, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, SNBT, errors.NewIO("open", path, err)
	}
	defer f.Close()
	doc, format, err := Read(f)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, format, err
	}
	return doc, format, nil
}

// Write encodes doc to w without compression. SNBT output ends with a
// newline.
func Write(w io.Writer, doc *nbt.Document, format Format) error {
	if format == Binary {
		return nbt.WriteNamed(w, "", doc)
	}
	if _, err := io.WriteString(w, doc.String()+"\n"); err != nil {
		return errors.NewIO("write", "", err)
	}
	return nil
}

// EncodingForPath picks the compression implied by a file extension.
func EncodingForPath(path string) Encoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".dat":
		return Gzip
	case ".xz":
		return XZ
	case ".zlib":
		return Zlib
	}
	return Plain
}

// WriteDocument writes doc to path, creating parent directories and
// compressing according to the extension.
func WriteDocument(path string, doc *nbt.Document, format Format) (err error) {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIO("create directory", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.NewIO("close", path, cerr)
		}
	}()

	var w io.WriteCloser
	switch EncodingForPath(path) {
	case Gzip:
		w = gzip.NewWriter(f)
	case Zlib:
		w = zlib.NewWriter(f)
	case XZ:
		if w, err = xz.NewWriter(f); err != nil {
			return errors.NewIO("xz encode", path, err)
		}
	default:
		return Write(f, doc, format)
	}
	if err := Write(w, doc, format); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return errors.NewIO("flush", path, err)
	}
	return nil
}
