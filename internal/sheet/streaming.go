package sheet

// streaming.go wraps CSV input so it can be parsed without loading the whole
// file into memory:
//
//   - bomReader drops a leading UTF-8 byte order mark written by Excel on Windows
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - countingReader tracks bytes consumed, reported as Table.Bytes
//
// wrapCSVInput applies all three in the order they must run.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomReader skips the UTF-8 BOM if the stream starts with one.
type bomReader struct {
	r       *bufio.Reader
	checked bool
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{r: bufio.NewReader(r)}
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err != nil && err != io.EOF {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// utf8Sanitizer replaces each invalid UTF-8 byte with '?'. The replacement is
// a single byte so output never grows past the caller's buffer. Callers must
// pass buffers of at least utf8.UTFMax bytes.
type utf8Sanitizer struct {
	r   *bufio.Reader
	err error // held until the bytes read before it are returned
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: bufio.NewReader(r)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for n < len(p) {
		r, size, err := s.r.ReadRune()
		if err != nil {
			if n > 0 {
				s.err = err
				return n, nil
			}
			s.err = err
			return 0, err
		}
		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
			continue
		}
		if n+size > len(p) {
			_ = s.r.UnreadRune()
			break
		}
		n += utf8.EncodeRune(p[n:], r)
	}
	return n, nil
}

// countingReader counts bytes read from the underlying reader.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// wrapCSVInput strips the BOM first, then sanitizes, then counts.
func wrapCSVInput(r io.Reader) *countingReader {
	return &countingReader{r: newUTF8Sanitizer(newBOMReader(r))}
}
