package sheet

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBOMReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
		{
			name:     "BOM only stripped at start",
			input:    append([]byte("a,b"), 0xEF, 0xBB, 0xBF),
			expected: string(append([]byte("a,b"), 0xEF, 0xBB, 0xBF)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(newBOMReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"valid ASCII", []byte("hello,world"), "hello,world"},
		{"valid multibyte", []byte("S\xc3\xa3o Paulo,\xe4\xb8\x96"), "S\xc3\xa3o Paulo,\xe4\xb8\x96"},
		{"invalid single byte replaced", []byte{'h', 'e', 0x80, 'l', 'o'}, "he?lo"},
		{"truncated sequence at end", []byte{'a', 0xc3}, "a?"},
		{"Windows-1252 quotes", []byte("\x93NYC\x94"), "?NYC?"},
		{"empty input", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(newUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitRunes(t *testing.T) {
	// One byte per underlying read forces every multi-byte rune across reads.
	input := "Widget \xe2\x84\xa2,S\xc3\xa3o Paulo"
	result, err := io.ReadAll(newUTF8Sanitizer(iotest.OneByteReader(strings.NewReader(input))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != input {
		t.Errorf("got %q, want %q", string(result), input)
	}
}

func TestUTF8Sanitizer_KeepsReadError(t *testing.T) {
	// The second underlying read fails after "abc" was buffered; later reads succeed.
	s := newUTF8Sanitizer(iotest.TimeoutReader(strings.NewReader("abc")))

	result, err := io.ReadAll(s)
	if !errors.Is(err, iotest.ErrTimeout) {
		t.Fatalf("error = %v, want %v", err, iotest.ErrTimeout)
	}
	if string(result) != "abc" {
		t.Errorf("got %q, want %q", string(result), "abc")
	}

	if _, err := s.Read(make([]byte, 8)); !errors.Is(err, iotest.ErrTimeout) {
		t.Errorf("next Read error = %v, want %v", err, iotest.ErrTimeout)
	}
}

func TestWrapCSVInput(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte{'h', 'e', 0x80, 'l', 'o'}...)

	reader := wrapCSVInput(bytes.NewReader(input))
	result, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(result) != "he?lo" {
		t.Errorf("got %q, want %q", string(result), "he?lo")
	}
	if reader.n != 5 {
		t.Errorf("bytes counted = %d, want 5", reader.n)
	}
}
