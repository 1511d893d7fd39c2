package uni

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source yields the raw content of a UNI file. Parsing scans the file
// more than once (header pass, body pass), so a Source must produce a
// fresh reader positioned at offset zero on every Open call.
type Source interface {
	// Open returns a reader over the full file content. The caller
	// closes it.
	Open() (io.ReadCloser, error)

	// Name returns the file name the content arrived under, or "" when
	// unknown. Variant resolution for MIG exports reads the name.
	Name() string
}

// FileSource reads from a file on disk.
func FileSource(path string) Source { return fileSource(path) }

type fileSource string

func (s fileSource) Open() (io.ReadCloser, error) { return os.Open(string(s)) }
func (s fileSource) Name() string                 { return filepath.Base(string(s)) }

// ReaderSource wraps already-loaded content, typically an upload body
// or a test fixture. The name may be empty when the caller has none.
func ReaderSource(name string, data []byte) Source {
	return &readerSource{name: name, data: data}
}

type readerSource struct {
	name string
	data []byte
}

func (s *readerSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *readerSource) Name() string { return s.name }

// StringSource is ReaderSource over a string, for tests and inline
// fixtures.
func StringSource(name, content string) Source {
	return &stringSource{name: name, content: content}
}

type stringSource struct {
	name    string
	content string
}

func (s *stringSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.content)), nil
}

func (s *stringSource) Name() string { return s.name }
