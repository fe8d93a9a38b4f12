// Package compression wraps produced files in an optional archive
// compression layer.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

// Format identifies an archive compression algorithm
type Format int

const (
	FormatNone Format = iota
	FormatGZIP
	FormatBZIP2
	FormatXZ
	FormatZstd
	FormatLZ4
)

type codec struct {
	name   string
	ext    string
	magic  []byte
	writer func(io.Writer) (io.WriteCloser, error)
	reader func(io.Reader) (io.ReadCloser, error)
}

var codecs = map[Format]codec{
	FormatGZIP:  {"gzip", ".gz", []byte{0x1f, 0x8b}, newGZIPWriter, newGZIPReader},
	FormatBZIP2: {"bzip2", ".bz2", []byte("BZh"), newBZIP2Writer, newBZIP2Reader},
	FormatXZ:    {"xz", ".xz", []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, newXZWriter, newXZReader},
	FormatZstd:  {"zstd", ".zst", []byte{0x28, 0xb5, 0x2f, 0xfd}, newZstdWriter, newZstdReader},
	FormatLZ4:   {"lz4", ".lz4", []byte{0x04, 0x22, 0x4d, 0x18}, newLZ4Writer, newLZ4Reader},
}

// String returns the format name
func (f Format) String() string {
	if f == FormatNone {
		return "none"
	}
	if c, ok := codecs[f]; ok {
		return c.name
	}
	return fmt.Sprintf("unknown(%d)", int(f))
}

// Ext returns the file extension appended by the format
func (f Format) Ext() string {
	return codecs[f].ext
}

// ParseFormat parses a format name such as "zstd" or "none"
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return FormatNone, nil
	}
	for f, c := range codecs {
		if c.name == name {
			return f, nil
		}
	}
	return FormatNone, fmt.Errorf("%w: %q", commonerrors.ErrUnsupportedCompression, name)
}

// DetectFormat identifies the format from leading magic bytes
func DetectFormat(header []byte) Format {
	for f, c := range codecs {
		if bytes.HasPrefix(header, c.magic) {
			return f
		}
	}
	return FormatNone
}

// TrimExt removes a known archive extension from path
func TrimExt(path string) string {
	for _, c := range codecs {
		if strings.HasSuffix(path, c.ext) {
			return strings.TrimSuffix(path, c.ext)
		}
	}
	return path
}

// NewWriter wraps w in a compressor. FormatNone passes writes through.
func NewWriter(f Format, w io.Writer) (io.WriteCloser, error) {
	if f == FormatNone {
		return nopWriteCloser{w}, nil
	}
	c, ok := codecs[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", commonerrors.ErrUnsupportedCompression, f)
	}
	return c.writer(w)
}

// NewReader wraps r in a decompressor. FormatNone passes reads through.
func NewReader(f Format, r io.Reader) (io.ReadCloser, error) {
	if f == FormatNone {
		return io.NopCloser(r), nil
	}
	c, ok := codecs[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", commonerrors.ErrUnsupportedCompression, f)
	}
	return c.reader(r)
}

// Compress compresses data in memory
func Compress(f Format, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(f, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: %s: %v", commonerrors.ErrCompressionFailed, f, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", commonerrors.ErrCompressionFailed, f, err)
	}
	return buf.Bytes(), nil
}

// Decompress decompresses data in memory, detecting the format
func Decompress(data []byte) ([]byte, error) {
	f := DetectFormat(data)
	r, err := NewReader(f, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", commonerrors.ErrDecompressionFailed, f, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", commonerrors.ErrDecompressionFailed, f, err)
	}
	return out, nil
}

// CompressFile compresses src into dst
func CompressFile(f Format, src, dst string) error {
	inputFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %s", commonerrors.ErrFileReadError, src)
	}
	defer inputFile.Close()

	outputFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %s", commonerrors.ErrFileWriteError, dst)
	}
	defer outputFile.Close()

	w, err := NewWriter(f, outputFile)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, inputFile); err != nil {
		w.Close()
		return fmt.Errorf("%w: failed to compress file: %v", commonerrors.ErrCompressionFailed, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: failed to compress file: %v", commonerrors.ErrCompressionFailed, err)
	}
	return outputFile.Close()
}

// ExtractFile decompresses src into dst, detecting the format
func ExtractFile(src, dst string) error {
	inputFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %s", commonerrors.ErrFileReadError, src)
	}
	defer inputFile.Close()

	magic := make([]byte, 6)
	n, _ := io.ReadFull(inputFile, magic)
	if _, err := inputFile.Seek(0, io.SeekStart); err != nil {
		return err
	}

	r, err := NewReader(DetectFormat(magic[:n]), inputFile)
	if err != nil {
		return fmt.Errorf("%w: %v", commonerrors.ErrDecompressionFailed, err)
	}
	defer r.Close()

	outputFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %s", commonerrors.ErrFileWriteError, dst)
	}
	defer outputFile.Close()

	if _, err := io.Copy(outputFile, r); err != nil {
		return fmt.Errorf("%w: failed to decompress file: %v", commonerrors.ErrDecompressionFailed, err)
	}
	return outputFile.Close()
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
