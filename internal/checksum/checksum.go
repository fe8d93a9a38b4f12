// Package checksum computes the integrity digests shown for ROM and image
// buffers: CRC32 and MD5 synchronously, SHA-1 through an asynchronous
// Digester so a missing or failing primitive never blocks the pipeline.
package checksum

import (
	"context"
	"crypto/md5"
	"fmt"
	"hash/crc32"

	"github.com/deploymenttheory/go-rom-uf2/internal/bytebuf"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/cryptoutil"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

// crcTable is the reflected 0xEDB88320 lookup table, built once
var crcTable = crc32.MakeTable(crc32.IEEE)

// Range selects which bytes of a buffer a checksum covers
type Range struct {
	// HeaderSize skips this many leading bytes
	HeaderSize int

	// IgnoreLast4Bytes excludes a trailing 4-byte checksum field
	IgnoreLast4Bytes bool
}

// bounds resolves the covered [start, end) window
func (r Range) bounds(buf *bytebuf.ByteBuffer) (int, int, error) {
	start, end := r.HeaderSize, buf.Len()
	if r.IgnoreLast4Bytes {
		end -= 4
	}
	if start < 0 || end < start {
		return 0, 0, commonerrors.NewOpError(commonerrors.ErrOutOfRange, "checksum", buf.Name,
			fmt.Sprintf("header=%d end=%d size=%d", start, end, buf.Len()))
	}
	return start, end, nil
}

// CRC32 computes the IEEE CRC32 over the selected range
func CRC32(buf *bytebuf.ByteBuffer, r Range) (uint32, error) {
	start, end, err := r.bounds(buf)
	if err != nil {
		return 0, err
	}
	return crc32.Checksum(buf.Bytes()[start:end], crcTable), nil
}

// MD5 computes the MD5 digest over the selected range
func MD5(buf *bytebuf.ByteBuffer, r Range) ([md5.Size]byte, error) {
	start, end, err := r.bounds(buf)
	if err != nil {
		return [md5.Size]byte{}, err
	}
	return md5.Sum(buf.Bytes()[start:end]), nil
}

// CRC32Hex formats a CRC32 as 8 lowercase hex digits
func CRC32Hex(v uint32) string {
	return fmt.Sprintf("%08x", v)
}

// Digester is an external digest primitive that may complete later or not at all
type Digester interface {
	Digest(ctx context.Context, data []byte) ([]byte, error)
}

// DigesterFunc adapts a function to the Digester interface
type DigesterFunc func(ctx context.Context, data []byte) ([]byte, error)

// Digest calls f
func (f DigesterFunc) Digest(ctx context.Context, data []byte) ([]byte, error) {
	return f(ctx, data)
}

// SHA1Digester is the default SHA-1 primitive, backed by cryptoutil
var SHA1Digester Digester = DigesterFunc(func(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := cryptoutil.NewHashWriter(cryptoutil.SHA1)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("hash operation failed: %w", err)
	}
	return w.Sum(), nil
})

// DigestResult is delivered once an asynchronous digest completes
type DigestResult struct {
	Hex string
	Err error
}

// SHA1Async starts a SHA-1 digest of the whole buffer and returns a channel
// that receives exactly one result. A nil digester, a failing digester or a
// cancelled context yields ErrDigestUnavailable. The buffer contents are
// copied before returning, so the caller may keep mutating buf.
func SHA1Async(ctx context.Context, d Digester, buf *bytebuf.ByteBuffer) <-chan DigestResult {
	out := make(chan DigestResult, 1)
	if d == nil {
		out <- DigestResult{Err: commonerrors.NewOpError(commonerrors.ErrDigestUnavailable, "SHA1", buf.Name, "no digest primitive")}
		close(out)
		return out
	}

	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	name := buf.Name

	go func() {
		defer close(out)
		sum, err := d.Digest(ctx, data)
		if err != nil {
			out <- DigestResult{Err: commonerrors.NewOpError(commonerrors.ErrDigestUnavailable, "SHA1", name, err.Error())}
			return
		}
		out <- DigestResult{Hex: cryptoutil.Bytes2Hex(sum)}
	}()
	return out
}

// Report holds the hex digests of one buffer
type Report struct {
	CRC32 string
	MD5   string

	// SHA1 is empty when SHA1Err is set
	SHA1    string
	SHA1Err error
}

// Compute calculates CRC32 and MD5 over r, then waits for SHA-1. A SHA-1
// failure is recorded in the report rather than returned.
func Compute(ctx context.Context, buf *bytebuf.ByteBuffer, r Range, d Digester) (*Report, error) {
	pending := SHA1Async(ctx, d, buf)

	crc, err := CRC32(buf, r)
	if err != nil {
		return nil, err
	}
	sum, err := MD5(buf, r)
	if err != nil {
		return nil, err
	}

	report := &Report{
		CRC32: CRC32Hex(crc),
		MD5:   cryptoutil.Bytes2Hex(sum[:]),
	}

	select {
	case res := <-pending:
		report.SHA1, report.SHA1Err = res.Hex, res.Err
	case <-ctx.Done():
		report.SHA1Err = commonerrors.NewOpError(commonerrors.ErrDigestUnavailable, "SHA1", buf.Name, ctx.Err().Error())
	}
	return report, nil
}
