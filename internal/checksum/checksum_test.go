package checksum

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/deploymenttheory/go-rom-uf2/internal/bytebuf"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

func TestCRC32KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		r        Range
		expected string
	}{
		{"empty", "", Range{}, "00000000"},
		{"abc", "abc", Range{}, "352441c2"},
		{"check value", "123456789", Range{}, "cbf43926"},
		{"header skipped", "xyzabc", Range{HeaderSize: 3}, "352441c2"},
		{"trailing field ignored", "abc\xde\xad\xbe\xef", Range{IgnoreLast4Bytes: true}, "352441c2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc, err := CRC32(bytebuf.FromBytes("t", []byte(tt.data)), tt.r)
			if err != nil {
				t.Fatal(err)
			}
			if got := CRC32Hex(crc); got != tt.expected {
				t.Errorf("CRC32 = %s; want %s", got, tt.expected)
			}
		})
	}
}

func TestMD5KnownVectors(t *testing.T) {
	tests := []struct {
		data     string
		expected string
	}{
		{"", "d41d8cd98f00b204e9800998ecf8427e"},
		{"abc", "900150983cd24fb0d6963f7d28e17f72"},
		{"12345678901234567890123456789012345678901234567890123456789012345678901234567890", "57edf4a22be3c955ac49da2e2107b67a"},
	}
	for _, tt := range tests {
		sum, err := MD5(bytebuf.FromBytes("t", []byte(tt.data)), Range{})
		if err != nil {
			t.Fatal(err)
		}
		got := hex.EncodeToString(sum[:])
		if got != tt.expected {
			t.Errorf("MD5(%q) = %s; want %s", tt.data, got, tt.expected)
		}
	}
}

func TestRangeTooSmall(t *testing.T) {
	buf := bytebuf.FromBytes("tiny", []byte{1, 2})
	if _, err := CRC32(buf, Range{IgnoreLast4Bytes: true}); !errors.Is(err, commonerrors.ErrOutOfRange) {
		t.Errorf("CRC32 on 2 bytes ignoring 4: got %v; want ErrOutOfRange", err)
	}
	if _, err := MD5(buf, Range{HeaderSize: 3}); !errors.Is(err, commonerrors.ErrOutOfRange) {
		t.Errorf("MD5 with header past end: got %v; want ErrOutOfRange", err)
	}
}

func TestSHA1Async(t *testing.T) {
	buf := bytebuf.FromBytes("rom", []byte("abc"))
	res := <-SHA1Async(context.Background(), SHA1Digester, buf)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Hex != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("SHA1 = %s", res.Hex)
	}
}

func TestSHA1Unavailable(t *testing.T) {
	buf := bytebuf.FromBytes("rom", []byte("abc"))

	res := <-SHA1Async(context.Background(), nil, buf)
	if !errors.Is(res.Err, commonerrors.ErrDigestUnavailable) {
		t.Errorf("nil digester: got %v; want ErrDigestUnavailable", res.Err)
	}

	failing := DigesterFunc(func(context.Context, []byte) ([]byte, error) {
		return nil, errors.New("subtle crypto missing")
	})
	res = <-SHA1Async(context.Background(), failing, buf)
	if !errors.Is(res.Err, commonerrors.ErrDigestUnavailable) {
		t.Errorf("failing digester: got %v; want ErrDigestUnavailable", res.Err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sum, err := SHA1Digester.Digest(ctx, []byte("abc")); err == nil || sum != nil {
		t.Errorf("SHA1Digester on a cancelled context = %x, %v; want an error", sum, err)
	}
	res = <-SHA1Async(ctx, SHA1Digester, buf)
	if !errors.Is(res.Err, commonerrors.ErrDigestUnavailable) {
		t.Errorf("cancelled default digester: got %v; want ErrDigestUnavailable", res.Err)
	}
}

func TestSHA1DigesterDirect(t *testing.T) {
	sum, err := SHA1Digester.Digest(context.Background(), []byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if got := hex.EncodeToString(sum); got != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("SHA1Digester = %s", got)
	}
}

func TestSHA1CopiesBufferBeforeReturning(t *testing.T) {
	release := make(chan struct{})
	slow := DigesterFunc(func(ctx context.Context, data []byte) ([]byte, error) {
		<-release
		return SHA1Digester.Digest(ctx, data)
	})

	buf := bytebuf.FromBytes("rom", []byte("abc"))
	pending := SHA1Async(context.Background(), slow, buf)
	buf.Bytes()[0] = 'z'
	close(release)

	res := <-pending
	if res.Hex != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("SHA1 saw a later mutation: %s", res.Hex)
	}
}

func TestComputeDegradesWithoutSHA1(t *testing.T) {
	buf := bytebuf.FromBytes("rom", []byte("abc"))

	report, err := Compute(context.Background(), buf, Range{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.CRC32 != "352441c2" || report.MD5 != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("report = %+v", report)
	}
	if report.SHA1 != "" || !commonerrors.IsAdvisory(report.SHA1Err) {
		t.Errorf("SHA1 should be omitted with an advisory error, got %q / %v", report.SHA1, report.SHA1Err)
	}

	report, err = Compute(context.Background(), buf, Range{}, SHA1Digester)
	if err != nil {
		t.Fatal(err)
	}
	if report.SHA1 != "a9993e364706816aba3e25717850c26c9cd0d89d" || report.SHA1Err != nil {
		t.Errorf("SHA1 = %q / %v", report.SHA1, report.SHA1Err)
	}
}

func TestComputeDoesNotWaitPastCancellation(t *testing.T) {
	hang := DigesterFunc(func(ctx context.Context, data []byte) ([]byte, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report, err := Compute(ctx, bytebuf.FromBytes("rom", []byte("abc")), Range{}, hang)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(report.SHA1Err, commonerrors.ErrDigestUnavailable) {
		t.Errorf("SHA1Err = %v; want ErrDigestUnavailable", report.SHA1Err)
	}
}
