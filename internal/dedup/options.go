package dedup

import (
	"fmt"
	"strings"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

const (
	// DefaultChunkSize is the chunk size the PicoCart firmware is built with
	DefaultChunkSize = 1024

	// MinChunkSize keeps a chunk at least one flash unit long
	MinChunkSize = 256

	// MaxChunkSize bounds a chunk to the flash erase block the firmware copies
	MaxChunkSize = 64 * 1024
)

// RemainderPolicy decides what happens to trailing bytes that do not fill a
// whole chunk.
type RemainderPolicy int

const (
	// RemainderPad zero-pads the trailing bytes to a full chunk
	RemainderPad RemainderPolicy = iota

	// RemainderReject fails with ErrChunkRemainder
	RemainderReject

	// RemainderTruncate drops the trailing bytes
	RemainderTruncate
)

var remainderNames = map[RemainderPolicy]string{
	RemainderPad:      "pad",
	RemainderReject:   "reject",
	RemainderTruncate: "truncate",
}

func (p RemainderPolicy) String() string {
	if name, ok := remainderNames[p]; ok {
		return name
	}
	return fmt.Sprintf("RemainderPolicy(%d)", int(p))
}

// ParseRemainderPolicy accepts "pad", "reject" or "truncate"
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range remainderNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: remainder policy %q (want pad, reject or truncate)",
		commonerrors.ErrInvalidArgument, s)
}

// Option configures Deduplicate
type Option func(*config) error

type config struct {
	chunkSize int
	remainder RemainderPolicy
}

func defaultConfig() config {
	return config{
		chunkSize: DefaultChunkSize,
		remainder: RemainderPad,
	}
}

// WithChunkSize sets the chunk size. It must be a power of two between
// MinChunkSize and MaxChunkSize.
func WithChunkSize(n int) Option {
	return func(c *config) error {
		if err := ValidateChunkSize(n); err != nil {
			return err
		}
		c.chunkSize = n
		return nil
	}
}

// WithRemainder sets the remainder policy
func WithRemainder(p RemainderPolicy) Option {
	return func(c *config) error {
		if _, ok := remainderNames[p]; !ok {
			return fmt.Errorf("%w: %s", commonerrors.ErrInvalidArgument, p)
		}
		c.remainder = p
		return nil
	}
}

// ValidateChunkSize reports whether n is a usable chunk size
func ValidateChunkSize(n int) error {
	if n < MinChunkSize || n > MaxChunkSize || n&(n-1) != 0 {
		return fmt.Errorf("%w: chunk size %d must be a power of two in [%d, %d]",
			commonerrors.ErrInvalidArgument, n, MinChunkSize, MaxChunkSize)
	}
	return nil
}
