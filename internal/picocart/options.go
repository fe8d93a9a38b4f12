package picocart

import (
	"fmt"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/dedup"
	"github.com/deploymenttheory/go-rom-uf2/internal/uf2"
)

const (
	// DefaultLoadAddress is where the firmware expects the header region
	DefaultLoadAddress uint32 = 0x10030000

	// DefaultFlashBase is the XIP flash base of the RP2040
	DefaultFlashBase uint32 = 0x10000000

	// DefaultFlashSize is the largest flash PicoCart boards ship with
	DefaultFlashSize uint32 = 16 * 1024 * 1024
)

// Options controls how a ROM is turned into an image
type Options struct {
	// Compress enables chunk deduplication
	Compress bool

	// ChunkSize is the dedup chunk size; it must match the firmware build
	ChunkSize int

	// Family is a board name or a numeric family identifier
	Family string

	// LoadAddress is the flash address of the first block
	LoadAddress uint32

	// FlashBase and FlashSize describe the target flash for the bounds check
	FlashBase uint32
	FlashSize uint32

	// Remainder decides what happens to a trailing partial chunk
	Remainder dedup.RemainderPolicy

	// StrictFlash turns a flash overflow from a warning into an error
	StrictFlash bool
}

// DefaultOptions returns the settings the stock firmware expects
func DefaultOptions() Options {
	return Options{
		Compress:    false,
		ChunkSize:   dedup.DefaultChunkSize,
		Family:      uf2.DefaultFamily,
		LoadAddress: DefaultLoadAddress,
		FlashBase:   DefaultFlashBase,
		FlashSize:   DefaultFlashSize,
		Remainder:   dedup.RemainderPad,
	}
}

// Validate checks the options and resolves the family identifier
func (o Options) Validate() (uint32, error) {
	familyID, err := uf2.ResolveFamily(o.Family)
	if err != nil {
		return 0, err
	}
	if o.Compress {
		if err := dedup.ValidateChunkSize(o.ChunkSize); err != nil {
			return 0, err
		}
	}
	if o.LoadAddress%uf2.DefaultUnitSize != 0 {
		return 0, fmt.Errorf("%w: load address 0x%08x is not %d-byte aligned",
			commonerrors.ErrInvalidArgument, o.LoadAddress, uf2.DefaultUnitSize)
	}
	if o.FlashSize == 0 {
		return 0, fmt.Errorf("%w: flash size must be greater than 0", commonerrors.ErrInvalidArgument)
	}
	if o.LoadAddress < o.FlashBase {
		return 0, fmt.Errorf("%w: load address 0x%08x below flash base 0x%08x",
			commonerrors.ErrInvalidArgument, o.LoadAddress, o.FlashBase)
	}
	return familyID, nil
}
