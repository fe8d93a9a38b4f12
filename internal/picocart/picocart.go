// Package picocart turns N64 ROM images into UF2 images for the PicoCart64
// firmware and reads such images back.
//
// An image is a 0x8000-byte header region followed by a payload, both
// written to flash from the load address with a 256-byte stride. The
// header starts with a 16-byte tag. An uncompressed image carries the ROM
// verbatim as payload; a compressed one carries the pool of unique chunks
// and stores the chunk mapping in the header after the tag.
package picocart

import (
	"bytes"
	"context"
	"fmt"

	"github.com/deploymenttheory/go-rom-uf2/internal/bytebuf"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/fsutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/dedup"
	"github.com/deploymenttheory/go-rom-uf2/internal/logger"
	"github.com/deploymenttheory/go-rom-uf2/internal/uf2"
)

const (
	// TagUncompressed marks an image whose payload is the ROM itself
	TagUncompressed = "picocart        "

	// TagCompressed marks an image whose payload is a deduplicated chunk pool
	TagCompressed = "picocartcompress"

	// HeaderSize is the size of the tag plus mapping region
	HeaderSize = dedup.HeaderSize

	// OutputExt replaces the ROM file extension
	OutputExt = ".uf2"
)

// z64Magic starts every ROM in native big-endian byte order
var z64Magic = []byte{0x80, 0x37, 0x12, 0x40}

// Stats describes a built image
type Stats struct {
	RomName      string
	RomSize      int
	Compressed   bool
	ChunkSize    int
	Chunks       int
	UniqueChunks int
	DroppedBytes int
	PayloadSize  int
	Blocks       int
	ImageSize    int
	FamilyID     uint32
	LoadAddress  uint32
	EndAddress   uint64
}

// FamilyName returns the board name for FamilyID, or its hex value
func (s Stats) FamilyName() string {
	if name, ok := uf2.FamilyName(s.FamilyID); ok {
		return name
	}
	return fmt.Sprintf("0x%08x", s.FamilyID)
}

// Result is the output of Build
type Result struct {
	// Image holds the encoded UF2 blocks
	Image *bytebuf.ByteBuffer

	// FileName is the suggested output name
	FileName string

	Stats Stats

	// Warnings holds advisory conditions that did not stop the build
	Warnings []error
}

// IsZ64 reports whether data starts with the z64 byte-order magic
func IsZ64(data []byte) bool {
	return bytes.HasPrefix(data, z64Magic)
}

// OutputFileName derives the image name from the ROM name
func OutputFileName(romName string) string {
	return fsutil.ReplaceExt(romName, OutputExt)
}

// Build converts rom into a UF2 image. The ROM buffer is not modified and
// its cursor is not moved.
func Build(ctx context.Context, rom *bytebuf.ByteBuffer, opts Options) (*Result, error) {
	familyID, err := opts.Validate()
	if err != nil {
		return nil, err
	}
	if rom.Len() == 0 {
		return nil, commonerrors.NewOpError(commonerrors.ErrInvalidArgument, "Build", rom.Name, "empty ROM")
	}

	log := logger.WithFields(map[string]interface{}{
		"rom":      rom.Name,
		"size":     rom.Len(),
		"compress": opts.Compress,
	})

	result := &Result{
		FileName: OutputFileName(rom.Name),
		Stats: Stats{
			RomName:     rom.Name,
			RomSize:     rom.Len(),
			Compressed:  opts.Compress,
			FamilyID:    familyID,
			LoadAddress: opts.LoadAddress,
		},
	}

	if !IsZ64(rom.Bytes()) {
		w := commonerrors.NewOpError(commonerrors.ErrByteOrder, "Build", rom.Name,
			fmt.Sprintf("starts with % x, want % x", rom.Bytes()[:min(4, rom.Len())], z64Magic))
		log.Warnw("ROM does not look like a z64 image; the cartridge may not boot", "error", w)
		result.Warnings = append(result.Warnings, w)
	}

	var header, payload *bytebuf.ByteBuffer
	if opts.Compress {
		dd, err := dedup.Deduplicate(ctx, rom,
			dedup.WithChunkSize(opts.ChunkSize),
			dedup.WithRemainder(opts.Remainder))
		if err != nil {
			log.Errorw("deduplication failed", "error", err)
			return nil, err
		}
		if header, err = dd.EncodeHeader(TagCompressed); err != nil {
			return nil, err
		}
		payload = dd.PoolBuffer("pool")

		result.Stats.ChunkSize = dd.ChunkSize
		result.Stats.Chunks = len(dd.Mapping)
		result.Stats.UniqueChunks = len(dd.Pool)
		result.Stats.DroppedBytes = dd.DroppedBytes()

		if dd.Remainder != 0 {
			switch dd.Policy {
			case dedup.RemainderTruncate:
				w := commonerrors.NewOpError(commonerrors.ErrBytesDropped, "Build", rom.Name,
					fmt.Sprintf("%d trailing bytes not covered by the chunk mapping", dd.Remainder))
				log.Warnw("ROM tail truncated", "dropped", dd.Remainder)
				result.Warnings = append(result.Warnings, w)
			case dedup.RemainderPad:
				log.Debugw("ROM tail zero-padded to a full chunk", "remainder", dd.Remainder)
			}
		}
		log.Infow("deduplicated ROM",
			"chunks", len(dd.Mapping),
			"unique", len(dd.Pool),
			"chunk_size", dd.ChunkSize)
	} else {
		if header, err = dedup.EncodeHeader(TagUncompressed, nil); err != nil {
			return nil, err
		}
		// separate cursor over the same bytes
		payload = bytebuf.Wrap(rom.Name, rom.Bytes())
	}
	result.Stats.PayloadSize = payload.Len()

	blocks := uf2.CountBlocks(uf2.DefaultUnitSize, header.Len(), payload.Len())
	result.Stats.Blocks = blocks
	result.Stats.EndAddress = uf2.EndAddress(opts.LoadAddress, blocks, uf2.DefaultUnitSize)

	if err := uf2.CheckFlashBounds(opts.LoadAddress, blocks, uf2.DefaultUnitSize, opts.FlashBase, opts.FlashSize); err != nil {
		if opts.StrictFlash {
			log.Errorw("image does not fit in flash", "error", err)
			return nil, err
		}
		log.Warnw("image does not fit in flash", "error", err)
		result.Warnings = append(result.Warnings, err)
	}

	image, err := uf2.Compile(ctx, uf2.CompileOptions{
		LoadAddress: opts.LoadAddress,
		Flags:       uf2.FlagFamilyIDPresent,
		BoardFamily: familyID,
		UnitSize:    uf2.DefaultUnitSize,
	}, header, payload)
	if err != nil {
		log.Errorw("UF2 encoding failed", "error", err)
		return nil, err
	}
	image.Name = result.FileName
	result.Image = image
	result.Stats.ImageSize = image.Len()

	log.Infow("built UF2 image",
		"output", result.FileName,
		"blocks", blocks,
		"bytes", image.Len())
	return result, nil
}
