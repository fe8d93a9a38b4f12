package uf2

import (
	"context"
	"fmt"
	"sort"

	"github.com/deploymenttheory/go-rom-uf2/internal/bytebuf"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

// DefaultUnitSize is the payload carried by each block and the flash stride
const DefaultUnitSize = 256

// CompileOptions controls how regions are framed into blocks
type CompileOptions struct {
	// LoadAddress is the flash address of the first block
	LoadAddress uint32

	// Flags is written into every block
	Flags Flags

	// BoardFamily is written into every block
	BoardFamily uint32

	// UnitSize is the payload per block and the address stride; 0 means 256
	UnitSize int
}

func (o CompileOptions) unitSize() int {
	if o.UnitSize == 0 {
		return DefaultUnitSize
	}
	return o.UnitSize
}

// CountBlocks returns how many blocks are needed for the given region lengths
func CountBlocks(unitSize int, lengths ...int) int {
	total := 0
	for _, n := range lengths {
		total += (n + unitSize - 1) / unitSize
	}
	return total
}

// Compile frames each region in order into consecutive blocks, one per
// unit of payload. The last block of a region may carry less than a full
// unit. Block numbers and flash addresses run continuously across regions;
// the address always advances by the unit size. Each region's cursor is
// rewound and left at its end.
func Compile(ctx context.Context, opts CompileOptions, regions ...*bytebuf.ByteBuffer) (*bytebuf.ByteBuffer, error) {
	unit := opts.unitSize()
	if unit <= 0 || unit > MaxPayloadSize {
		return nil, commonerrors.NewOpError(commonerrors.ErrEncode, "Compile", "",
			fmt.Sprintf("unit size %d outside 1..%d", unit, MaxPayloadSize))
	}

	lengths := make([]int, len(regions))
	for i, r := range regions {
		lengths[i] = r.Len()
	}
	total := CountBlocks(unit, lengths...)

	if uint64(opts.LoadAddress)+uint64(total)*uint64(unit) > 1<<32 {
		return nil, commonerrors.NewOpError(commonerrors.ErrEncode, "Compile", "",
			fmt.Sprintf("%d blocks from 0x%08x overflow the 32-bit address space", total, opts.LoadAddress))
	}

	out, err := bytebuf.New(total * BlockSize)
	if err != nil {
		return nil, err
	}
	out.Endian = bytebuf.LittleEndian

	block := Block{
		Flags:        opts.Flags,
		FlashAddress: opts.LoadAddress,
		TotalBlocks:  uint32(total),
		BoardFamily:  opts.BoardFamily,
	}
	offset := 0
	for _, region := range regions {
		region.Seek(0)
		for !region.IsEOF() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			n := unit
			if r := region.Remaining(); r < n {
				n = r
			}
			payload, err := region.ReadBytes(n)
			if err != nil {
				return nil, err
			}
			block.Payload = payload
			if err := EncodeBlock(block, out, offset); err != nil {
				return nil, err
			}
			block.BlockNumber++
			block.FlashAddress += uint32(unit)
			offset += BlockSize
		}
	}

	if int(block.BlockNumber) != total {
		return nil, commonerrors.NewOpError(commonerrors.ErrEncode, "Compile", "",
			fmt.Sprintf("emitted %d blocks, expected %d", block.BlockNumber, total))
	}
	return out, nil
}

// Decode splits an image into blocks
func Decode(image []byte) ([]Block, error) {
	if len(image) == 0 || len(image)%BlockSize != 0 {
		return nil, commonerrors.NewOpError(commonerrors.ErrInvalidBlock, "Decode", "",
			fmt.Sprintf("image size %d is not a non-zero multiple of %d", len(image), BlockSize))
	}

	blocks := make([]Block, 0, len(image)/BlockSize)
	for off := 0; off < len(image); off += BlockSize {
		b, err := DecodeBlock(image[off : off+BlockSize])
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", off/BlockSize, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Reassemble concatenates payloads in block-number order after checking
// that numbering is complete and every block agrees on the total.
func Reassemble(blocks []Block) ([]byte, error) {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BlockNumber < sorted[j].BlockNumber })

	size := 0
	for i, b := range sorted {
		if b.BlockNumber != uint32(i) {
			return nil, commonerrors.NewOpError(commonerrors.ErrInvalidBlock, "Reassemble", "",
				fmt.Sprintf("expected block %d, found %d", i, b.BlockNumber))
		}
		if b.TotalBlocks != uint32(len(sorted)) {
			return nil, commonerrors.NewOpError(commonerrors.ErrInvalidBlock, "Reassemble", "",
				fmt.Sprintf("block %d claims %d total blocks, image has %d", i, b.TotalBlocks, len(sorted)))
		}
		size += len(b.Payload)
	}

	out := make([]byte, 0, size)
	for _, b := range sorted {
		out = append(out, b.Payload...)
	}
	return out, nil
}

// EndAddress returns the first flash address past an image of the given
// block count.
func EndAddress(loadAddress uint32, blocks, unitSize int) uint64 {
	return uint64(loadAddress) + uint64(blocks)*uint64(unitSize)
}

// CheckFlashBounds reports ErrFlashOverflow when the image would extend past
// flashBase+flashSize. The error is advisory.
func CheckFlashBounds(loadAddress uint32, blocks, unitSize int, flashBase, flashSize uint32) error {
	end := EndAddress(loadAddress, blocks, unitSize)
	limit := uint64(flashBase) + uint64(flashSize)
	if end > limit {
		return commonerrors.NewOpError(commonerrors.ErrFlashOverflow, "CheckFlashBounds", "",
			fmt.Sprintf("image ends at 0x%08x, flash ends at 0x%08x", end, limit))
	}
	return nil
}
