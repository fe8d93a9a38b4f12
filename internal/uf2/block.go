package uf2

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-rom-uf2/internal/bytebuf"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

// Block is the decoded content of one 512-byte UF2 block
type Block struct {
	// Flags selects the meaning of BoardFamily among other things
	Flags Flags

	// FlashAddress is where the payload is written on the device
	FlashAddress uint32

	// Payload usually holds 256 bytes, at most MaxPayloadSize
	Payload []byte

	// BlockNumber is the sequential block index, starting at 0
	BlockNumber uint32

	// TotalBlocks is the number of blocks in the image
	TotalBlocks uint32

	// BoardFamily is the family ID, file size, or zero depending on Flags
	BoardFamily uint32
}

// EncodeBlock writes block into target at targetOffset. Both preconditions
// (room for 512 bytes, payload within MaxPayloadSize) are checked before
// anything is written. On success the target cursor is left just past the
// block; the target's endianness is preserved.
func EncodeBlock(block Block, target *bytebuf.ByteBuffer, targetOffset int) error {
	if targetOffset < 0 || target.Len() < targetOffset+BlockSize {
		return commonerrors.NewOpError(commonerrors.ErrEncode, "EncodeBlock", target.Name,
			fmt.Sprintf("target array is too small: offset=%d size=%d", targetOffset, target.Len()))
	}
	if len(block.Payload) > MaxPayloadSize {
		return commonerrors.NewOpError(commonerrors.ErrEncode, "EncodeBlock", target.Name,
			fmt.Sprintf("block payload too big: %d bytes, must be %d bytes or less", len(block.Payload), MaxPayloadSize))
	}

	endian := target.Endian
	target.Endian = bytebuf.LittleEndian
	defer func() { target.Endian = endian }()

	if err := target.Fill(targetOffset, BlockSize, 0); err != nil {
		return err
	}

	words := []struct {
		offset int
		value  uint32
	}{
		{offsetMagic0, Magic0},
		{offsetMagic1, Magic1},
		{offsetFlags, uint32(block.Flags)},
		{offsetAddress, block.FlashAddress},
		{offsetPayloadSize, uint32(len(block.Payload))},
		{offsetBlockNumber, block.BlockNumber},
		{offsetTotalBlocks, block.TotalBlocks},
		{offsetFamily, block.BoardFamily},
		{offsetMagicEnd, MagicEnd},
	}
	for _, w := range words {
		target.Seek(targetOffset + w.offset)
		if err := target.WriteU32(w.value); err != nil {
			return err
		}
	}

	target.Seek(targetOffset + offsetPayload)
	if err := target.WriteBytes(block.Payload); err != nil {
		return err
	}
	target.Seek(targetOffset + BlockSize)
	return nil
}

// DecodeBlock parses one 512-byte block, validating magics and payload size.
// The returned payload is a copy.
func DecodeBlock(data []byte) (Block, error) {
	if len(data) != BlockSize {
		return Block{}, commonerrors.NewOpError(commonerrors.ErrInvalidBlock, "DecodeBlock", "",
			fmt.Sprintf("block is %d bytes, want %d", len(data), BlockSize))
	}

	le := binary.LittleEndian
	if le.Uint32(data[offsetMagic0:]) != Magic0 ||
		le.Uint32(data[offsetMagic1:]) != Magic1 ||
		le.Uint32(data[offsetMagicEnd:]) != MagicEnd {
		return Block{}, commonerrors.NewOpError(commonerrors.ErrInvalidMagic, "DecodeBlock", "", "")
	}

	size := le.Uint32(data[offsetPayloadSize:])
	if size > MaxPayloadSize {
		return Block{}, commonerrors.NewOpError(commonerrors.ErrInvalidBlock, "DecodeBlock", "",
			fmt.Sprintf("payload size %d exceeds %d", size, MaxPayloadSize))
	}

	payload := make([]byte, size)
	copy(payload, data[offsetPayload:offsetPayload+int(size)])

	return Block{
		Flags:        Flags(le.Uint32(data[offsetFlags:])),
		FlashAddress: le.Uint32(data[offsetAddress:]),
		Payload:      payload,
		BlockNumber:  le.Uint32(data[offsetBlockNumber:]),
		TotalBlocks:  le.Uint32(data[offsetTotalBlocks:]),
		BoardFamily:  le.Uint32(data[offsetFamily:]),
	}, nil
}
