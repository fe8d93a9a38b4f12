package picocart

import (
	"fmt"

	"github.com/deploymenttheory/go-rom-uf2/internal/bytebuf"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/dedup"
	"github.com/deploymenttheory/go-rom-uf2/internal/uf2"
)

// ImageInfo describes a decoded image
type ImageInfo struct {
	Tag         string
	Compressed  bool
	Blocks      int
	Flags       uf2.Flags
	FamilyID    uint32
	FamilyName  string
	LoadAddress uint32
	PayloadSize int

	// Mapping holds every header entry of a compressed image
	Mapping []uint16

	// MappingEntries is the estimated number of entries in use
	MappingEntries int

	// UniqueChunks is the pool size for the chunk size given to Inspect
	UniqueChunks int

	header  []byte
	payload []byte
}

// Inspect decodes an image and reads its header. chunkSize is only used to
// count pool entries of a compressed image; 0 means the default.
func Inspect(image []byte, chunkSize int) (*ImageInfo, error) {
	if chunkSize == 0 {
		chunkSize = dedup.DefaultChunkSize
	}

	blocks, err := uf2.Decode(image)
	if err != nil {
		return nil, err
	}
	data, err := uf2.Reassemble(blocks)
	if err != nil {
		return nil, err
	}
	if len(data) < HeaderSize {
		return nil, commonerrors.NewOpError(commonerrors.ErrInvalidHeader, "Inspect", "",
			fmt.Sprintf("image holds %d bytes, header needs %d", len(data), HeaderSize))
	}

	tag, mapping, err := dedup.DecodeHeader(bytebuf.Wrap("header", data[:HeaderSize]))
	if err != nil {
		return nil, err
	}

	info := &ImageInfo{
		Tag:         tag,
		Blocks:      len(blocks),
		PayloadSize: len(data) - HeaderSize,
		header:      data[:HeaderSize],
		payload:     data[HeaderSize:],
	}
	for _, b := range blocks {
		if b.BlockNumber == 0 {
			info.Flags = b.Flags
			info.FamilyID = b.BoardFamily
			info.LoadAddress = b.FlashAddress
		}
	}
	info.FamilyName, _ = uf2.FamilyName(info.FamilyID)

	switch tag {
	case TagCompressed:
		info.Compressed = true
		info.Mapping = mapping
		info.MappingEntries = dedup.UsedEntries(mapping)
		info.UniqueChunks = info.PayloadSize / chunkSize
	case TagUncompressed:
	default:
		return nil, commonerrors.NewOpError(commonerrors.ErrInvalidHeader, "Inspect", "",
			fmt.Sprintf("unknown tag %q", tag))
	}
	return info, nil
}

// Extract rebuilds the ROM carried by an image. romSize is the original
// ROM length when known; with 0 an uncompressed image yields its whole
// payload and a compressed one is expanded up to its last non-zero
// mapping entry.
func Extract(image []byte, chunkSize, romSize int) ([]byte, *ImageInfo, error) {
	if chunkSize == 0 {
		chunkSize = dedup.DefaultChunkSize
	}
	info, err := Inspect(image, chunkSize)
	if err != nil {
		return nil, nil, err
	}
	if romSize < 0 {
		return nil, nil, fmt.Errorf("%w: rom size %d", commonerrors.ErrInvalidArgument, romSize)
	}

	if !info.Compressed {
		if romSize == 0 {
			romSize = len(info.payload)
		}
		if romSize > len(info.payload) {
			return nil, nil, commonerrors.NewOpError(commonerrors.ErrOutOfRange, "Extract", "",
				fmt.Sprintf("rom size %d exceeds payload of %d", romSize, len(info.payload)))
		}
		out := make([]byte, romSize)
		copy(out, info.payload)
		return out, info, nil
	}

	entries := info.MappingEntries
	if romSize > 0 {
		entries = (romSize + chunkSize - 1) / chunkSize
	} else {
		romSize = entries * chunkSize
	}
	if entries > len(info.Mapping) {
		return nil, nil, commonerrors.NewOpError(commonerrors.ErrMappingOverflow, "Extract", "",
			fmt.Sprintf("rom size %d needs %d entries, header holds %d", romSize, entries, len(info.Mapping)))
	}

	rom, err := dedup.Expand(info.payload, chunkSize, info.Mapping[:entries], romSize)
	if err != nil {
		return nil, nil, err
	}
	return rom, info, nil
}
