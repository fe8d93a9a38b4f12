// Package dedup collapses byte-identical fixed-size chunks of a ROM into a
// pool of unique chunks plus a 16-bit mapping from chunk position to pool
// index, and serializes that mapping into the PicoCart header region.
package dedup

import (
	"bytes"
	"context"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/deploymenttheory/go-rom-uf2/internal/bytebuf"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

const (
	// HeaderSize is the fixed size of the tag plus mapping region
	HeaderSize = 0x8000

	// TagSize is the length of the tag at the start of the header
	TagSize = 16

	// MappingCapacity is the number of uint16 entries that fit after the tag
	MappingCapacity = (HeaderSize - TagSize) / 2

	// cancelCheckInterval is how many chunks are processed between context checks
	cancelCheckInterval = 256
)

// chunkKey indexes the pool. Candidates are confirmed with a byte compare.
type chunkKey [32]byte

// Result is a deduplicated ROM
type Result struct {
	// ChunkSize is the size of every pool entry
	ChunkSize int

	// Pool holds the unique chunks in first-seen order
	Pool [][]byte

	// Mapping has one pool index per chunk position of the ROM
	Mapping []uint16

	// RomSize is the length of the input
	RomSize int

	// Remainder is the number of trailing bytes that did not fill a chunk
	Remainder int

	// Policy is how the remainder was handled
	Policy RemainderPolicy
}

// PayloadSize is the size of the serialized pool
func (r *Result) PayloadSize() int {
	return len(r.Pool) * r.ChunkSize
}

// DroppedBytes is the number of ROM bytes not covered by the mapping
func (r *Result) DroppedBytes() int {
	if r.Policy == RemainderTruncate {
		return r.Remainder
	}
	return 0
}

// Deduplicate splits rom into chunks and pools identical ones. The ROM
// cursor is not used or moved.
func Deduplicate(ctx context.Context, rom *bytebuf.ByteBuffer, opts ...Option) (*Result, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	size := cfg.chunkSize
	data := rom.Bytes()
	remainder := len(data) % size
	numChunks := len(data) / size

	if remainder != 0 {
		switch cfg.remainder {
		case RemainderReject:
			return nil, commonerrors.NewOpError(commonerrors.ErrChunkRemainder, "Deduplicate", rom.Name,
				fmt.Sprintf("%d bytes is %d chunks of %d plus %d", len(data), numChunks, size, remainder))
		case RemainderPad:
			numChunks++
		}
	}

	if numChunks > MappingCapacity {
		return nil, commonerrors.NewOpError(commonerrors.ErrMappingOverflow, "Deduplicate", rom.Name,
			fmt.Sprintf("%d chunks of %d bytes, header holds %d", numChunks, size, MappingCapacity))
	}

	result := &Result{
		ChunkSize: size,
		Mapping:   make([]uint16, numChunks),
		RomSize:   len(data),
		Remainder: remainder,
		Policy:    cfg.remainder,
	}
	index := make(map[chunkKey][]uint16)

	for i := 0; i < numChunks; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		chunk := chunkAt(data, i, size)
		key := chunkKey(blake3.Sum256(chunk))

		found := false
		for _, p := range index[key] {
			if bytes.Equal(result.Pool[p], chunk) {
				result.Mapping[i] = p
				found = true
				break
			}
		}
		if found {
			continue
		}

		p := uint16(len(result.Pool))
		result.Pool = append(result.Pool, chunk)
		index[key] = append(index[key], p)
		result.Mapping[i] = p
	}

	return result, nil
}

// chunkAt returns a copy of chunk i, zero-padded when it runs past the data
func chunkAt(data []byte, i, size int) []byte {
	chunk := make([]byte, size)
	start := i * size
	end := start + size
	if end > len(data) {
		end = len(data)
	}
	copy(chunk, data[start:end])
	return chunk
}

// PoolBuffer serializes the pool as contiguous chunks
func (r *Result) PoolBuffer(name string) *bytebuf.ByteBuffer {
	out := make([]byte, 0, r.PayloadSize())
	for _, chunk := range r.Pool {
		out = append(out, chunk...)
	}
	return bytebuf.Wrap(name, out)
}

// EncodeHeader writes tag and the mapping into a new HeaderSize region.
// Unused mapping entries are zero.
func (r *Result) EncodeHeader(tag string) (*bytebuf.ByteBuffer, error) {
	return EncodeHeader(tag, r.Mapping)
}

// EncodeHeader builds a header region holding tag followed by mapping as
// little-endian uint16 values.
func EncodeHeader(tag string, mapping []uint16) (*bytebuf.ByteBuffer, error) {
	if len(tag) > TagSize {
		return nil, fmt.Errorf("%w: tag %q longer than %d bytes", commonerrors.ErrInvalidArgument, tag, TagSize)
	}
	if len(mapping) > MappingCapacity {
		return nil, commonerrors.NewOpError(commonerrors.ErrMappingOverflow, "EncodeHeader", tag,
			fmt.Sprintf("%d entries, header holds %d", len(mapping), MappingCapacity))
	}

	header, err := bytebuf.New(HeaderSize)
	if err != nil {
		return nil, err
	}
	header.Name = "header"
	header.Endian = bytebuf.LittleEndian

	if err := header.WriteString(tag, TagSize); err != nil {
		return nil, err
	}
	for _, v := range mapping {
		if err := header.WriteU16(v); err != nil {
			return nil, err
		}
	}
	header.Seek(0)
	return header, nil
}

// DecodeHeader reads the tag and all MappingCapacity entries of a header
// region. The header does not record how many entries are in use.
func DecodeHeader(header *bytebuf.ByteBuffer) (string, []uint16, error) {
	if header.Len() < HeaderSize {
		return "", nil, commonerrors.NewOpError(commonerrors.ErrInvalidHeader, "DecodeHeader", header.Name,
			fmt.Sprintf("header is %d bytes, want %d", header.Len(), HeaderSize))
	}

	endian := header.Endian
	header.Endian = bytebuf.LittleEndian
	defer func() { header.Endian = endian }()

	header.Seek(0)
	tag, err := header.ReadBytes(TagSize)
	if err != nil {
		return "", nil, err
	}
	mapping := make([]uint16, MappingCapacity)
	for i := range mapping {
		if mapping[i], err = header.ReadU16(); err != nil {
			return "", nil, err
		}
	}
	return string(tag), mapping, nil
}

// UsedEntries estimates how many mapping entries are in use when the ROM
// size is unknown: everything up to the last non-zero entry, at least one.
func UsedEntries(mapping []uint16) int {
	for i := len(mapping) - 1; i >= 0; i-- {
		if mapping[i] != 0 {
			return i + 1
		}
	}
	if len(mapping) == 0 {
		return 0
	}
	return 1
}

// Expand rebuilds size bytes of ROM from a serialized pool and mapping
func Expand(pool []byte, chunkSize int, mapping []uint16, size int) ([]byte, error) {
	if err := ValidateChunkSize(chunkSize); err != nil {
		return nil, err
	}
	if size < 0 || size > len(mapping)*chunkSize {
		return nil, commonerrors.NewOpError(commonerrors.ErrOutOfRange, "Expand", "",
			fmt.Sprintf("size %d exceeds %d mapped chunks of %d", size, len(mapping), chunkSize))
	}

	poolChunks := len(pool) / chunkSize
	out := make([]byte, 0, len(mapping)*chunkSize)
	for i, p := range mapping {
		if int(p) >= poolChunks {
			return nil, commonerrors.NewOpError(commonerrors.ErrInvalidHeader, "Expand", "",
				fmt.Sprintf("mapping[%d]=%d outside pool of %d chunks", i, p, poolChunks))
		}
		start := int(p) * chunkSize
		out = append(out, pool[start:start+chunkSize]...)
	}
	return out[:size], nil
}
