// Package bytebuf provides a cursor-based, fixed-size byte buffer with
// configurable endianness for reading and writing ROM and image data.
//
// Every read and write is bounds-checked against the buffer length and
// fails with commonerrors.ErrOutOfRange instead of touching memory past
// the end. Seek and Skip never fail; bounds are enforced per operation.
package bytebuf

import (
	"fmt"
	"io"
	"unicode/utf8"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

// Endianness selects the byte order used by the scalar read/write methods
type Endianness int

const (
	// BigEndian stores the most significant byte first
	BigEndian Endianness = iota

	// LittleEndian stores the least significant byte first
	LittleEndian
)

// String returns the name of the byte order
func (e Endianness) String() string {
	switch e {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// DefaultName is used for buffers created without a source file name
const DefaultName = "file.bin"

// ByteBuffer owns a fixed-size byte region and a cursor into it
type ByteBuffer struct {
	// Name is metadata only; it is typically the source file name
	Name string

	// Endian controls how multi-byte scalars are encoded
	Endian Endianness

	offset int
	data   []byte
}

// New creates a zero-filled buffer of the given size
func New(size int) (*ByteBuffer, error) {
	if size < 0 {
		return nil, commonerrors.NewOpError(commonerrors.ErrInvalidArgument, "New", "", fmt.Sprintf("size=%d", size))
	}
	return &ByteBuffer{Name: DefaultName, data: make([]byte, size)}, nil
}

// FromBytes creates a buffer holding a copy of src
func FromBytes(name string, src []byte) *ByteBuffer {
	data := make([]byte, len(src))
	copy(data, src)
	return Wrap(name, data)
}

// Wrap creates a buffer that takes ownership of data without copying.
// The caller must not use data afterwards.
func Wrap(name string, data []byte) *ByteBuffer {
	if name == "" {
		name = DefaultName
	}
	return &ByteBuffer{Name: name, data: data}
}

// ReadFrom reads r to EOF into a new buffer
func ReadFrom(name string, r io.Reader) (*ByteBuffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, commonerrors.NewOpError(commonerrors.ErrFileReadError, "ReadFrom", name, err.Error())
	}
	return Wrap(name, data), nil
}

// Len returns the buffer length in bytes
func (b *ByteBuffer) Len() int {
	return len(b.data)
}

// Offset returns the current cursor position
func (b *ByteBuffer) Offset() int {
	return b.offset
}

// Bytes returns the underlying storage. The slice is only valid until the
// next write and must not be retained by the caller.
func (b *ByteBuffer) Bytes() []byte {
	return b.data
}

// Seek moves the cursor to an absolute offset
func (b *ByteBuffer) Seek(offset int) {
	b.offset = offset
}

// Skip advances the cursor by n bytes
func (b *ByteBuffer) Skip(n int) {
	b.offset += n
}

// IsEOF reports whether the cursor is at or past the end of the buffer
func (b *ByteBuffer) IsEOF() bool {
	return b.offset >= len(b.data)
}

// Remaining returns the number of bytes between the cursor and the end
func (b *ByteBuffer) Remaining() int {
	if b.offset >= len(b.data) {
		return 0
	}
	return len(b.data) - b.offset
}

// checkRange validates an access of n bytes at offset
func (b *ByteBuffer) checkRange(op string, offset, n int) error {
	if offset < 0 || n < 0 || offset > len(b.data) || n > len(b.data)-offset {
		return commonerrors.NewOpError(commonerrors.ErrOutOfRange, op, b.Name,
			fmt.Sprintf("offset=%d length=%d size=%d", offset, n, len(b.data)))
	}
	return nil
}

// readUint reads an unsigned integer of width bytes at the cursor
func (b *ByteBuffer) readUint(op string, width int) (uint32, error) {
	if err := b.checkRange(op, b.offset, width); err != nil {
		return 0, err
	}
	p := b.data[b.offset : b.offset+width]
	var v uint32
	if b.Endian == LittleEndian {
		for i := width - 1; i >= 0; i-- {
			v = v<<8 | uint32(p[i])
		}
	} else {
		for i := 0; i < width; i++ {
			v = v<<8 | uint32(p[i])
		}
	}
	b.offset += width
	return v, nil
}

// writeUint writes the low width bytes of v at the cursor
func (b *ByteBuffer) writeUint(op string, width int, v uint32) error {
	if err := b.checkRange(op, b.offset, width); err != nil {
		return err
	}
	p := b.data[b.offset : b.offset+width]
	for i := 0; i < width; i++ {
		shift := uint(8 * i)
		if b.Endian == LittleEndian {
			p[i] = byte(v >> shift)
		} else {
			p[width-1-i] = byte(v >> shift)
		}
	}
	b.offset += width
	return nil
}

// ReadU8 reads one byte
func (b *ByteBuffer) ReadU8() (uint8, error) {
	v, err := b.readUint("ReadU8", 1)
	return uint8(v), err
}

// ReadU16 reads a 16-bit unsigned integer
func (b *ByteBuffer) ReadU16() (uint16, error) {
	v, err := b.readUint("ReadU16", 2)
	return uint16(v), err
}

// ReadU24 reads a 24-bit unsigned integer into the low bits of a uint32
func (b *ByteBuffer) ReadU24() (uint32, error) {
	return b.readUint("ReadU24", 3)
}

// ReadU32 reads a 32-bit unsigned integer
func (b *ByteBuffer) ReadU32() (uint32, error) {
	return b.readUint("ReadU32", 4)
}

// WriteU8 writes one byte
func (b *ByteBuffer) WriteU8(v uint8) error {
	return b.writeUint("WriteU8", 1, uint32(v))
}

// WriteU16 writes a 16-bit unsigned integer
func (b *ByteBuffer) WriteU16(v uint16) error {
	return b.writeUint("WriteU16", 2, uint32(v))
}

// WriteU24 writes the low 24 bits of v
func (b *ByteBuffer) WriteU24(v uint32) error {
	return b.writeUint("WriteU24", 3, v)
}

// WriteU32 writes a 32-bit unsigned integer
func (b *ByteBuffer) WriteU32(v uint32) error {
	return b.writeUint("WriteU32", 4, v)
}

// ReadBytes returns a copy of the next n bytes
func (b *ByteBuffer) ReadBytes(n int) ([]byte, error) {
	if err := b.checkRange("ReadBytes", b.offset, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.data[b.offset:])
	b.offset += n
	return out, nil
}

// ReadString reads up to n bytes, stopping at the first zero byte or the
// end of the buffer. Each byte decodes to one character (Latin-1). The
// cursor always advances by n.
func (b *ByteBuffer) ReadString(n int) (string, error) {
	if n < 0 || b.offset < 0 {
		return "", commonerrors.NewOpError(commonerrors.ErrOutOfRange, "ReadString", b.Name,
			fmt.Sprintf("offset=%d length=%d size=%d", b.offset, n, len(b.data)))
	}
	runes := make([]rune, 0, n)
	for i := 0; i < n && b.offset+i < len(b.data); i++ {
		c := b.data[b.offset+i]
		if c == 0 {
			break
		}
		runes = append(runes, rune(c))
	}
	b.offset += n
	return string(runes), nil
}

// WriteBytes copies p at the cursor
func (b *ByteBuffer) WriteBytes(p []byte) error {
	if err := b.checkRange("WriteBytes", b.offset, len(p)); err != nil {
		return err
	}
	copy(b.data[b.offset:], p)
	b.offset += len(p)
	return nil
}

// WriteString writes up to n characters of s, one byte per character
// code, and zero-pads the rest of the n-byte field. The cursor advances
// by exactly n. A string that is not valid UTF-8 is taken as raw bytes;
// otherwise every written character must fit in a byte.
func (b *ByteBuffer) WriteString(s string, n int) error {
	if err := b.checkRange("WriteString", b.offset, n); err != nil {
		return err
	}

	var codes []byte
	if !utf8.ValidString(s) {
		codes = []byte(s)
	} else {
		codes = make([]byte, 0, len(s))
		for _, r := range s {
			if len(codes) >= n {
				break
			}
			if r > 0xFF {
				return commonerrors.NewOpError(commonerrors.ErrInvalidArgument, "WriteString", b.Name,
					fmt.Sprintf("character %U does not fit in a byte", r))
			}
			codes = append(codes, byte(r))
		}
	}

	field := b.data[b.offset : b.offset+n]
	i := copy(field, codes)
	for ; i < n; i++ {
		field[i] = 0
	}
	b.offset += n
	return nil
}

// Fill sets n bytes starting at offset to v without moving the cursor
func (b *ByteBuffer) Fill(offset, n int, v byte) error {
	if err := b.checkRange("Fill", offset, n); err != nil {
		return err
	}
	region := b.data[offset : offset+n]
	for i := range region {
		region[i] = v
	}
	return nil
}

// Slice returns an independent copy of [offset, offset+n)
func (b *ByteBuffer) Slice(offset, n int) (*ByteBuffer, error) {
	if err := b.checkRange("Slice", offset, n); err != nil {
		return nil, err
	}
	out := FromBytes(b.Name, b.data[offset:offset+n])
	out.Endian = b.Endian
	return out, nil
}

// SliceFrom returns an independent copy of everything from offset to the end
func (b *ByteBuffer) SliceFrom(offset int) (*ByteBuffer, error) {
	return b.Slice(offset, len(b.data)-offset)
}

// CopyInto copies n bytes from this buffer at srcOffset into target at dstOffset
func (b *ByteBuffer) CopyInto(target *ByteBuffer, srcOffset, n, dstOffset int) error {
	if err := b.checkRange("CopyInto", srcOffset, n); err != nil {
		return err
	}
	if err := target.checkRange("CopyInto", dstOffset, n); err != nil {
		return err
	}
	copy(target.data[dstOffset:dstOffset+n], b.data[srcOffset:srcOffset+n])
	return nil
}

// CopyTo copies n bytes at srcOffset into the same offset of target
func (b *ByteBuffer) CopyTo(target *ByteBuffer, srcOffset, n int) error {
	return b.CopyInto(target, srcOffset, n, srcOffset)
}

// WriteTo writes the whole buffer to w, implementing io.WriterTo
func (b *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	return int64(n), err
}
