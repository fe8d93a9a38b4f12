// Package uf2 encodes and decodes USB Flashing Format images.
//
// A UF2 image is a sequence of 512-byte blocks. Each block carries up to
// 476 payload bytes plus the flash address they belong at, its sequence
// number, the total block count and a board family identifier:
//
//	offset  field
//	0       magic 0x0A324655
//	4       magic 0x9E5D5157
//	8       flags
//	12      flash address
//	16      payload size
//	20      block number
//	24      total blocks
//	28      board family (or file size, per flags)
//	32      payload
//	508     magic 0x0AB16F30
//
// Compile frames whole regions into blocks with a fixed 256-byte stride;
// Decode and Reassemble reverse it.
package uf2
