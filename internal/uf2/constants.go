package uf2

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

// Block layout constants. All fields are little-endian 32-bit words.
const (
	// BlockSize is the fixed size of every UF2 block
	BlockSize = 512

	// MaxPayloadSize is the largest payload a block can carry
	MaxPayloadSize = 476

	// Magic0 is stored at offset 0
	Magic0 uint32 = 0x0A324655

	// Magic1 is stored at offset 4
	Magic1 uint32 = 0x9E5D5157

	// MagicEnd is stored at offset 508
	MagicEnd uint32 = 0x0AB16F30
)

// Field offsets within a block
const (
	offsetMagic0      = 0
	offsetMagic1      = 4
	offsetFlags       = 8
	offsetAddress     = 12
	offsetPayloadSize = 16
	offsetBlockNumber = 20
	offsetTotalBlocks = 24
	offsetFamily      = 28
	offsetPayload     = 32
	offsetMagicEnd    = 508
)

// Flags is the UF2 flags bitmask
type Flags uint32

const (
	FlagNotMainFlash         Flags = 0x00000001
	FlagFileContainer        Flags = 0x00001000
	FlagFamilyIDPresent      Flags = 0x00002000
	FlagMD5ChecksumPresent   Flags = 0x00004000
	FlagExtensionTagsPresent Flags = 0x00008000
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagNotMainFlash, "notMainFlash"},
	{FlagFileContainer, "fileContainer"},
	{FlagFamilyIDPresent, "familyIDPresent"},
	{FlagMD5ChecksumPresent, "md5ChecksumPresent"},
	{FlagExtensionTagsPresent, "extensionTagsPresent"},
}

// Has reports whether all bits of f2 are set
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// String lists the set flag names joined by "|"
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	rest := f
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%08x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// DefaultFamily is the board the PicoCart firmware runs on
const DefaultFamily = "Raspberry Pi RP2040"

// families maps board names to UF2 family identifiers
var families = map[string]uint32{
	"Microchip (Atmel) SAMD21":       0x68ed2b88,
	"Microchip (Atmel) SAML21":       0x1851780a,
	"Microchip (Atmel) SAMD51":       0x55114460,
	"Nordic NRF52840":                0xada52840,
	"ST STM32F0xx":                   0x647824b6,
	"ST STM32F103":                   0x5ee21072,
	"ST STM32F2xx":                   0x5d1a0a2e,
	"ST STM32F3xx":                   0x6b846188,
	"ST STM32F401":                   0x57755a57,
	"ST STM32F407":                   0x6d0922fa,
	"ST STM32F407VG":                 0x8fb060fe,
	"ST STM32F7xx":                   0x53b80f00,
	"ST STM32G0xx":                   0x300f5633,
	"ST STM32G4xx":                   0x4c71240a,
	"ST STM32H7xx":                   0x6db66082,
	"ST STM32L0xx":                   0x202e3a91,
	"ST STM32L1xx":                   0x1e1f432d,
	"ST STM32L4xx":                   0x00ff6919,
	"ST STM32L5xx":                   0x04240bdf,
	"ST STM32WBxx":                   0x70d16653,
	"ST STM32WLxx":                   0x21460ff0,
	"Microchip (Atmel) ATmega32":     0x16573617,
	"Cypress FX2":                    0x5a18069b,
	"ESP8266":                        0x7eab61ed,
	"ESP32":                          0x1c5f21b0,
	"ESP32-S2":                       0xbfdd4eee,
	"ESP32-C3":                       0xd42ba06c,
	"ESP32-S3":                       0xc47e5767,
	"NXP i.MX RT10XX":                0x4fb2d5bd,
	"NXP LPC55xx":                    0x2abc77ec,
	"GD32F350":                       0x31d228c6,
	"Raspberry Pi RP2040":            0xe48bff56,
	"Raspberry Pi RP2350 ARM Secure": 0xe48bff59,
	"Raspberry Pi RP2350 RISC-V":     0xe48bff5a,
}

// FamilyID looks up a board family by its exact name
func FamilyID(name string) (uint32, error) {
	id, ok := families[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", commonerrors.ErrUnknownFamily, name)
	}
	return id, nil
}

// FamilyName returns the board name for an identifier
func FamilyName(id uint32) (string, bool) {
	for name, v := range families {
		if v == id {
			return name, true
		}
	}
	return "", false
}

// FamilyNames returns all known board names, sorted
func FamilyNames() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveFamily accepts either a board name or a numeric identifier such
// as "0xe48bff56". Numeric identifiers need not be in the table.
func ResolveFamily(s string) (uint32, error) {
	if id, err := FamilyID(s); err == nil {
		return id, nil
	}
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", commonerrors.ErrUnknownFamily, s)
	}
	return uint32(id), nil
}
