// Package manifest records how an image was built so it can be inspected
// or extracted later without guessing the ROM size or chunk size.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"howett.net/plist"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/fsutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/picocart"
)

// Format is a manifest serialization
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatPlist Format = "plist"
)

// ParseFormat accepts yaml, yml, json or plist
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "plist":
		return FormatPlist, nil
	}
	return "", fmt.Errorf("%w: manifest format %q", commonerrors.ErrInvalidArgument, s)
}

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Checksums are the hex digests of one file
type Checksums struct {
	CRC32 string `yaml:"crc32" json:"crc32" plist:"crc32"`
	MD5   string `yaml:"md5" json:"md5" plist:"md5"`
	SHA1  string `yaml:"sha1,omitempty" json:"sha1,omitempty" plist:"sha1,omitempty"`
}

// Manifest describes one built image
type Manifest struct {
	Rom          string    `yaml:"rom" json:"rom" plist:"rom"`
	RomSize      int       `yaml:"rom_size" json:"rom_size" plist:"rom_size"`
	Image        string    `yaml:"image" json:"image" plist:"image"`
	ImageSize    int       `yaml:"image_size" json:"image_size" plist:"image_size"`
	Compressed   bool      `yaml:"compressed" json:"compressed" plist:"compressed"`
	ChunkSize    int       `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty" plist:"chunk_size,omitempty"`
	Chunks       int       `yaml:"chunks,omitempty" json:"chunks,omitempty" plist:"chunks,omitempty"`
	UniqueChunks int       `yaml:"unique_chunks,omitempty" json:"unique_chunks,omitempty" plist:"unique_chunks,omitempty"`
	DroppedBytes int       `yaml:"dropped_bytes,omitempty" json:"dropped_bytes,omitempty" plist:"dropped_bytes,omitempty"`
	Blocks       int       `yaml:"blocks" json:"blocks" plist:"blocks"`
	Family       string    `yaml:"family" json:"family" plist:"family"`
	FamilyID     string    `yaml:"family_id" json:"family_id" plist:"family_id"`
	LoadAddress  string    `yaml:"load_address" json:"load_address" plist:"load_address"`
	EndAddress   string    `yaml:"end_address" json:"end_address" plist:"end_address"`
	Warnings     []string  `yaml:"warnings,omitempty" json:"warnings,omitempty" plist:"warnings,omitempty"`
	RomChecksums Checksums `yaml:"rom_checksums" json:"rom_checksums" plist:"rom_checksums"`
	Created      time.Time `yaml:"created" json:"created" plist:"created"`
}

// FromResult fills a manifest from a build result
func FromResult(r *picocart.Result, romSums Checksums) *Manifest {
	s := r.Stats
	family := s.FamilyName()

	m := &Manifest{
		Rom:          s.RomName,
		RomSize:      s.RomSize,
		Image:        r.FileName,
		ImageSize:    s.ImageSize,
		Compressed:   s.Compressed,
		ChunkSize:    s.ChunkSize,
		Chunks:       s.Chunks,
		UniqueChunks: s.UniqueChunks,
		DroppedBytes: s.DroppedBytes,
		Blocks:       s.Blocks,
		Family:       family,
		FamilyID:     fmt.Sprintf("0x%08x", s.FamilyID),
		LoadAddress:  fmt.Sprintf("0x%08x", s.LoadAddress),
		EndAddress:   fmt.Sprintf("0x%08x", s.EndAddress),
		RomChecksums: romSums,
		Created:      time.Now().UTC().Truncate(time.Second),
	}
	for _, w := range r.Warnings {
		m.Warnings = append(m.Warnings, w.Error())
	}
	return m
}

// Encode writes m to w in the given format
func (m *Manifest) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case FormatPlist:
		enc := plist.NewEncoder(w)
		enc.Indent("\t")
		return enc.Encode(m)
	}
	return fmt.Errorf("%w: manifest format %q", commonerrors.ErrInvalidArgument, format)
}

// Decode parses a manifest in the given format
func Decode(data []byte, format Format) (*Manifest, error) {
	m := &Manifest{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, m)
	case FormatJSON:
		err = json.Unmarshal(data, m)
	case FormatPlist:
		_, err = plist.Unmarshal(data, m)
	default:
		return nil, fmt.Errorf("%w: manifest format %q", commonerrors.ErrInvalidArgument, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", commonerrors.ErrFileReadError, err)
	}
	return m, nil
}

// WriteFile writes m to path, choosing the format from the extension
func (m *Manifest) WriteFile(path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := m.Encode(&buf, format); err != nil {
		return err
	}
	return fsutil.WriteFile(path, buf.Bytes(), 0644)
}

// ReadFile loads a manifest, choosing the format from the extension
func ReadFile(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, format)
}

// PathFor returns the manifest path next to an image
func PathFor(imagePath string, format Format) string {
	return fsutil.ReplaceExt(imagePath, ".manifest."+string(format))
}
