// Package cryptoutil provides hashing utilities used to fingerprint ROM and image files
package cryptoutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Bytes2Hex encodes a byte slice to a lowercase hex string
func Bytes2Hex(d []byte) string {
	return hex.EncodeToString(d)
}

// HashAlgorithm represents supported hash algorithms
type HashAlgorithm string

const (
	// MD5 algorithm (not recommended for security-critical applications)
	MD5 HashAlgorithm = "md5"

	// SHA1 algorithm (not recommended for security-critical applications)
	SHA1 HashAlgorithm = "sha1"

	// SHA256 algorithm
	SHA256 HashAlgorithm = "sha256"

	// SHA512 algorithm
	SHA512 HashAlgorithm = "sha512"

	// BLAKE2b256 algorithm
	BLAKE2b256 HashAlgorithm = "blake2b-256"

	// BLAKE3 algorithm (256-bit output)
	BLAKE3 HashAlgorithm = "blake3"
)

var constructors = map[HashAlgorithm]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA256: sha256.New,
	SHA512: sha512.New,
	BLAKE2b256: func() hash.Hash {
		// only fails for keys longer than 64 bytes
		h, _ := blake2b.New256(nil)
		return h
	},
	BLAKE3: func() hash.Hash { return blake3.New() },
}

// Algorithms returns the supported algorithm names in sorted order
func Algorithms() []HashAlgorithm {
	out := make([]HashAlgorithm, 0, len(constructors))
	for a := range constructors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Hasher provides an interface for hashing operations
type Hasher interface {
	// Algorithm returns the algorithm this hasher computes
	Algorithm() HashAlgorithm

	// Hash hashes the provided data
	Hash(data []byte) (string, error)

	// HashFile hashes the content of a file
	HashFile(path string) (string, error)

	// HashReader hashes data from a reader
	HashReader(reader io.Reader) (string, error)

	// Verify checks if the provided hash matches the calculated hash for the data
	Verify(data []byte, expectedHash string) (bool, error)
}

// hasherImpl implements the Hasher interface
type hasherImpl struct {
	algorithm HashAlgorithm
	newHash   func() hash.Hash
}

// NewHasher creates a new Hasher for the specified algorithm
func NewHasher(algorithm HashAlgorithm) (Hasher, error) {
	normalized := HashAlgorithm(strings.ToLower(string(algorithm)))
	newHashFunc, ok := constructors[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported hash algorithm '%s'", commonerrors.ErrInvalidArgument, algorithm)
	}

	return &hasherImpl{
		algorithm: normalized,
		newHash:   newHashFunc,
	}, nil
}

func (h *hasherImpl) Algorithm() HashAlgorithm {
	return h.algorithm
}

// Hash hashes the provided data
func (h *hasherImpl) Hash(data []byte) (string, error) {
	hasher := h.newHash()
	_, err := hasher.Write(data)
	if err != nil {
		return "", fmt.Errorf("hash operation failed: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashFile hashes the content of a file
func (h *hasherImpl) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", commonerrors.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return h.HashReader(file)
}

// HashReader hashes data from a reader
func (h *hasherImpl) HashReader(reader io.Reader) (string, error) {
	hasher := h.newHash()
	_, err := io.Copy(hasher, reader)
	if err != nil {
		return "", fmt.Errorf("hash operation failed: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify checks if the provided hash matches the calculated hash for the data
func (h *hasherImpl) Verify(data []byte, expectedHash string) (bool, error) {
	actualHash, err := h.Hash(data)
	if err != nil {
		return false, err
	}

	return strings.EqualFold(actualHash, expectedHash), nil
}

// ParseHashWithAlgorithm parses a hash string that might include the algorithm as a prefix
// Example formats: "sha256:1234abcd..." or "1234abcd..."
func ParseHashWithAlgorithm(hashStr string) (string, HashAlgorithm) {
	parts := strings.SplitN(hashStr, ":", 2)

	if len(parts) == 2 {
		algorithm := HashAlgorithm(strings.ToLower(parts[0]))
		if _, ok := constructors[algorithm]; ok {
			return parts[1], algorithm
		}
	}

	return hashStr, ""
}

// CalculateFileChecksum calculates a file's checksum using the specified algorithm
func CalculateFileChecksum(filePath string, algorithm HashAlgorithm) (string, error) {
	hasher, err := NewHasher(algorithm)
	if err != nil {
		return "", err
	}

	return hasher.HashFile(filePath)
}
