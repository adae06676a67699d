package reader

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/minio/highwayhash"
)

// fingerprintKey is the fixed 32 byte HighwayHash key, so the same
// content always yields the same fingerprint
var fingerprintKey = []byte("splcat source fingerprint key\x00\x00\x00")

// Fingerprint returns a 64-bit HighwayHash of the file content as hex.
// It identifies a source independently of its path.
func Fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", fmt.Errorf("failed to create hash: %w", err)
	}
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
