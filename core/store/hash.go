package store

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/audy/taxonomy/core/errors"
)

// HashResult holds both digests of a source artifact. SHA-256 is the
// interoperable identity; BLAKE3 is kept alongside for fast local
// verification.
type HashResult struct {
	SHA256 string
	BLAKE3 string
}

// HashBytes computes both digests of data.
func HashBytes(data []byte) *HashResult {
	sum := sha256.Sum256(data)
	b3 := blake3.Sum256(data)
	return &HashResult{
		SHA256: hex.EncodeToString(sum[:]),
		BLAKE3: hex.EncodeToString(b3[:]),
	}
}

// HashFile computes both digests of the file at path in one pass.
func HashFile(path string) (*HashResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	sh := sha256.New()
	bh := blake3.New()
	if _, err := io.Copy(io.MultiWriter(sh, bh), f); err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return &HashResult{
		SHA256: hex.EncodeToString(sh.Sum(nil)),
		BLAKE3: hex.EncodeToString(bh.Sum(nil)),
	}, nil
}
