// Package fingerprint computes the content digests used to decide whether a
// watched file has changed between two observations.
package fingerprint

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Size is the digest width in bytes (SHA-512).
const Size = sha512.Size

// Digest is the lowercase hex encoding of a file's content hash.
//
// Legacy ledgers may carry 64-character (SHA-256) digests; they are still
// valid Digests but never compare equal to a freshly computed one.
type Digest string

// String returns the hex form of the digest.
func (d Digest) String() string {
	return string(d)
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == ""
}

// Sum returns the digest of b.
func Sum(b []byte) Digest {
	sum := sha512.Sum512(b)
	return Digest(hex.EncodeToString(sum[:]))
}

// Reader hashes everything read from r.
func Reader(r io.Reader) (Digest, error) {
	h := sha512.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// File hashes the file at path.
func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}

// Parse validates s as a hex digest. Both 256-bit legacy and 512-bit digests
// are accepted.
func Parse(s string) (Digest, error) {
	if len(s) != 2*Size && len(s) != 2*sha256Size {
		return "", fmt.Errorf("invalid digest length %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid digest: %w", err)
	}
	return Digest(s), nil
}

const sha256Size = 32
