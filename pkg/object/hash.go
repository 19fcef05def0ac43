package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ZeroHash is the all-zero id used by change lists for content that only
// exists in the working tree.
var ZeroHash = Hash(strings.Repeat("0", sha256.Size*2))

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-256 of the envelope "type len\0content",
// mirroring Git's object hashing but with SHA-256.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// IsZeroHash reports whether s is a non-empty run of '0' characters. Both
// 40-character (git) and 64-character (got) sentinels qualify.
func IsZeroHash(s string) bool {
	return s != "" && strings.Trim(s, "0") == ""
}

// IsNullMode reports whether mode is the all-zero "does not exist" mode.
func IsNullMode(mode string) bool {
	return IsZeroHash(mode)
}

// IsHexHash reports whether s looks like an object id of any supported
// length.
func IsHexHash(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
