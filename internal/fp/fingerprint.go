package fp

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strconv"
	"strings"
)

// NormalizeFilename trims whitespace, converts separators to slashes and
// keeps only the base name. Modfile names are compared case-insensitively.
func NormalizeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return name
	}
	return strings.ToLower(path.Base(name))
}

// Fingerprint computes a stable hex-encoded SHA-256 identifying one
// modfile of one mod in one game. Successive runs that process the same
// file produce the same fingerprint.
func Fingerprint(gameID, modID, modfileID int, filename string) string {
	h := sha256.New()
	for _, part := range []string{
		strconv.Itoa(gameID),
		strconv.Itoa(modID),
		strconv.Itoa(modfileID),
		NormalizeFilename(filename),
	} {
		h.Write([]byte(part))
		// NUL cannot appear in any part.
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
