package rendercache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// Key addresses one cache slot.
type Key struct {
	Group     string
	Partition int
	Situation string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Group, k.Partition, k.Situation)
}

// relPath is the file location of the slot relative to the cache root.
func (k Key) relPath() string {
	sum := sha256.Sum256([]byte(k.String()))
	name := fmt.Sprintf("p%03d-%s-%s.png", k.Partition, sanitize(k.Situation), hex.EncodeToString(sum[:4]))
	return filepath.Join("renders", sanitize(k.Group), name)
}

// Digest hashes render inputs into a stable hex string. Parts are length
// prefixed so adjacent values cannot run together.
func Digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sanitize(value string) string {
	value = strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		" ", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	value = strings.Trim(replacer.Replace(value), "-_.")
	if value == "" {
		return "unnamed"
	}
	return value
}
