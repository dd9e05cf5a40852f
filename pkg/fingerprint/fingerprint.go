// Package fingerprint computes the content-addressed identity of a
// chunk. The fingerprint is the dedup key and the primary key of the
// corresponding vector-store entry, so the normalization policy here is
// frozen: changing it would orphan every previously indexed chunk.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint is the hex sha256 of (tenant, source, normalized text).
// It is a value type; two chunks with the same fingerprint are the same
// chunk for dedup purposes. Because the tenant id is hashed in, two
// tenants uploading identical text always get distinct fingerprints.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// New derives the fingerprint for a chunk of text owned by
// (tenantID, sourceID). sourceID may be empty for unscoped chunks.
func New(tenantID, sourceID, text string) Fingerprint {
	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(sourceID))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(text)))
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// Normalize applies the fixed normalization policy: NFC form, each line
// trimmed, blank lines dropped. Mirrors what the ingestion side does to
// page text so that cosmetic whitespace differences do not defeat dedup.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Sum256 is the whole-file content hash recorded on document metadata.
// Unlike chunk fingerprints it has no tenant component; it only detects
// byte-identical re-uploads of the same file.
func Sum256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
