package vectorindex

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const maxNamespaceStem = 40

// NamespaceFor derives the per-case collection name. The readable stem is
// sanitized; the hash suffix keeps distinct ids that sanitize alike apart.
func NamespaceFor(caseID string) (string, error) {
	if strings.TrimSpace(caseID) == "" {
		return "", fmt.Errorf("case id is required")
	}
	var b strings.Builder
	for _, r := range caseID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxNamespaceStem {
			break
		}
	}
	sum := sha256.Sum256([]byte(caseID))
	return "case_" + b.String() + "_" + hex.EncodeToString(sum[:8]), nil
}
