// Package sanitize normalizes tenant identifiers for use in vector index
// partition names and key-service aliases.
//
// Partition names in vector stores (Qdrant, chromem) must match
// ^[a-z0-9_]{1,64}$; this package guarantees every derived name conforms.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxIdentifierLength is the maximum length for partition name components.
	// Qdrant and chromem require collection names to be 1-64 characters.
	MaxIdentifierLength = 64

	// HashSuffixLength is the length of the hash suffix added to truncated
	// identifiers. Format: _<8-char-hash> = 9 characters total.
	HashSuffixLength = 9

	// DefaultIdentifier is used when sanitization produces an empty result.
	DefaultIdentifier = "default"

	// partitionPrefix namespaces tenant partitions in the vector store.
	partitionPrefix = "tenant_"

	// aliasPrefix namespaces tenant master-key aliases in the key service.
	aliasPrefix = "alias/tenant_"
)

// Identifier sanitizes a string for use in partition names and aliases.
//
// Rules applied:
//   - Converts to lowercase
//   - Replaces invalid characters with underscores
//   - Collapses multiple underscores
//   - Trims leading/trailing underscores
//   - Truncates to MaxIdentifierLength with hash suffix if too long
//   - Returns DefaultIdentifier if result would be empty
func Identifier(s string) string {
	if s == "" {
		return DefaultIdentifier
	}

	s = strings.ToLower(s)

	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}

	sanitized := result.String()
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" {
		return DefaultIdentifier
	}

	if len(sanitized) > MaxIdentifierLength {
		sanitized = truncateWithHash(sanitized)
	}

	return sanitized
}

// truncateWithHash truncates a string to fit within MaxIdentifierLength,
// appending a hash suffix to preserve uniqueness.
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	hashSuffix := "_" + hex.EncodeToString(hash[:])[:8]

	maxBase := MaxIdentifierLength - HashSuffixLength
	truncated := s[:maxBase]
	truncated = strings.TrimRight(truncated, "_")

	return truncated + hashSuffix
}

// PartitionName derives the vector index partition name for a tenant.
//
// Format: tenant_{sanitized_tenant}. Two distinct raw tenant ids can collide
// only after sanitization maps both to the same identifier; callers that need
// hard uniqueness should pass ids that are already valid identifiers.
func PartitionName(tenantID string) string {
	name := partitionPrefix + Identifier(tenantID)
	if len(name) > MaxIdentifierLength {
		name = truncateWithHash(name)
	}
	return name
}

// TenantFromPartition recovers the sanitized tenant identifier from a
// partition name. Returns false if the name is not a tenant partition.
func TenantFromPartition(name string) (string, bool) {
	if !strings.HasPrefix(name, partitionPrefix) {
		return "", false
	}
	return strings.TrimPrefix(name, partitionPrefix), true
}

// KeyAlias derives the key-service alias for a tenant's master key.
//
// Format: alias/tenant_{sanitized_tenant}, mirroring the partition naming so
// the key hierarchy and the index partitioning agree on tenant identity.
func KeyAlias(tenantID string) string {
	return aliasPrefix + Identifier(tenantID)
}
