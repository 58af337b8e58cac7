package sanitize

import (
	"strings"
	"testing"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "acme",
			expected: "acme",
		},
		{
			name:     "uppercase conversion",
			input:    "AcmeCorp",
			expected: "acmecorp",
		},
		{
			name:     "dots to underscores",
			input:    "acme.example.com",
			expected: "acme_example_com",
		},
		{
			name:     "uuid-style tenant id",
			input:    "3f2b8c1a-9d7e-4f60-b1aa-0c9d8e7f6a5b",
			expected: "3f2b8c1a_9d7e_4f60_b1aa_0c9d8e7f6a5b",
		},
		{
			name:     "special characters",
			input:    "tenant-a!@#$%",
			expected: "tenant_a",
		},
		{
			name:     "multiple underscores collapsed",
			input:    "foo___bar",
			expected: "foo_bar",
		},
		{
			name:     "leading/trailing underscores trimmed",
			input:    "_foo_bar_",
			expected: "foo_bar",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "default",
		},
		{
			name:     "only invalid chars",
			input:    "!!!",
			expected: "default",
		},
		{
			name:     "numbers preserved",
			input:    "tenant123",
			expected: "tenant123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Identifier(tt.input)
			if got != tt.expected {
				t.Errorf("Identifier(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIdentifierTruncation(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := Identifier(long)

	if len(got) > MaxIdentifierLength {
		t.Errorf("Identifier length %d exceeds max %d", len(got), MaxIdentifierLength)
	}
	if !strings.Contains(got, "_") {
		t.Error("truncated identifier should contain hash suffix separator")
	}

	// Distinct long inputs must stay distinct after truncation.
	other := Identifier(strings.Repeat("a", 99) + "b")
	if got == other {
		t.Error("distinct long identifiers collided after truncation")
	}
}

func TestPartitionName(t *testing.T) {
	got := PartitionName("Tenant-A")
	if got != "tenant_tenant_a" {
		t.Errorf("PartitionName = %q, want %q", got, "tenant_tenant_a")
	}
	if len(PartitionName(strings.Repeat("x", 200))) > MaxIdentifierLength {
		t.Error("PartitionName exceeds max length for long tenant ids")
	}
}

func TestTenantFromPartition(t *testing.T) {
	id, ok := TenantFromPartition("tenant_acme")
	if !ok || id != "acme" {
		t.Errorf("TenantFromPartition = (%q, %v), want (acme, true)", id, ok)
	}

	if _, ok := TenantFromPartition("org_memories"); ok {
		t.Error("non-tenant partition should not be recognized")
	}
}

func TestKeyAlias(t *testing.T) {
	got := KeyAlias("Acme Inc")
	if got != "alias/tenant_acme_inc" {
		t.Errorf("KeyAlias = %q, want %q", got, "alias/tenant_acme_inc")
	}
}
