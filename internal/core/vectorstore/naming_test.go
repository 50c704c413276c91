package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeCompanyID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"acme", "acme"},
		{"Urban Piper", "Urban_Piper"},
		{"urban-piper", "urban_piper"},
		{"acme.io", "acme.io"},
		{"..acme..", "acme"},
		{"a", "company_a"},
		{"", "company_"},
		{"!!!", "company_"},
		{"weird/../path", "weird..path"},
		{"tab\tchars here", "tabchars_here"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SanitizeCompanyID(c.in), c.in)
	}
}

// Sanitization must be total: non-empty, length >= 3, permitted charset only.
func TestSanitizeCompanyIDTotal(t *testing.T) {
	inputs := []string{
		"", " ", "-", "_", ".", "../../etc/passwd", "名前", "🙂🙂🙂",
		"a b-c.d", "UPPER lower 123", string(rune(0)),
	}
	for _, in := range inputs {
		got := SanitizeCompanyID(in)
		assert.GreaterOrEqual(t, len(got), 3, "input %q", in)
		for _, r := range got {
			ok := r == '.' || r == '_' ||
				(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			assert.True(t, ok, "input %q produced %q", in, got)
		}
		// Deterministic.
		assert.Equal(t, got, SanitizeCompanyID(in))
	}
}

func TestCompanyCollection(t *testing.T) {
	assert.Equal(t, "company_acme", CompanyCollection("acme"))
	assert.Equal(t, "company_Urban_Piper", CompanyCollection("Urban Piper"))
}

func TestFileCollection(t *testing.T) {
	name := FileCollection("acme", "123e4567-e89b-12d3-a456-426614174000")
	assert.Equal(t, "company_acme_file_123e4567", name)

	// Short ids pass through intact.
	assert.Equal(t, "company_acme_file_ab", FileCollection("acme", "ab"))
}
