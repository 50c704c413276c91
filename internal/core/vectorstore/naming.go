package vectorstore

import "strings"

// collectionPrefix namespaces all collections owned by this service inside
// a shared index provider.
const collectionPrefix = "company_"

// SanitizeCompanyID derives a valid index identifier from an arbitrary
// company id. Spaces and hyphens become underscores, everything outside
// [alphanumeric . _] is stripped, leading/trailing separators are trimmed,
// and short results are padded so the name stays collision-resistant and
// at least 3 characters long. Deterministic and total: any input yields a
// usable name.
func SanitizeCompanyID(companyID string) string {
	s := strings.ReplaceAll(companyID, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_':
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) < 3 {
		out = "company_" + out
	}
	return out
}

// CompanyCollection returns the company-level collection name.
func CompanyCollection(companyID string) string {
	return collectionPrefix + SanitizeCompanyID(companyID)
}

// FileCollection returns the file-level collection name for targeted
// single-document querying. The file id is shortened to its first eight
// characters with dashes removed, matching uuid-style ids.
func FileCollection(companyID, fileID string) string {
	short := strings.ReplaceAll(fileID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return collectionPrefix + SanitizeCompanyID(companyID) + "_file_" + short
}
