package similarity

import "strings"

// NormalizeDocument canonicalizes a CPF/CNPJ string for equality comparison:
// whitespace is trimmed, letters are uppercased, and formatting punctuation
// (dots, dashes, slashes) is stripped.  Leading zeros are kept — CPF/CNPJ
// are fixed-width identifiers and stripping zeros would merge distinct
// holders.
func NormalizeDocument(doc string) string {
	var sb strings.Builder
	sb.Grow(len(doc))
	for _, r := range strings.ToUpper(strings.TrimSpace(doc)) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// DocumentsMatch reports whether two CPF/CNPJ strings identify the same
// holder after normalization.  Two empty documents do not match: a missing
// identifier is unknown ownership, not shared ownership.
func DocumentsMatch(a, b string) bool {
	na, nb := NormalizeDocument(a), NormalizeDocument(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

// OwnershipLabelFor maps a match result to the categorical label stored in
// the relation.
func OwnershipLabelFor(match bool) string {
	if match {
		return OwnershipEqual
	}
	return OwnershipDifferent
}

// TruthyFlag reports whether a raw ownership flag column value is truthy.
// The source dataset encodes the flag variously as "true"/"false", "1"/"0"
// or "t"/"f".
func TruthyFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "t":
		return true
	default:
		return false
	}
}
