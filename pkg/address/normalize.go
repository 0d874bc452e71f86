// Package address holds per-provider-family address normalization
// strategies. They are used only for link-time identifier verification
// (matching a claimed phone number against a provider's number list, where
// formats drift). Contact unification deliberately does NOT use them:
// contact merging is exact-match only.
package address

import "strings"

// Normalizer canonicalizes provider-native addresses and produces the
// candidate spellings tried when matching against a provider's list
type Normalizer interface {
	Normalize(addr string) string
	Candidates(addr string) []string
}

// ForProvider picks the normalization strategy for a provider family
func ForProvider(provider string) Normalizer {
	switch provider {
	case "smsgate":
		return E164Normalizer{}
	case "mailbridge":
		return EmailNormalizer{}
	default:
		return PlainNormalizer{}
	}
}

// E164Normalizer handles phone numbers. Providers return the same number as
// "+15551234567", "1 (555) 123-4567", or "15551234567" depending on the
// endpoint, so matching tries a ladder of progressively stripped forms.
type E164Normalizer struct{}

func (E164Normalizer) Normalize(addr string) string {
	digits := stripNonDigits(addr)
	if digits == "" {
		return strings.TrimSpace(addr)
	}
	return "+" + digits
}

func (n E164Normalizer) Candidates(addr string) []string {
	trimmed := strings.TrimSpace(addr)
	digits := stripNonDigits(trimmed)

	candidates := []string{trimmed}
	if digits != "" {
		candidates = append(candidates, "+"+digits, digits)
		// US-style numbers are sometimes listed without the country code
		if strings.HasPrefix(digits, "1") && len(digits) == 11 {
			candidates = append(candidates, digits[1:], "+"+digits[1:])
		}
	}
	return dedup(candidates)
}

// EmailNormalizer lowercases and trims; no plus-suffix or dot folding, since
// those are host policies the provider does not report
type EmailNormalizer struct{}

func (EmailNormalizer) Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func (n EmailNormalizer) Candidates(addr string) []string {
	return dedup([]string{strings.TrimSpace(addr), n.Normalize(addr)})
}

// PlainNormalizer is the fallback for opaque platform user ids
type PlainNormalizer struct{}

func (PlainNormalizer) Normalize(addr string) string {
	return strings.TrimSpace(addr)
}

func (n PlainNormalizer) Candidates(addr string) []string {
	return []string{n.Normalize(addr)}
}

// Matches reports whether claimed refers to one of the provider-listed
// identifiers under the given normalizer
func Matches(n Normalizer, claimed string, available []string) bool {
	normalized := make(map[string]bool, len(available))
	for _, a := range available {
		normalized[n.Normalize(a)] = true
	}
	for _, cand := range n.Candidates(claimed) {
		if normalized[n.Normalize(cand)] {
			return true
		}
	}
	return false
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
