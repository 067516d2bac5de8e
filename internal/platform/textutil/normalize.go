package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// stripMarks removes diacritics after canonical decomposition so that
// "Château" and "Chateau" produce the same slug and search key.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug converts a display name into a URL-safe identifier segment.
// Runs of non-alphanumeric characters collapse into single hyphens.
func Slug(value string) string {
	folded := foldCaser.String(strings.TrimSpace(value))
	ascii, _, err := transform.String(stripMarks, folded)
	if err != nil {
		ascii = folded
	}

	var b strings.Builder
	b.Grow(len(ascii))
	lastHyphen := true
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// SearchKey produces a case-folded, accent-stripped token for prefix matching
// in catalog queries.
func SearchKey(value string) string {
	folded := foldCaser.String(strings.TrimSpace(value))
	ascii, _, err := transform.String(stripMarks, folded)
	if err != nil {
		ascii = folded
	}
	return strings.Join(strings.Fields(ascii), " ")
}

// ParseLanguageTag validates and canonicalises a BCP 47 language tag.
func ParseLanguageTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", nil
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// NormalizeStringMap trims keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
