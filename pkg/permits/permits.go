// Package permits implements the identifier algebra of the WoTx2 permit
// ladder: parsing and validation of permit ids, level and parent derivation,
// and attestation thresholds.
//
// A permit id has the form PERMIT_<NAME>_X<n> for community (WoTx2) permits
// or PERMIT_<NAME>_V<n> for official ones. Progression beyond an obtained
// level always continues on the X ladder, so the next level of an official
// V1 permit is <base>_X2.
package permits

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Permit types as carried in definition content.
const (
	TypeOfficial = "official"
	TypeWotx2    = "wotx2"
)

// Attestation thresholds. Official permits may override theirs in the
// definition content; community permits always need exactly one.
const (
	DefaultOfficialThreshold  = 2
	DefaultCommunityThreshold = 1
)

var (
	idPattern    = regexp.MustCompile(`^PERMIT_[A-Z0-9_]+(_X\d+|_V\d+)$`)
	levelPattern = regexp.MustCompile(`_([XV])(\d+)$`)
	idCharFilter = regexp.MustCompile(`[^A-Z0-9_]`)
	foldMarks    = transform.Chain(
		norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC,
	)
)

// IsValidID reports whether s is a well-formed permit id.
func IsValidID(s string) bool { return idPattern.MatchString(s) }

// ExtractLevel returns the integer after the _X or _V suffix, or 1 when the
// id carries no level suffix.
func ExtractLevel(s string) int {
	m := levelPattern.FindStringSubmatch(s)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ExtractBase returns the id without its level suffix.
func ExtractBase(s string) string {
	if loc := levelPattern.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}

// NextLevelID returns the id one level above s. Progression is always on the
// community X ladder, even when s is an official V permit.
func NextLevelID(s string) string {
	return fmt.Sprintf("%s_X%d", ExtractBase(s), ExtractLevel(s)+1)
}

// ParentID returns the id one level below s on the X ladder, or the empty
// string for level 1 ids, which have no parent.
func ParentID(s string) string {
	level := ExtractLevel(s)
	if level <= 1 {
		return ""
	}
	return fmt.Sprintf("%s_X%d", ExtractBase(s), level-1)
}

// Type classifies a permit id by its level suffix.
func Type(s string) string {
	m := levelPattern.FindStringSubmatch(s)
	if m != nil && m[1] == "V" {
		return TypeOfficial
	}
	return TypeWotx2
}

// RequiredAttestations returns the attestation threshold for a permit.
// defRequired is the required_attestations value from the permit definition
// content, zero when absent; it only applies to official permits.
func RequiredAttestations(id string, defRequired int) int {
	if Type(id) == TypeOfficial {
		if defRequired > 0 {
			return defRequired
		}
		return DefaultOfficialThreshold
	}
	return DefaultCommunityThreshold
}

// GenerateID derives a permit id from a human name. Diacritics are folded
// away so "Maraîchage" becomes PERMIT_MARAICHAGE_X1.
func GenerateID(name string, level int, official bool) string {
	s := name
	if out, _, err := transform.String(foldMarks, s); err == nil {
		s = out
	}
	s = strings.ToUpper(s)
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	s = idCharFilter.ReplaceAllString(s, "")
	ladder := "X"
	if official {
		ladder = "V"
	}
	if level < 1 {
		level = 1
	}
	return fmt.Sprintf("PERMIT_%s_%s%d", s, ladder, level)
}

// DisplayName renders a permit id for humans: "Maraichage Bio (level X2)".
func DisplayName(id string) string {
	base := strings.TrimPrefix(ExtractBase(id), "PERMIT_")
	ladder := "X"
	if Type(id) == TypeOfficial {
		ladder = "V"
	}
	return fmt.Sprintf(
		"%s (level %s%d)", titleWords(base), ladder, ExtractLevel(id),
	)
}

// titleWords turns MARAICHAGE_BIO into "Maraichage Bio".
func titleWords(s string) string {
	words := strings.Split(strings.ToLower(strings.ReplaceAll(s, "_", " ")), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
