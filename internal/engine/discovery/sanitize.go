package discovery

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rendis/gridrank/internal/engine/geo"
	"github.com/rendis/gridrank/internal/model"
)

// sameListingKm is how close a same-name listing must be to the target to be
// treated as the target's own listing.
const sameListingKm = 0.1

// Sanitize filters discovered competitors into valid scan candidates: entries
// without an id, name or valid location are dropped, as are the target itself
// (by id, by normalized name and address, or by normalized name within
// sameListingKm of the target), duplicate ids and anything past limit.
// limit <= 0 means no cap.
func Sanitize(target model.Business, competitors []model.Business, limit int) []model.Business {
	targetKey := identityKey(target)
	targetName := Normalize(target.Name)
	seen := map[string]struct{}{target.ID: {}}

	out := make([]model.Business, 0, len(competitors))
	for _, c := range competitors {
		if limit > 0 && len(out) >= limit {
			break
		}
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		if c.ID == "" || c.Name == "" || !c.Location.Valid() {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		if targetKey != "" && identityKey(c) == targetKey {
			continue
		}
		if isOwnListing(target, targetName, c) {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func isOwnListing(target model.Business, targetName string, c model.Business) bool {
	if targetName == "" || !target.Location.Valid() {
		return false
	}
	return Normalize(c.Name) == targetName && geo.DistanceKm(target.Location, c.Location) < sameListingKm
}

func identityKey(b model.Business) string {
	name := Normalize(b.Name)
	if name == "" {
		return ""
	}
	return name + "|" + Normalize(b.Address)
}

// Normalize lowercases s, strips diacritics and collapses whitespace, so
// "Café  Nuñez" and "cafe nunez" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		result = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(result), " ")
}
