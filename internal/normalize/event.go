package normalize

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

// teamAliases folds common short forms used by the soft book onto the full
// names the sharp feed carries. Keys and values are already cleaned.
var teamAliases = map[string]string{
	"man utd":    "manchester united",
	"man united": "manchester united",
	"man city":   "manchester city",
	"psg":        "paris saint germain",
	"wolves":     "wolverhampton wanderers",
	"spurs":      "tottenham hotspur",
	"inter":      "inter milan",
	"atletico":   "atletico madrid",
	"leeds":      "leeds united",
	"newcastle":  "newcastle united",
}

// noiseTokens are qualifiers that appear inconsistently between feeds and
// carry no identity.
var noiseTokens = map[string]struct{}{
	"fc": {}, "cf": {}, "sc": {}, "ac": {}, "afc": {}, "cd": {}, "if": {},
	"bk": {}, "fk": {}, "sk": {}, "club": {}, "de": {}, "the": {},
	"women": {}, "w": {}, "u19": {}, "u21": {}, "u23": {}, "reserves": {}, "ii": {},
}

// CleanTeam lowercases a team name, strips punctuation and noise tokens, and
// resolves known aliases.
func CleanTeam(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if _, noise := noiseTokens[f]; !noise {
			kept = append(kept, f)
		}
	}
	cleaned := strings.Join(kept, " ")
	if full, ok := teamAliases[cleaned]; ok {
		return full
	}
	return cleaned
}

// EventKey derives the canonical event identity both feeds converge on. Start
// times are rounded to the nearest hour because the feeds disagree by a few
// minutes on the same fixture, including across an hour boundary (19:59 vs
// 20:01).
func EventKey(sport, home, away string, start time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s",
		ParseSport(sport), CleanTeam(home), CleanTeam(away),
		start.UTC().Round(time.Hour).Format("2006-01-02T15"))
}

// DefaultTeamThreshold is the token-sort similarity two differently spelled
// team names must reach to count as the same side.
const DefaultTeamThreshold = 85

// TeamsMatch reports whether two team names refer to the same side, using a
// token sort ratio with the given threshold (0..100). Exact cleaned equality
// short-circuits.
func TeamsMatch(a, b string, threshold int) bool {
	ca, cb := CleanTeam(a), CleanTeam(b)
	if ca == cb {
		return true
	}
	return TokenSortRatio(ca, cb) >= threshold
}

// TokenSortRatio is a similarity score in 0..100 computed over the
// space-sorted tokens of both strings. 100 means identical token multisets.
func TokenSortRatio(a, b string) int {
	sa, sb := sortTokens(a), sortTokens(b)
	if sa == sb {
		return 100
	}
	longest := len(sa)
	if len(sb) > longest {
		longest = len(sb)
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein(sa, sb)
	return (longest - d) * 100 / longest
}

func sortTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
