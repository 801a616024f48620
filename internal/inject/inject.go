// Package inject substitutes literal placeholder tokens in text templates.
//
// Every Rule names its replacement Mode explicitly. Substitution is a single
// left-to-right pass: replacement values are emitted verbatim and never
// rescanned, so a value that happens to contain a token is not expanded.
package inject

import "strings"

// Mode selects how many occurrences of a token a Rule replaces.
type Mode int

const (
	// All replaces every occurrence of the token.
	All Mode = iota
	// First replaces only the first occurrence; later ones are left as-is.
	// Use it for insertion points that are structurally unique.
	First
)

func (m Mode) String() string {
	switch m {
	case All:
		return "all"
	case First:
		return "first"
	default:
		return "unknown"
	}
}

// Rule maps a literal Token to its replacement Value.
type Rule struct {
	Token string
	Value string
	Mode  Mode
}

// ReplaceAll is shorthand for Rule{token, value, All}.
func ReplaceAll(token, value string) Rule {
	return Rule{Token: token, Value: value, Mode: All}
}

// ReplaceFirst is shorthand for Rule{token, value, First}.
func ReplaceFirst(token, value string) Rule {
	return Rule{Token: token, Value: value, Mode: First}
}

// Apply returns template with every rule applied.
//
// When several tokens match at the same position the longest wins; equal
// lengths go to the rule listed first. Rules with an empty Token are ignored
// and tokens absent from template leave it unchanged. Apply never reports
// leftover tokens; use Remaining for that.
func Apply(template string, rules ...Rule) string {
	active := make([]Rule, 0, len(rules))
	var lead [256]bool
	for _, r := range rules {
		if r.Token == "" {
			continue
		}
		active = append(active, r)
		lead[r.Token[0]] = true
	}
	if len(active) == 0 {
		return template
	}

	spent := make([]bool, len(active))
	var b strings.Builder
	b.Grow(len(template))

	plain := 0 // start of the pending unmatched run
	for i := 0; i < len(template); {
		if !lead[template[i]] {
			i++
			continue
		}
		best := -1
		for j, r := range active {
			if spent[j] || !strings.HasPrefix(template[i:], r.Token) {
				continue
			}
			if best < 0 || len(r.Token) > len(active[best].Token) {
				best = j
			}
		}
		if best < 0 {
			i++
			continue
		}
		b.WriteString(template[plain:i])
		b.WriteString(active[best].Value)
		if active[best].Mode == First {
			spent[best] = true
		}
		i += len(active[best].Token)
		plain = i
	}
	if plain == 0 {
		// nothing matched
		return template
	}
	b.WriteString(template[plain:])
	return b.String()
}

// Remaining returns the tokens that still occur in text, in argument order
// and without duplicates. Empty tokens are skipped.
func Remaining(text string, tokens ...string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if strings.Contains(text, tok) {
			out = append(out, tok)
		}
	}
	return out
}
