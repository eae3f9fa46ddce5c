package notation

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAction translates one observed action into the edge vocabulary.
// Both the long labels ("check", "bet_33", "raise_100", "allin") and the
// shorthand ("x", "c", "f", "b33", "r100", "ai") are accepted. Sizes are
// pot percentages; "b0.33" style fractions are converted.
func ParseAction(token string) (Action, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	switch t {
	case "":
		return Action{}, fmt.Errorf("empty action")
	case "x", "k", "check":
		return Action{Type: Check}, nil
	case "c", "call":
		return Action{Type: Call}, nil
	case "f", "fold":
		return Action{Type: Fold}, nil
	case "ai", "allin", "all-in", "jam", "shove":
		return Action{Type: AllIn}, nil
	}

	var typ ActionType
	var rest string
	switch {
	case strings.HasPrefix(t, "bet_"):
		typ, rest = Bet, t[4:]
	case strings.HasPrefix(t, "raise_"):
		typ, rest = Raise, t[6:]
	case strings.HasPrefix(t, "b"):
		typ, rest = Bet, t[1:]
	case strings.HasPrefix(t, "r"):
		typ, rest = Raise, t[1:]
	default:
		return Action{}, fmt.Errorf("unknown action %q", token)
	}

	size, err := parseSize(rest)
	if err != nil {
		return Action{}, fmt.Errorf("invalid size in action %q: %w", token, err)
	}
	return Action{Type: typ, Size: size}, nil
}

// parseSize reads a pot percentage ("33") or a pot fraction ("0.33")
func parseSize(s string) (int, error) {
	s = strings.TrimSuffix(s, "%")
	if s == "" {
		return 0, fmt.Errorf("missing size")
	}
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		if f <= 0 {
			return 0, fmt.Errorf("size must be positive, got %s", s)
		}
		return SizeClass(f), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("size must be positive, got %d", n)
	}
	return n, nil
}

// ParseActionPath splits a raw action history ("x,b33,c" or
// "check bet_33 call") into edge labels. Card tokens marking a new street
// ("Kh") are passed through unchanged.
func ParseActionPath(raw string) ([]string, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '/' || r == '|'
	})

	labels := make([]string, 0, len(fields))
	for i, f := range fields {
		if isCardToken(f) {
			labels = append(labels, f[:1]+strings.ToLower(f[1:]))
			continue
		}
		a, err := ParseAction(f)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		labels = append(labels, a.Label())
	}
	return labels, nil
}

// isCardToken checks if a token looks like a single card ("Kh", "2c")
func isCardToken(s string) bool {
	if len(s) != 2 {
		return false
	}
	return strings.ContainsRune("AKQJT98765432", rune(s[0])) &&
		strings.ContainsRune("shdc", rune(s[1]|0x20))
}
