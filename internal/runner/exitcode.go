package runner

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Result is the verdict for a finished script.
type Result string

const (
	Success  Result = "success"
	Unstable Result = "unstable"
	Failure  Result = "failure"
)

// Mode selects how a Rule compares an exit code with its range.
type Mode string

const (
	ModeNone        Mode = "none"
	ModeLessThan    Mode = "less-than"
	ModeGreaterThan Mode = "greater-than"
	ModeExactly     Mode = "exactly"
	ModeNonZero     Mode = "non-zero"
	ModeCustom      Mode = "custom"
)

// Modes lists every mode in flag-help order.
var Modes = []Mode{ModeNone, ModeLessThan, ModeGreaterThan, ModeExactly, ModeNonZero, ModeCustom}

// ParseMode accepts a mode name in any case, with '-' or '_' separators. Empty means none.
func ParseMode(s string) (Mode, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if norm == "" {
		return ModeNone, nil
	}
	for _, m := range Modes {
		if string(m) == norm || strings.ReplaceAll(string(m), "-", "") == norm {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (want one of %s)", s, joinModes())
}

func joinModes() string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return strings.Join(names, "|")
}

// Rule matches exit codes. Range is ignored by none and non-zero, is one integer for
// less-than, greater-than and exactly, and for custom is a comma separated list of
// codes and inclusive "low>high" spans, e.g. "1,3>5". Whitespace is ignored.
type Rule struct {
	Mode  Mode
	Range string
}

type span struct{ lo, hi int }

// Validate reports a range the mode cannot use.
func (r Rule) Validate() error {
	_, err := r.compile()
	return err
}

// Matches reports whether code falls inside the rule.
func (r Rule) Matches(code int) (bool, error) {
	m, err := r.compile()
	if err != nil {
		return false, err
	}
	return m(code), nil
}

func (r Rule) compile() (func(int) bool, error) {
	rng := stripSpace(r.Range)
	switch r.Mode {
	case "", ModeNone:
		return func(int) bool { return false }, nil
	case ModeNonZero:
		return func(code int) bool { return code != 0 }, nil
	case ModeLessThan, ModeGreaterThan, ModeExactly:
		v, err := strconv.Atoi(rng)
		if err != nil {
			return nil, fmt.Errorf("%s: range %q is not an integer", r.Mode, r.Range)
		}
		switch r.Mode {
		case ModeLessThan:
			return func(code int) bool { return code < v }, nil
		case ModeGreaterThan:
			return func(code int) bool { return code > v }, nil
		default:
			return func(code int) bool { return code == v }, nil
		}
	case ModeCustom:
		spans, err := parseSpans(rng)
		if err != nil {
			return nil, fmt.Errorf("custom: %w", err)
		}
		return func(code int) bool {
			for _, s := range spans {
				if code >= s.lo && code <= s.hi {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", r.Mode)
	}
}

func parseSpans(rng string) ([]span, error) {
	var out []span
	for _, part := range strings.Split(rng, ",") {
		lo, hi, isSpan := strings.Cut(part, ">")
		l, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("bad code %q in %q", lo, rng)
		}
		h := l
		if isSpan {
			if h, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("bad code %q in %q", hi, rng)
			}
		}
		out = append(out, span{lo: l, hi: h})
	}
	return out, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Classify maps an exit code to a Result. The failure rule is checked first, so a code
// matching both rules is a failure.
func Classify(code int, failure, unstable Rule) (Result, error) {
	failed, err := failure.Matches(code)
	if err != nil {
		return "", fmt.Errorf("failure rule: %w", err)
	}
	if failed {
		return Failure, nil
	}
	shaky, err := unstable.Matches(code)
	if err != nil {
		return "", fmt.Errorf("unstable rule: %w", err)
	}
	if shaky {
		return Unstable, nil
	}
	return Success, nil
}
