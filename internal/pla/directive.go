package pla

import (
	"fmt"
	"regexp"
	"strconv"
)

// Signal is one entry of a directive table: the name as written in the
// hardware description and the flattened name handed to the optimizer.
type Signal struct {
	Display  string
	Internal string
}

// Table holds the expanded input and output directives of a region.
type Table struct {
	Inputs  []Signal
	Outputs []Signal
}

// maxRangeWidth caps a single bit range so a typo cannot allocate millions of signals.
const maxRangeWidth = 4096

var tokenPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_$]*)(?:\[(\d+)(?::(\d+))?\])?$`)

// ExpandToken expands one directive token. A bare name maps to itself; name[i]
// maps to name_i; name[l:r] yields one signal per bit from l to r inclusive,
// so the conventional name[msb:lsb] is highest bit first.
func ExpandToken(token string) ([]Signal, error) {
	m := tokenPattern.FindStringSubmatch(token)
	if m == nil {
		return nil, fmt.Errorf("invalid signal %q", token)
	}
	name := m[1]
	if m[2] == "" {
		return []Signal{{Display: name, Internal: name}}, nil
	}
	left, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("invalid index in %q: %w", token, err)
	}
	right := left
	if m[3] != "" {
		if right, err = strconv.Atoi(m[3]); err != nil {
			return nil, fmt.Errorf("invalid index in %q: %w", token, err)
		}
	}
	step := -1
	if right > left {
		step = 1
	}
	width := (right-left)*step + 1
	if width > maxRangeWidth {
		return nil, fmt.Errorf("range %q is wider than %d bits", token, maxRangeWidth)
	}
	out := make([]Signal, 0, width)
	for i := left; ; i += step {
		out = append(out, Signal{
			Display:  fmt.Sprintf("%s[%d]", name, i),
			Internal: fmt.Sprintf("%s_%d", name, i),
		})
		if i == right {
			break
		}
	}
	return out, nil
}

// expandAll expands every token of a directive line in order.
func expandAll(tokens []string) ([]Signal, error) {
	var out []Signal
	for _, tok := range tokens {
		signals, err := ExpandToken(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, signals...)
	}
	return out, nil
}

// InputNames returns the internal input names in table order.
func (t Table) InputNames() []string { return internalNames(t.Inputs) }

// OutputNames returns the internal output names in table order.
func (t Table) OutputNames() []string { return internalNames(t.Outputs) }

func (t Table) checkUnique() error {
	seen := map[string]string{}
	for _, group := range [][]Signal{t.Inputs, t.Outputs} {
		for _, s := range group {
			if prev, ok := seen[s.Internal]; ok {
				return fmt.Errorf("signal %s collides with %s (both flatten to %s)", s.Display, prev, s.Internal)
			}
			seen[s.Internal] = s.Display
		}
	}
	return nil
}

func internalNames(signals []Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.Internal
	}
	return out
}
