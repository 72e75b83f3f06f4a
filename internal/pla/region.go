package pla

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedRegion is returned for regions that cannot be parsed.
var ErrMalformedRegion = errors.New("pla: malformed region")

const (
	commentPrefix      = "//"
	continuationMarker = `\`
	inputPlane         = "01-"
	outputPlane        = "01-~"
)

// Row is one term row, kept exactly as written.
type Row struct {
	Text string
	// Line is the 1-based region line the row starts on.
	Line int
}

// Region is a parsed truth table.
type Region struct {
	Table Table
	Rows  []Row
}

type logicalLine struct {
	text string
	line int
}

// ParseRegion parses the raw lines found between the region markers.
func ParseRegion(lines []string) (*Region, error) {
	region := &Region{}
	var sawInputs, sawOutputs bool
	for _, ll := range logicalLines(lines) {
		fields := strings.Fields(ll.text)
		if len(fields) == 0 {
			continue
		}
		switch {
		case fields[0] == ".i":
			if sawInputs {
				return nil, malformed(ll.line, "duplicate .i directive")
			}
			signals, err := expandAll(fields[1:])
			if err != nil {
				return nil, malformed(ll.line, "%v", err)
			}
			region.Table.Inputs, sawInputs = signals, true
		case fields[0] == ".o":
			if sawOutputs {
				return nil, malformed(ll.line, "duplicate .o directive")
			}
			signals, err := expandAll(fields[1:])
			if err != nil {
				return nil, malformed(ll.line, "%v", err)
			}
			region.Table.Outputs, sawOutputs = signals, true
		case fields[0] == ".e", fields[0] == ".end":
		case isTermRow(ll.text):
			region.Rows = append(region.Rows, Row{Text: strings.TrimSpace(ll.text), Line: ll.line})
		}
	}
	if len(region.Table.Inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs declared (.i)", ErrMalformedRegion)
	}
	if len(region.Table.Outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs declared (.o)", ErrMalformedRegion)
	}
	if err := region.Table.checkUnique(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRegion, err)
	}
	for _, row := range region.Rows {
		if err := region.checkRow(row); err != nil {
			return nil, err
		}
	}
	return region, nil
}

// WritePLA writes the region as a Berkeley PLA minimization input.
func (r *Region) WritePLA(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, ".i %d\n", len(r.Table.Inputs))
	fmt.Fprintf(&b, ".o %d\n", len(r.Table.Outputs))
	fmt.Fprintf(&b, ".ilb %s\n", strings.Join(r.Table.InputNames(), " "))
	fmt.Fprintf(&b, ".ob %s\n", strings.Join(r.Table.OutputNames(), " "))
	fmt.Fprintf(&b, ".p %d\n", len(r.Rows))
	for _, row := range r.Rows {
		b.WriteString(row.Text)
		b.WriteByte('\n')
	}
	b.WriteString(".e\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Region) checkRow(row Row) error {
	cube := strings.Join(strings.Fields(row.Text), "")
	ni, no := len(r.Table.Inputs), len(r.Table.Outputs)
	if len(cube) != ni+no {
		return malformed(row.Line, "term row %q has %d columns, want %d inputs + %d outputs", row.Text, len(cube), ni, no)
	}
	if i := strings.IndexFunc(cube[:ni], notIn(inputPlane)); i >= 0 {
		return malformed(row.Line, "term row %q: input column %d must be one of %q", row.Text, i, inputPlane)
	}
	return nil
}

// logicalLines strips the comment prefix from every physical line and joins
// lines ending in the continuation marker with their successor.
func logicalLines(lines []string) []logicalLine {
	var out []logicalLine
	var pending strings.Builder
	start := 0
	for i, raw := range lines {
		text := stripComment(raw)
		if pending.Len() == 0 {
			start = i + 1
		}
		if strings.HasSuffix(text, continuationMarker) {
			pending.WriteString(strings.TrimSuffix(text, continuationMarker))
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(text)
		out = append(out, logicalLine{text: pending.String(), line: start})
		pending.Reset()
	}
	if pending.Len() > 0 {
		out = append(out, logicalLine{text: pending.String(), line: start})
	}
	return out
}

func stripComment(line string) string {
	text := strings.TrimSpace(line)
	text = strings.TrimPrefix(text, commentPrefix)
	return strings.TrimSpace(text)
}

func isTermRow(text string) bool {
	significant := false
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t':
		case strings.ContainsRune(outputPlane, r):
			significant = true
		default:
			return false
		}
	}
	return significant
}

func notIn(set string) func(rune) bool {
	return func(r rune) bool { return !strings.ContainsRune(set, r) }
}

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedRegion, line, fmt.Sprintf(format, args...))
}
