package pla

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrOptimizationFailed is returned when the optimizer fails or its output cannot be used.
var ErrOptimizationFailed = errors.New("pla: optimization failed")

// Term is one product term of an optimized cover.
type Term struct {
	In  string
	Out string
}

// Cover is the optimizer's result, over flattened signal names.
type Cover struct {
	NumInputs    int
	NumOutputs   int
	InputLabels  []string
	OutputLabels []string
	Terms        []Term
}

// ParseOptimized reads a PLA cover as written by the optimizer.
func ParseOptimized(r io.Reader) (*Cover, error) {
	cover := &Cover{NumInputs: -1, NumOutputs: -1}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	type rawTerm struct {
		text string
		line int
	}
	var pending []rawTerm
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], ".") {
			done, err := cover.directive(fields, lineNo)
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
			continue
		}
		pending = append(pending, rawTerm{text: strings.Join(fields, " "), line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read cover: %v", ErrOptimizationFailed, err)
	}
	if cover.NumInputs < 0 && cover.InputLabels != nil {
		cover.NumInputs = len(cover.InputLabels)
	}
	if cover.NumOutputs < 0 && cover.OutputLabels != nil {
		cover.NumOutputs = len(cover.OutputLabels)
	}
	if cover.NumInputs < 0 || cover.NumOutputs < 0 {
		return nil, fmt.Errorf("%w: cover is missing .i/.o", ErrOptimizationFailed)
	}
	if cover.InputLabels != nil && len(cover.InputLabels) != cover.NumInputs {
		return nil, fmt.Errorf("%w: .ilb lists %d names for %d inputs", ErrOptimizationFailed, len(cover.InputLabels), cover.NumInputs)
	}
	if cover.OutputLabels != nil && len(cover.OutputLabels) != cover.NumOutputs {
		return nil, fmt.Errorf("%w: .ob lists %d names for %d outputs", ErrOptimizationFailed, len(cover.OutputLabels), cover.NumOutputs)
	}
	for _, p := range pending {
		term, err := cover.parseTerm(p.text, p.line)
		if err != nil {
			return nil, err
		}
		cover.Terms = append(cover.Terms, term)
	}
	return cover, nil
}

func (c *Cover) directive(fields []string, line int) (bool, error) {
	switch fields[0] {
	case ".i", ".o":
		if len(fields) != 2 {
			return false, fmt.Errorf("%w: line %d: %s needs one count", ErrOptimizationFailed, line, fields[0])
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return false, fmt.Errorf("%w: line %d: invalid count %q", ErrOptimizationFailed, line, fields[1])
		}
		if fields[0] == ".i" {
			c.NumInputs = n
		} else {
			c.NumOutputs = n
		}
	case ".ilb":
		c.InputLabels = append([]string{}, fields[1:]...)
	case ".ob":
		c.OutputLabels = append([]string{}, fields[1:]...)
	case ".e", ".end":
		return true, nil
	}
	return false, nil
}

func (c *Cover) parseTerm(text string, line int) (Term, error) {
	fields := strings.Fields(text)
	var in, out string
	switch len(fields) {
	case 1:
		if len(fields[0]) != c.NumInputs+c.NumOutputs {
			return Term{}, fmt.Errorf("%w: line %d: term %q has wrong width", ErrOptimizationFailed, line, text)
		}
		in, out = fields[0][:c.NumInputs], fields[0][c.NumInputs:]
	case 2:
		in, out = fields[0], fields[1]
	default:
		return Term{}, fmt.Errorf("%w: line %d: unexpected term %q", ErrOptimizationFailed, line, text)
	}
	if len(in) != c.NumInputs || len(out) != c.NumOutputs {
		return Term{}, fmt.Errorf("%w: line %d: term %q does not match .i %d .o %d", ErrOptimizationFailed, line, text, c.NumInputs, c.NumOutputs)
	}
	if strings.IndexFunc(in, notIn(inputPlane)) >= 0 || strings.IndexFunc(out, notIn(outputPlane)) >= 0 {
		return Term{}, fmt.Errorf("%w: line %d: term %q has invalid characters", ErrOptimizationFailed, line, text)
	}
	return Term{In: in, Out: out}, nil
}

// Emit maps the cover back to the region's declared names and returns one
// continuous assignment per declared output, in declaration order. Each line
// is prefixed with indent.
func (r *Region) Emit(cover *Cover, label, indent string) ([]string, error) {
	inCols, err := columns(r.Table.Inputs, cover.InputLabels, cover.NumInputs, "input")
	if err != nil {
		return nil, err
	}
	outCols, err := columns(r.Table.Outputs, cover.OutputLabels, cover.NumOutputs, "output")
	if err != nil {
		return nil, err
	}

	header := fmt.Sprintf("// pla %s: %d inputs, %d outputs, %d terms",
		labelOrDefault(label), len(r.Table.Inputs), len(r.Table.Outputs), len(cover.Terms))
	lines := []string{indent + header}
	for i, out := range r.Table.Outputs {
		col := outCols[i]
		var products []string
		constantOne := false
		if col >= 0 {
			for _, term := range cover.Terms {
				if term.Out[col] != '1' {
					continue
				}
				product := r.product(term, inCols)
				if product == "" {
					constantOne = true
					break
				}
				products = append(products, product)
			}
		}
		expr := "1'b0"
		switch {
		case constantOne:
			expr = "1'b1"
		case len(products) > 0:
			expr = strings.Join(products, " | ")
		}
		lines = append(lines, fmt.Sprintf("%sassign %s = %s;", indent, out.Display, expr))
	}
	return lines, nil
}

// product renders the AND of a term's literals in declaration order. An
// empty result means the term covers every input combination.
func (r *Region) product(term Term, inCols []int) string {
	var literals []string
	for i, sig := range r.Table.Inputs {
		col := inCols[i]
		if col < 0 {
			continue
		}
		switch term.In[col] {
		case '1':
			literals = append(literals, sig.Display)
		case '0':
			literals = append(literals, "~"+sig.Display)
		}
	}
	switch len(literals) {
	case 0:
		return ""
	case 1:
		return literals[0]
	default:
		return "(" + strings.Join(literals, " & ") + ")"
	}
}

// columns maps each declared signal to its column in the cover, or -1 when the
// optimizer dropped it. Without labels the cover must match declaration order.
func columns(signals []Signal, labels []string, n int, kind string) ([]int, error) {
	cols := make([]int, len(signals))
	if labels == nil {
		if n != len(signals) {
			return nil, fmt.Errorf("%w: cover has %d %ss, region declares %d", ErrOptimizationFailed, n, kind, len(signals))
		}
		for i := range cols {
			cols[i] = i
		}
		return cols, nil
	}
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	known := make(map[string]struct{}, len(signals))
	for i, s := range signals {
		known[s.Internal] = struct{}{}
		if col, ok := index[s.Internal]; ok {
			cols[i] = col
		} else {
			cols[i] = -1
		}
	}
	for _, l := range labels {
		if _, ok := known[l]; !ok {
			return nil, fmt.Errorf("%w: cover names unknown %s %q", ErrOptimizationFailed, kind, l)
		}
	}
	return cols, nil
}

func labelOrDefault(label string) string {
	if strings.TrimSpace(label) == "" {
		return "region"
	}
	return label
}
