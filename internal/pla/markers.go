package pla

import "strings"

// Markers name the lines that open and close a region. A marker line is a
// comment whose first word is the marker; the begin marker may be followed by
// a label.
type Markers struct {
	Begin string
	End   string
}

// DefaultMarkers are used when no markers are configured.
var DefaultMarkers = Markers{Begin: "PLA_BEGIN", End: "PLA_END"}

// MatchBegin reports whether line opens a region and returns its label and indentation.
func (m Markers) MatchBegin(line string) (label, indent string, ok bool) {
	fields, ok := markerFields(line)
	if !ok || fields[0] != m.Begin {
		return "", "", false
	}
	indent = line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	return strings.Join(fields[1:], " "), indent, true
}

// MatchEnd reports whether line closes a region.
func (m Markers) MatchEnd(line string) bool {
	fields, ok := markerFields(line)
	return ok && fields[0] == m.End
}

func markerFields(line string) ([]string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, commentPrefix) {
		return nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(trimmed, commentPrefix))
	return fields, len(fields) > 0
}
