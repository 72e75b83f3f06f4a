package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigNotFound is returned when a descriptor or an include does not exist.
	ErrConfigNotFound = errors.New("project: config not found")
	// ErrConfigInvalid is returned when a descriptor cannot be parsed or lacks required keys.
	ErrConfigInvalid = errors.New("project: config invalid")
)

// maxIncludeDepth bounds include recursion so a cycle fails instead of
// recursing forever. Diamonds below the bound are still loaded twice.
const maxIncludeDepth = 64

// document mirrors the on-disk YAML keys.
type document struct {
	Top         string         `yaml:"top"`
	Sources     []string       `yaml:"sources"`
	Directories []string       `yaml:"directories"`
	Defines     map[string]any `yaml:"defines"`
	Flags       []string       `yaml:"flags"`
	Include     []string       `yaml:"include"`
	Merge       string         `yaml:"merge"`
}

// resolvedDocument is a document with its paths made absolute and its globs expanded.
type resolvedDocument struct {
	path        string
	top         string
	sources     []string
	directories []string
	defines     map[string]string
	flags       []string
	includes    []string
	merge       MergePolicy
}

// Option customizes Load.
type Option func(*loader)

// WithMergePolicy overrides the merge policy declared by the root document.
func WithMergePolicy(policy MergePolicy) Option {
	return func(l *loader) {
		l.policy = policy
	}
}

// WithDefines sets defines that take precedence over every document.
func WithDefines(defines map[string]string) Option {
	return func(l *loader) {
		for name, value := range defines {
			if l.defines == nil {
				l.defines = map[string]string{}
			}
			l.defines[name] = value
		}
	}
}

type loader struct {
	policy  MergePolicy
	defines map[string]string
}

// Load reads the descriptor at path, recursively merging its includes.
func Load(path string, opts ...Option) (Descriptor, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("project: resolve %s: %w", path, err)
	}

	b := newBuilder()
	for name, value := range l.defines {
		if name = strings.TrimSpace(name); name != "" {
			b.defines[name] = strings.TrimSpace(value)
		}
	}
	root, err := l.load(abs, "", 0, b)
	if err != nil {
		return Descriptor{}, err
	}

	policy := l.policy
	if policy == "" {
		policy = root.merge
	}
	if policy == "" {
		policy = MergeAppend
	}
	if !policy.valid() {
		return Descriptor{}, fmt.Errorf("%w: %s: merge must be %q or %q, got %q", ErrConfigInvalid, abs, MergeAppend, MergeDedup, policy)
	}

	d := b.build(policy)
	if err := validate(d); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, abs, err)
	}
	return d, nil
}

func (l *loader) load(path, includer string, depth int, b *builder) (resolvedDocument, error) {
	if depth > maxIncludeDepth {
		return resolvedDocument{}, fmt.Errorf("%w: %s: include depth exceeds %d (include cycle?)", ErrConfigInvalid, path, maxIncludeDepth)
	}
	doc, err := readDocument(path, includer)
	if err != nil {
		return resolvedDocument{}, err
	}
	if depth > 0 && doc.merge != "" {
		return resolvedDocument{}, fmt.Errorf("%w: %s: merge is only valid in the root document", ErrConfigInvalid, path)
	}
	b.add(doc)
	for _, inc := range doc.includes {
		if _, err := l.load(inc, path, depth+1, b); err != nil {
			return resolvedDocument{}, err
		}
	}
	return doc, nil
}

func readDocument(path, includer string) (resolvedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if includer != "" {
				return resolvedDocument{}, fmt.Errorf("%w: %s (included from %s)", ErrConfigNotFound, path, includer)
			}
			return resolvedDocument{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return resolvedDocument{}, fmt.Errorf("project: read %s: %w", path, err)
	}
	doc, err := parseDocument(data)
	if err != nil {
		return resolvedDocument{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}
	resolved, err := resolve(path, doc)
	if err != nil {
		return resolvedDocument{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}
	return resolved, nil
}

func parseDocument(data []byte) (document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return document{}, fmt.Errorf("document is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return document{}, fmt.Errorf("document is empty")
		}
		return document{}, fmt.Errorf("decode: %w", err)
	}
	if doc.Sources == nil {
		return document{}, fmt.Errorf("missing 'sources' section")
	}
	return doc, nil
}

func resolve(path string, doc document) (resolvedDocument, error) {
	base := filepath.Dir(path)
	out := resolvedDocument{
		path:    path,
		top:     resolvePath(base, doc.Top),
		flags:   trimAll(doc.Flags),
		merge:   MergePolicy(strings.ToLower(strings.TrimSpace(doc.Merge))),
		defines: make(map[string]string, len(doc.Defines)),
	}
	var result *multierror.Error
	var err error
	if out.sources, err = expand(base, doc.Sources, false); err != nil {
		result = multierror.Append(result, fmt.Errorf("sources: %w", err))
	}
	if out.directories, err = expand(base, doc.Directories, true); err != nil {
		result = multierror.Append(result, fmt.Errorf("directories: %w", err))
	}
	for i, inc := range doc.Include {
		p := resolvePath(base, inc)
		if p == "" {
			result = multierror.Append(result, fmt.Errorf("include[%d]: path is empty", i))
			continue
		}
		out.includes = append(out.includes, p)
	}
	for name, value := range doc.Defines {
		key := strings.TrimSpace(name)
		if key == "" {
			result = multierror.Append(result, fmt.Errorf("defines: empty name"))
			continue
		}
		out.defines[key] = defineValue(value)
	}
	return out, result.ErrorOrNil()
}

// expand resolves entries against base and expands glob patterns. A pattern
// matching nothing is an error; literal paths are not checked.
func expand(base string, entries []string, dirsOnly bool) ([]string, error) {
	var out []string
	var result *multierror.Error
	for i, entry := range entries {
		p := resolvePath(base, entry)
		if p == "" {
			result = multierror.Append(result, fmt.Errorf("[%d]: path is empty", i))
			continue
		}
		if !isPattern(p) {
			out = append(out, p)
			continue
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("[%d] %s: %w", i, entry, err))
			continue
		}
		matches = filterKind(matches, dirsOnly)
		if len(matches) == 0 {
			result = multierror.Append(result, fmt.Errorf("[%d] %s: pattern matched nothing", i, entry))
			continue
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, result.ErrorOrNil()
}

func filterKind(paths []string, dirsOnly bool) []string {
	out := paths[:0]
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() != dirsOnly {
			continue
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

func isPattern(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func defineValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		return fmt.Sprint(val)
	}
}

func validate(d Descriptor) error {
	var result *multierror.Error
	if d.top == "" {
		result = multierror.Append(result, fmt.Errorf("'top' is required"))
	}
	if len(d.sources) == 0 {
		result = multierror.Append(result, fmt.Errorf("'sources' must list at least one file"))
	}
	return result.ErrorOrNil()
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
