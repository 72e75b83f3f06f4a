package project

import (
	"path/filepath"
	"sort"
	"strings"
)

// MergePolicy selects how list entries from included documents combine.
type MergePolicy string

const (
	// MergeAppend keeps every entry, duplicates included.
	MergeAppend MergePolicy = "append"
	// MergeDedup keeps the first occurrence of each entry.
	MergeDedup MergePolicy = "dedup"
)

func (p MergePolicy) valid() bool {
	return p == MergeAppend || p == MergeDedup
}

// Descriptor is the merged project configuration. It is read-only; accessors
// return copies.
type Descriptor struct {
	top         string
	sources     []string
	directories []string
	defines     map[string]string
	flags       []string
	files       []string
	policy      MergePolicy
}

// Top returns the resolved path of the top-level source file.
func (d Descriptor) Top() string { return d.top }

// TopModule returns the top module name: the top file's basename without extension.
func (d Descriptor) TopModule() string {
	base := filepath.Base(d.top)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Sources returns the ordered source paths.
func (d Descriptor) Sources() []string { return append([]string(nil), d.sources...) }

// Directories returns the include directories.
func (d Descriptor) Directories() []string { return append([]string(nil), d.directories...) }

// Flags returns the opaque compiler flags.
func (d Descriptor) Flags() []string { return append([]string(nil), d.flags...) }

// Defines returns a copy of the preprocessor defines.
func (d Descriptor) Defines() map[string]string {
	out := make(map[string]string, len(d.defines))
	for k, v := range d.defines {
		out[k] = v
	}
	return out
}

// DefineNames returns the define names in sorted order.
func (d Descriptor) DefineNames() []string {
	names := make([]string, 0, len(d.defines))
	for name := range d.defines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files lists every configuration document read, in load order.
func (d Descriptor) Files() []string { return append([]string(nil), d.files...) }

// Policy reports the merge policy the descriptor was built with.
func (d Descriptor) Policy() MergePolicy { return d.policy }

// builder accumulates documents during a load. Nothing it holds is shared
// with the decoded documents.
type builder struct {
	top         string
	sources     []string
	directories []string
	defines     map[string]string
	flags       []string
	files       []string
}

func newBuilder() *builder {
	return &builder{defines: map[string]string{}}
}

func (b *builder) add(doc resolvedDocument) {
	b.files = append(b.files, doc.path)
	if b.top == "" {
		b.top = doc.top
	}
	b.sources = append(b.sources, doc.sources...)
	b.directories = append(b.directories, doc.directories...)
	b.flags = append(b.flags, doc.flags...)
	for name, value := range doc.defines {
		if _, ok := b.defines[name]; !ok {
			b.defines[name] = value
		}
	}
}

func (b *builder) build(policy MergePolicy) Descriptor {
	d := Descriptor{
		top:         b.top,
		sources:     append([]string(nil), b.sources...),
		directories: append([]string(nil), b.directories...),
		flags:       append([]string(nil), b.flags...),
		defines:     make(map[string]string, len(b.defines)),
		files:       append([]string(nil), b.files...),
		policy:      policy,
	}
	for k, v := range b.defines {
		d.defines[k] = v
	}
	if policy == MergeDedup {
		d.sources = dedup(d.sources)
		d.directories = dedup(d.directories)
		d.flags = dedup(d.flags)
	}
	return d
}

func dedup(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
