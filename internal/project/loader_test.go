package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(body)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSingleDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "project.yaml", `
top: cpu.sv
sources:
  - a.sv
  - b.sv
`)
	d, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{filepath.Join(dir, "a.sv"), filepath.Join(dir, "b.sv")}
	if diff := cmp.Diff(want, d.Sources()); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
	if d.TopModule() != "cpu" {
		t.Fatalf("top module = %q, want cpu", d.TopModule())
	}
	if d.Policy() != MergeAppend {
		t.Fatalf("policy = %s, want append", d.Policy())
	}
}

func TestLoadMergesIncludesInDeclaredOrder(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "c.yaml", `
sources: [c.sv]
directories: [inc_c]
flags: [-Wc]
`)
	writeDoc(t, dir, "b.yaml", `
sources: [b.sv]
flags: [-Wb]
include: [c.yaml]
`)
	writeDoc(t, dir, "d.yaml", `
sources: [d.sv]
`)
	root := writeDoc(t, dir, "root.yaml", `
top: top.sv
sources: [root.sv]
directories: [inc_root]
flags: [-Wroot]
include: [b.yaml, d.yaml]
`)
	d, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	abs := func(names ...string) []string {
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = filepath.Join(dir, n)
		}
		return out
	}
	if diff := cmp.Diff(abs("root.sv", "b.sv", "c.sv", "d.sv"), d.Sources()); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(abs("inc_root", "inc_c"), d.Directories()); diff != "" {
		t.Fatalf("directories mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-Wroot", "-Wb", "-Wc"}, d.Flags()); diff != "" {
		t.Fatalf("flags mismatch (-want +got):\n%s", diff)
	}
	if len(d.Files()) != 4 {
		t.Fatalf("files = %v, want 4 documents", d.Files())
	}
}

func TestLoadDiamondIncludeKeepsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "common.yaml", `sources: [common.sv]`)
	writeDoc(t, dir, "left.yaml", `
sources: [left.sv]
include: [common.yaml]
`)
	writeDoc(t, dir, "right.yaml", `
sources: [right.sv]
include: [common.yaml]
`)
	root := writeDoc(t, dir, "root.yaml", `
top: top.sv
sources: []
include: [left.yaml, right.yaml]
`)
	d, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := make([]string, 0, len(d.Sources()))
	for _, s := range d.Sources() {
		got = append(got, filepath.Base(s))
	}
	want := []string{"left.sv", "common.sv", "right.sv", "common.sv"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDedupPolicy(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "common.yaml", `
sources: [common.sv]
flags: [-Wall]
`)
	root := writeDoc(t, dir, "root.yaml", `
top: top.sv
merge: dedup
sources: [common.sv, top.sv]
flags: [-Wall]
include: [common.yaml, common.yaml]
`)
	d, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{filepath.Join(dir, "common.sv"), filepath.Join(dir, "top.sv")}
	if diff := cmp.Diff(want, d.Sources()); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-Wall"}, d.Flags()); diff != "" {
		t.Fatalf("flags mismatch (-want +got):\n%s", diff)
	}

	appended, err := Load(root, WithMergePolicy(MergeAppend))
	if err != nil {
		t.Fatalf("load with override: %v", err)
	}
	if len(appended.Sources()) != 4 {
		t.Fatalf("append override sources = %v, want 4 entries", appended.Sources())
	}
}

func TestLoadDefinesIncluderWins(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "lib.yaml", `
sources: [lib.sv]
defines:
  WIDTH: 16
  DEPTH: 4
`)
	root := writeDoc(t, dir, "root.yaml", `
top: top.sv
sources: [top.sv]
defines:
  WIDTH: 8
  SIM:
include: [lib.yaml]
`)
	d, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]string{"WIDTH": "8", "DEPTH": "4", "SIM": ""}
	if diff := cmp.Diff(want, d.Defines()); diff != "" {
		t.Fatalf("defines mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"DEPTH", "SIM", "WIDTH"}, d.DefineNames()); diff != "" {
		t.Fatalf("define names mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTopFromIncludeWhenRootHasNone(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "core.yaml", `
top: rtl/core.sv
sources: [rtl/core.sv]
`)
	root := writeDoc(t, dir, "root.yaml", `
sources: []
include: [core.yaml]
`)
	d, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Top() != filepath.Join(dir, "rtl", "core.sv") || d.TopModule() != "core" {
		t.Fatalf("unexpected top %q / %q", d.Top(), d.TopModule())
	}
}

func TestLoadMissingRootIsNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadMissingIncludeIsNotFound(t *testing.T) {
	dir := t.TempDir()
	root := writeDoc(t, dir, "root.yaml", `
top: top.sv
sources: [top.sv]
include: [absent.yaml]
`)
	_, err := Load(root)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound", err)
	}
	if !strings.Contains(err.Error(), "included from") {
		t.Fatalf("error should name the includer: %v", err)
	}
}

func TestLoadInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"missing sources":  "top: top.sv\n",
		"empty document":   "",
		"unknown key":      "top: top.sv\nsources: [a.sv]\nsauces: [b.sv]\n",
		"empty sources":    "top: top.sv\nsources: []\n",
		"missing top":      "sources: [a.sv]\n",
		"bad merge policy": "top: top.sv\nmerge: union\nsources: [a.sv]\n",
		"unmatched glob":   "top: top.sv\nsources: ['rtl/**/*.sv']\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "project.yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("err = %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestLoadIncludeWithoutSourcesIsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "dirs.yaml", `directories: [inc]`)
	root := writeDoc(t, dir, "root.yaml", `
top: top.sv
sources: [top.sv]
include: [dirs.yaml]
`)
	if _, err := Load(root); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("err = %v, want ErrConfigInvalid", err)
	}
}

func TestLoadIncludeCycleFails(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.yaml", `
top: top.sv
sources: [a.sv]
include: [b.yaml]
`)
	writeDoc(t, dir, "b.yaml", `
sources: [b.sv]
include: [a.yaml]
`)
	_, err := Load(filepath.Join(dir, "a.yaml"))
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("err = %v, want ErrConfigInvalid", err)
	}
}

func TestLoadExpandsGlobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"rtl/alu.sv", "rtl/core/decode.sv", "rtl/core/fetch.sv", "rtl/notes.txt"} {
		writeDoc(t, dir, name, "// "+name)
	}
	if err := os.MkdirAll(filepath.Join(dir, "include", "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	root := writeDoc(t, dir, "root.yaml", `
top: rtl/alu.sv
sources: ['rtl/**/*.sv']
directories: ['include/*']
`)
	d, err := Load(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{
		filepath.Join(dir, "rtl", "alu.sv"),
		filepath.Join(dir, "rtl", "core", "decode.sv"),
		filepath.Join(dir, "rtl", "core", "fetch.sv"),
	}
	if diff := cmp.Diff(want, d.Sources()); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "include", "pkg")}, d.Directories()); diff != "" {
		t.Fatalf("directories mismatch (-want +got):\n%s", diff)
	}
}

func TestDescriptorAccessorsReturnCopies(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "project.yaml", `
top: top.sv
sources: [a.sv]
defines: {X: 1}
`)
	d, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	d.Sources()[0] = "mutated"
	d.Defines()["X"] = "mutated"
	if d.Sources()[0] == "mutated" || d.Defines()["X"] == "mutated" {
		t.Fatalf("descriptor was mutated through an accessor")
	}
}

func TestLoadWithDefinesOverridesDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "inc.yaml", `
sources: [b.sv]
defines: {DEPTH: 4}
`)
	path := writeDoc(t, dir, "project.yaml", `
top: top.sv
sources: [a.sv]
defines: {WIDTH: 8}
include: [inc.yaml]
`)
	d, err := Load(path, WithDefines(map[string]string{"WIDTH": "16", "DEPTH": "2", "SIM": ""}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]string{"WIDTH": "16", "DEPTH": "2", "SIM": ""}
	if diff := cmp.Diff(want, d.Defines()); diff != "" {
		t.Fatalf("defines mismatch (-want +got):\n%s", diff)
	}
}
