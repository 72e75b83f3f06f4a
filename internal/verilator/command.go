package verilator

import (
	"path/filepath"
	"strings"

	"github.com/kingrea/rtlbuild/internal/project"
)

// Fixed mode flags: C++ output, build the model, and silence unused-signal
// warnings for names following the UNUSED_ convention.
var modeFlags = []string{
	"--cc",
	"--build",
	"--unused-regexp UNUSED_*",
}

const traceFlag = "--trace"

// CommandFile renders the compiler command file, one directive per line.
// The order is fixed: top module, output directory, mode flags, declared
// flags, defines sorted by name, tracing, sources, include directories.
func CommandFile(desc project.Descriptor, mdir string, sources []string) string {
	lines := []string{
		"--top-module " + desc.TopModule(),
		"--Mdir " + mdir,
	}
	lines = append(lines, modeFlags...)
	lines = append(lines, desc.Flags()...)

	defines := desc.Defines()
	for _, name := range desc.DefineNames() {
		if value := defines[name]; value != "" {
			lines = append(lines, "-D"+name+"="+value)
		} else {
			lines = append(lines, "-D"+name)
		}
	}
	lines = append(lines, traceFlag)
	lines = append(lines, sources...)

	for _, dir := range includeDirs(sources, desc.Directories()) {
		lines = append(lines, "-I"+dir)
	}
	return strings.Join(lines, "\n") + "\n"
}

// includeDirs lists the directories holding the sources, then the declared
// include directories, each once and in first-seen order.
func includeDirs(sources, declared []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(dir string) {
		if _, ok := seen[dir]; ok {
			return
		}
		seen[dir] = struct{}{}
		out = append(out, dir)
	}
	for _, src := range sources {
		add(filepath.Dir(src))
	}
	for _, dir := range declared {
		add(filepath.Clean(dir))
	}
	return out
}
