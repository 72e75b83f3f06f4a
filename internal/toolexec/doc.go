// Package toolexec runs external tools (the simulation compiler, the logic
// optimizer) as blocking subprocesses with an optional bounded wait.
package toolexec
