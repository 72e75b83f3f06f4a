// Package project loads a project descriptor from a YAML document and the
// documents it includes, producing one immutable Descriptor.
//
// Lists (sources, directories, flags) are appended in declaration order:
// the including document's entries come before the included document's, and
// a document included twice contributes its entries twice unless the root
// selects the dedup merge policy.
package project
