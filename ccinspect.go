// Package ccinspect runs an external compiler and splits its output into
// the sections a developer inspects: the AST, intermediate code, symbol
// table and program output.
package ccinspect

// Version is the ccinspect release.
const Version = "v0.1.0"
