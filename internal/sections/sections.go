// Package sections splits compiler output into its named sections.
//
// The compiler writes a line-oriented protocol to stdout. Each section is
// introduced by a header line and runs until the next header, a closing
// delimiter, or the end of the output:
//
//	--- Abstract Syntax Tree (AST) ---
//	--- Intermediate Code ---
//	--- Symbol Table ---
//	Output
//
// Lines before the first header belong to no section.
package sections

import (
	"fmt"
	"strings"
)

// Key names one of the four sections.
type Key string

const (
	AST          Key = "ast"
	Intermediate Key = "intermediate"
	Symbol       Key = "symbol"
	Output       Key = "output"
)

// Literal header lines recognised by the protocol.
const (
	HeaderAST          = "--- Abstract Syntax Tree (AST) ---"
	HeaderIntermediate = "--- Intermediate Code ---"
	HeaderSymbol       = "--- Symbol Table ---"
	PrefixOutput       = "Output"
	PrefixDelimiter    = "---"
)

// Keys returns all section keys in protocol order.
func Keys() []Key {
	return []Key{AST, Intermediate, Symbol, Output}
}

// Title returns the human-readable name of the section.
func (k Key) Title() string {
	switch k {
	case AST:
		return "Abstract Syntax Tree (AST)"
	case Intermediate:
		return "Intermediate Code"
	case Symbol:
		return "Symbol Table"
	case Output:
		return "Output"
	}
	return string(k)
}

// ParseKey resolves a section name, accepting a few common aliases.
func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ast", "tree":
		return AST, nil
	case "intermediate", "ir", "tac":
		return Intermediate, nil
	case "symbol", "symbols", "symtab":
		return Symbol, nil
	case "output", "out":
		return Output, nil
	}
	return "", fmt.Errorf("unknown section %q (want ast, intermediate, symbol or output)", s)
}

// Map holds the accumulated text of each section seen in the output.
// A key maps to "" when its header appeared with no content lines;
// a key that never appeared is absent.
type Map map[Key]string

// Lookup returns the text for k and whether its header was seen.
func (m Map) Lookup(k Key) (string, bool) {
	text, ok := m[k]
	return text, ok
}

// Present returns the keys in m in protocol order.
func (m Map) Present() []Key {
	var out []Key
	for _, k := range Keys() {
		if _, ok := m[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Parse demultiplexes raw compiler stdout using the legacy protocol.
// It never fails; output with no recognised header yields an empty Map.
func Parse(raw string) Map {
	return Parser{}.Parse(raw)
}
