// Package ctxbuild implements the Context Builder: given an aggregate
// preprocessed header for a source file, produce the context string sent
// with every scratch operation by stripping function bodies (all, or just
// the target) while leaving every other top-level construct byte-identical.
package ctxbuild

import (
	"strings"

	"github.com/doldecomp/agentcoord/internal/cparser"
)

// StripMode controls how many function bodies StripBodies removes.
type StripMode int

const (
	// StripAll removes every function body in the input.
	StripAll StripMode = iota
	// StripInlineOnly removes only bodies of functions declared `inline`
	// (textually, via the declarator preceding the body).
	StripInlineOnly
)

const stripMarker = " /* body stripped */"

// StripBodies implements transformation 1: strip all (or just inline)
// function bodies, replacing each with its declarator plus ';' and a
// comment marker. `static` and `inline` are removed from the emitted
// declaration since a bodyless static/inline declaration is otherwise
// rejected or misinterpreted by the target compiler.
func StripBodies(src string, mode StripMode) string {
	nodes := cparser.Scan(src)

	var b strings.Builder
	last := 0
	for _, n := range nodes {
		if n.Kind != cparser.KindFunctionDefinition {
			continue
		}
		if mode == StripInlineOnly && !declaratorHasKeyword(src[n.Start:n.DeclaratorEnd], "inline") {
			continue
		}

		b.WriteString(src[last:n.Start])
		b.WriteString(stripDeclaration(src[n.Start:n.DeclaratorEnd]))
		b.WriteString(";")
		b.WriteString(stripMarker)
		last = n.End
	}
	b.WriteString(src[last:])
	return b.String()
}

// StripTarget implements transformations 2 and 3 combined with call-site
// preservation: remove only targetName's own definition body, leaving every
// other function body, every struct/union/enum/typedef, and every
// declaration or call site of targetName untouched.
func StripTarget(src string, targetName string) string {
	nodes := cparser.Scan(src)

	var b strings.Builder
	last := 0
	for _, n := range nodes {
		if n.Kind != cparser.KindFunctionDefinition || n.Name != targetName {
			continue
		}
		b.WriteString(src[last:n.Start])
		b.WriteString(stripDeclaration(src[n.Start:n.DeclaratorEnd]))
		b.WriteString(";")
		b.WriteString(stripMarker)
		last = n.End
	}
	b.WriteString(src[last:])
	return b.String()
}

// stripDeclaration removes the `static` and `inline` keywords from a
// function declarator, keeping every other token (return type, pointer
// stars, parameter list); runs of whitespace collapse to single spaces.
func stripDeclaration(decl string) string {
	fields := strings.Fields(decl)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "static" || f == "inline" {
			continue
		}
		out = append(out, f)
	}
	return joinDeclaration(out)
}

// joinDeclaration rejoins declarator tokens with single spaces. Since
// strings.Fields split only on whitespace, a name written directly against
// its '(' stays joined to it. The original whitespace is not kept, so this is a best-effort
// reconstruction rather than byte-for-byte preservation — acceptable here
// because the declaration is being rewritten into a prototype anyway.
func joinDeclaration(fields []string) string {
	return strings.Join(fields, " ")
}

// declaratorHasKeyword reports whether a space-delimited storage-class
// keyword appears in the declarator text (outside of identifiers, since
// strings.Fields already split on whitespace).
func declaratorHasKeyword(decl, keyword string) bool {
	for _, f := range strings.Fields(decl) {
		if f == keyword {
			return true
		}
	}
	return false
}

// CallSiteIsDefinition applies a call-site-vs-definition heuristic for a
// single match of name within a line: given the full line
// text and the byte offset of name's first character within that line,
// report whether this occurrence is a definition (true) or a call/other
// reference (false).
//
// A definition has a non-whitespace prefix before name on the line (a type
// specifier). A call either starts the line with name, or has a prefix
// ending in one of the operator/keyword tokens that only appear in call
// context: `=`, `,`, `(`, `{`, `!`, `&`, `|`, `?`, `:`, `;`, `return`, `case`.
func CallSiteIsDefinition(line string, nameOffset int) bool {
	prefix := strings.TrimRight(line[:nameOffset], " \t")
	if prefix == "" {
		return false
	}

	callSuffixes := []string{"=", ",", "(", "{", "!", "&", "|", "?", ":", ";", "return", "case"}
	for _, suf := range callSuffixes {
		if strings.HasSuffix(prefix, suf) {
			return false
		}
	}

	return true
}
