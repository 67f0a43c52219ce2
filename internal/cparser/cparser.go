// Package cparser is a minimal, hand-written C syntax scanner used by
// internal/ctxbuild to locate top-level constructs (function definitions,
// struct/union/enum bodies, typedefs) well enough to strip function bodies
// without corrupting anything else.
//
// No Go binding for a real C parser (e.g. tree-sitter-c) is available, so
// this package is a deliberate fallback rather than a shortcut around doing
// the job properly. It is brace/paren-balanced and comment/string/char-
// literal aware, which is the property regex-based stripping lacks and
// which is why naive regex stripping corrupts struct bodies.
package cparser

// NodeKind classifies a top-level construct found by Scan.
type NodeKind int

const (
	KindOther NodeKind = iota
	KindFunctionDefinition
	KindStructBody
	KindUnionBody
	KindEnumBody
	KindTypedef
)

// Node is one top-level construct in a translation unit, expressed as a
// byte range into the original source.
type Node struct {
	Kind NodeKind
	// Start/End bound the whole construct (e.g. the full function
	// definition including its body, or the full typedef statement).
	Start, End int
	// DeclaratorEnd is meaningful only for KindFunctionDefinition: the byte
	// offset one past the closing paren of the function's parameter list,
	// i.e. where the declarator ends and the body's opening brace begins
	// (with only whitespace/newlines between them).
	DeclaratorEnd int
	// Name is the identifier: the function name for KindFunctionDefinition,
	// the tag name (if any) for struct/union/enum.
	Name string
}

// Scan walks src once and returns every top-level construct in source
// order. "Top-level" means not nested inside another construct's body —
// nested structs/functions (e.g. a struct defined inside another struct)
// are not emitted separately; their bytes are part of the enclosing body
// range.
func Scan(src string) []Node {
	s := &scanner{src: src}
	var nodes []Node
	for {
		s.skipTrivia()
		if s.pos >= len(s.src) {
			break
		}
		start := s.pos
		node, ok := s.scanTopLevel(start)
		if !ok {
			// Couldn't classify; skip to the next statement/declaration
			// boundary (top-level ';' or balanced '{...}') and continue.
			s.skipUnknownTopLevel()
			continue
		}
		nodes = append(nodes, node)
		s.pos = node.End
	}
	return nodes
}

type scanner struct {
	src string
	pos int
}

// skipTrivia advances past whitespace, line comments, and block comments.
func (s *scanner) skipTrivia() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			s.pos += 2
			for s.pos+1 < len(s.src) && !(s.src[s.pos] == '*' && s.src[s.pos+1] == '/') {
				s.pos++
			}
			s.pos += 2
			if s.pos > len(s.src) {
				s.pos = len(s.src)
			}
		default:
			return
		}
	}
}

// skipQuoted advances past a string or character literal (including
// backslash escapes), assuming s.pos is currently at the opening quote.
func (s *scanner) skipQuoted(quote byte) {
	s.pos++ // opening quote
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' && s.pos+1 < len(s.src) {
			s.pos += 2
			continue
		}
		s.pos++
		if c == quote {
			return
		}
	}
}

// findMatchingBrace returns the index one past the '}' matching the '{' at
// openPos, skipping over nested braces, strings, and comments.
func (s *scanner) findMatchingBrace(openPos int) int {
	depth := 0
	i := openPos
	for i < len(s.src) {
		c := s.src[i]
		switch {
		case c == '"' || c == '\'':
			save := s.pos
			s.pos = i
			s.skipQuoted(c)
			i = s.pos
			s.pos = save
			continue
		case c == '/' && i+1 < len(s.src) && s.src[i+1] == '/':
			for i < len(s.src) && s.src[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(s.src) && s.src[i+1] == '*':
			i += 2
			for i+1 < len(s.src) && !(s.src[i] == '*' && s.src[i+1] == '/') {
				i++
			}
			i += 2
			continue
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return len(s.src)
}

// findMatchingParen mirrors findMatchingBrace for '(' / ')'.
func (s *scanner) findMatchingParen(openPos int) int {
	depth := 0
	i := openPos
	for i < len(s.src) {
		c := s.src[i]
		switch {
		case c == '"' || c == '\'':
			save := s.pos
			s.pos = i
			s.skipQuoted(c)
			i = s.pos
			s.pos = save
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return len(s.src)
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// lastIdentBefore returns the identifier ending immediately before pos
// (skipping trailing whitespace), or "" if none.
func lastIdentBefore(src string, pos int) string {
	i := pos
	for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t' || src[i-1] == '\n' || src[i-1] == '\r') {
		i--
	}
	end := i
	for i > 0 && isIdentByte(src[i-1]) {
		i--
	}
	if i == end {
		return ""
	}
	return src[i:end]
}

// scanTopLevel attempts to classify the construct starting at pos (after
// trivia has already been skipped). Returns ok=false if it cannot tell what
// this is (caller will skip it via skipUnknownTopLevel).
func (s *scanner) scanTopLevel(pos int) (Node, bool) {
	word, wordEnd := s.readKeywordOrIdent(pos)

	switch word {
	case "typedef":
		end := s.scanToTopLevelSemicolon(pos)
		return Node{Kind: KindTypedef, Start: pos, End: end}, true
	case "struct", "union", "enum":
		return s.scanAggregate(pos, word)
	}

	// Not a keyword we recognize directly; this may be a function
	// definition or a plain declaration/statement. Try to find a balanced
	// parenthesis group followed (after trivia, possibly with a K&R-style
	// parameter declaration list for very old sources, which this parser
	// does not need to support) by '{' — that shape is a function
	// definition. Anything ending in ';' before such a brace is a
	// declaration, not a definition.
	_ = wordEnd
	return s.scanPossibleFunctionDefinition(pos)
}

// readKeywordOrIdent reads a leading identifier/keyword starting at pos.
func (s *scanner) readKeywordOrIdent(pos int) (string, int) {
	if pos >= len(s.src) || !isIdentStart(s.src[pos]) {
		return "", pos
	}
	i := pos + 1
	for i < len(s.src) && isIdentByte(s.src[i]) {
		i++
	}
	return s.src[pos:i], i
}

// scanToTopLevelSemicolon advances to (and includes) the next ';' that is
// not nested inside parens/braces, honoring strings and comments. Used for
// typedef statements, which may contain a function-pointer declarator with
// nested parens but are always terminated by a single top-level ';'.
func (s *scanner) scanToTopLevelSemicolon(pos int) int {
	depth := 0
	i := pos
	for i < len(s.src) {
		c := s.src[i]
		switch {
		case c == '"' || c == '\'':
			save := s.pos
			s.pos = i
			s.skipQuoted(c)
			i = s.pos
			s.pos = save
			continue
		case c == '/' && i+1 < len(s.src) && s.src[i+1] == '/':
			for i < len(s.src) && s.src[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(s.src) && s.src[i+1] == '*':
			i += 2
			for i+1 < len(s.src) && !(s.src[i] == '*' && s.src[i+1] == '/') {
				i++
			}
			i += 2
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth > 0 {
				depth--
			}
		case c == ';' && depth == 0:
			return i + 1
		}
		i++
	}
	return len(s.src)
}

// scanAggregate handles `struct|union|enum [Tag] { ... } [decl-list] ;` and
// the forward-declaration/decl-only form `struct Tag decl;` (no body).
func (s *scanner) scanAggregate(pos int, keyword string) (Node, bool) {
	i := pos + len(keyword)
	for i < len(s.src) && (s.src[i] == ' ' || s.src[i] == '\t' || s.src[i] == '\n' || s.src[i] == '\r') {
		i++
	}
	name := ""
	if i < len(s.src) && isIdentStart(s.src[i]) {
		start := i
		for i < len(s.src) && isIdentByte(s.src[i]) {
			i++
		}
		name = s.src[start:i]
		for i < len(s.src) && (s.src[i] == ' ' || s.src[i] == '\t' || s.src[i] == '\n' || s.src[i] == '\r') {
			i++
		}
	}

	if i >= len(s.src) || s.src[i] != '{' {
		// No body at this point (forward declaration, or a variable
		// declaration using a previously-defined tag) — treat the whole
		// statement up to the next top-level ';' as an opaque "other" node
		// so it passes through untouched.
		end := s.scanToTopLevelSemicolon(pos)
		return Node{Kind: KindOther, Start: pos, End: end}, true
	}

	bodyEnd := s.findMatchingBrace(i)
	end := s.scanToTopLevelSemicolon(bodyEnd)

	kind := KindStructBody
	switch keyword {
	case "union":
		kind = KindUnionBody
	case "enum":
		kind = KindEnumBody
	}
	return Node{Kind: kind, Start: pos, End: end, Name: name}, true
}

// scanPossibleFunctionDefinition looks for `<declarator>(<params>) {`,
// treating it as a function definition if found, else falls back to
// scanning as an opaque top-level statement terminated by ';'.
func (s *scanner) scanPossibleFunctionDefinition(pos int) (Node, bool) {
	i := pos
	parenOpen := -1
	parenClose := -1
scan:
	for i < len(s.src) {
		c := s.src[i]
		switch {
		case c == '"' || c == '\'':
			save := s.pos
			s.pos = i
			s.skipQuoted(c)
			i = s.pos
			s.pos = save
			continue
		case c == '/' && i+1 < len(s.src) && s.src[i+1] == '/':
			for i < len(s.src) && s.src[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(s.src) && s.src[i+1] == '*':
			i += 2
			for i+1 < len(s.src) && !(s.src[i] == '*' && s.src[i+1] == '/') {
				i++
			}
			i += 2
			continue
		case c == ';':
			// Hit a statement terminator before any '(' was resolved to a
			// function body — this is a plain declaration, not a definition.
			return Node{Kind: KindOther, Start: pos, End: i + 1}, true
		case c == '{':
			if parenOpen >= 0 {
				// A parameter list was already seen; the check below
				// decides whether this brace opens its body.
				break scan
			}
			// Brace with no preceding balanced-paren declarator at all
			// (e.g. a bare compound statement) — not a function
			// definition; treat the whole block opaquely.
			end := s.findMatchingBrace(i)
			return Node{Kind: KindOther, Start: pos, End: end}, true
		case c == '(':
			parenOpen = i
			i = s.findMatchingParen(i)
			parenClose = i
			continue
		}
		i++
	}
	if parenOpen < 0 {
		return Node{}, false
	}

	declaratorEnd := parenClose
	// After the parameter list, only whitespace/comments may precede the
	// opening brace for this to be a function definition.
	j := declaratorEnd
	for j < len(s.src) {
		c := s.src[j]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			j++
			continue
		}
		if c == '/' && j+1 < len(s.src) && s.src[j+1] == '/' {
			for j < len(s.src) && s.src[j] != '\n' {
				j++
			}
			continue
		}
		if c == '/' && j+1 < len(s.src) && s.src[j+1] == '*' {
			j += 2
			for j+1 < len(s.src) && !(s.src[j] == '*' && s.src[j+1] == '/') {
				j++
			}
			j += 2
			continue
		}
		break
	}

	if j >= len(s.src) || s.src[j] != '{' {
		// No body follows the declarator: a prototype, or a declarator
		// followed by more tokens (e.g. `__attribute__((...))`) before the
		// terminating ';'. Treat as an opaque declaration.
		end := s.scanToTopLevelSemicolon(j)
		return Node{Kind: KindOther, Start: pos, End: end}, true
	}

	bodyEnd := s.findMatchingBrace(j)
	name := lastIdentBefore(s.src, parenOpen)
	return Node{
		Kind:          KindFunctionDefinition,
		Start:         pos,
		End:           bodyEnd,
		DeclaratorEnd: declaratorEnd,
		Name:          name,
	}, true
}

// skipUnknownTopLevel is the fallback for text scanTopLevel could not
// classify: skip to the next top-level ';' or a balanced '{...}', whichever
// comes first, so Scan always makes forward progress.
func (s *scanner) skipUnknownTopLevel() {
	i := s.pos
	for i < len(s.src) {
		c := s.src[i]
		switch {
		case c == '"' || c == '\'':
			save := s.pos
			s.pos = i
			s.skipQuoted(c)
			i = s.pos
			s.pos = save
			continue
		case c == ';':
			s.pos = i + 1
			return
		case c == '{':
			s.pos = s.findMatchingBrace(i)
			return
		}
		i++
	}
	s.pos = len(s.src)
}
