package commitapply

import (
	"context"
	"sort"
	"strings"

	"github.com/doldecomp/agentcoord/internal/cparser"
	"github.com/doldecomp/agentcoord/internal/errs"
)

// stubMarkerPrefix is the sentinel comment form used for an unimplemented
// function's placeholder: "/// #FunctionName" on its own line.
const stubMarkerPrefix = "/// #"

// findStubMarker locates the line "/// #name" in src, returning its byte
// range (including the trailing newline, if any).
func findStubMarker(src, name string) (start, end int, found bool) {
	marker := stubMarkerPrefix + name
	pos := 0
	for pos < len(src) {
		lineEnd := strings.IndexByte(src[pos:], '\n')
		var line string
		var nextPos int
		if lineEnd < 0 {
			line = src[pos:]
			nextPos = len(src)
		} else {
			line = src[pos : pos+lineEnd]
			nextPos = pos + lineEnd + 1
		}
		if strings.TrimRight(line, "\r") == marker {
			return pos, nextPos, true
		}
		pos = nextPos
	}
	return 0, 0, false
}

// findDefinition locates an existing top-level function definition named
// name using internal/cparser rather than regex.
func findDefinition(src, name string) (cparser.Node, bool) {
	for _, node := range cparser.Scan(src) {
		if node.Kind == cparser.KindFunctionDefinition && node.Name == name {
			return node, true
		}
	}
	return cparser.Node{}, false
}

// replaceFunction replaces functionName's stub marker (preferred) or, if
// absent, its existing definition, with newCode.
func replaceFunction(src, functionName, newCode string) (string, error) {
	if start, end, ok := findStubMarker(src, functionName); ok {
		return src[:start] + newCode + "\n" + src[end:], nil
	}

	node, ok := findDefinition(src, functionName)
	if !ok {
		return "", errs.Precondition("commitapply: no stub marker or existing definition found for %s", functionName)
	}
	return src[:node.Start] + newCode + src[node.End:], nil
}

// item is one ordered construct in a file relevant to stub placement: an
// existing function definition or a stub marker, each naming the function
// it stands for.
type item struct {
	name  string
	start int
}

// orderedItems returns every function definition and stub marker in src,
// in source order.
func orderedItems(src string) []item {
	var items []item
	for _, node := range cparser.Scan(src) {
		if node.Kind == cparser.KindFunctionDefinition {
			items = append(items, item{name: node.Name, start: node.Start})
		}
	}

	pos := 0
	for pos < len(src) {
		lineStart := pos
		lineEnd := strings.IndexByte(src[pos:], '\n')
		var line string
		var nextPos int
		if lineEnd < 0 {
			line = src[pos:]
			nextPos = len(src)
		} else {
			line = src[pos : pos+lineEnd]
			nextPos = pos + lineEnd + 1
		}
		if name, ok := strings.CutPrefix(strings.TrimRight(line, "\r"), stubMarkerPrefix); ok {
			items = append(items, item{name: name, start: lineStart})
		}
		pos = nextPos
	}

	sort.Slice(items, func(i, j int) bool { return items[i].start < items[j].start })
	return items
}

// insertStub inserts a new stub marker for functionName into src in
// ascending symbol-address order relative to the file's existing stubs and
// definitions: before the first existing item with a greater address, or at
// end-of-file after the last item with a lesser one, surrounded by the
// appropriate blank lines.
func insertStub(ctx context.Context, resolver AddressResolver, src, functionName string) (string, error) {
	marker := stubMarkerPrefix + functionName

	newAddr, ok, err := resolver.AddressOf(ctx, functionName)
	if err != nil {
		return "", err
	}
	if !ok {
		return strings.TrimRight(src, "\n") + "\n\n" + marker + "\n", nil
	}

	items := orderedItems(src)
	for _, it := range items {
		addr, addrOK, err := resolver.AddressOf(ctx, it.name)
		if err != nil {
			return "", err
		}
		if addrOK && addr > newAddr {
			before := strings.TrimRight(src[:it.start], "\n")
			after := src[it.start:]
			if before == "" {
				return marker + "\n\n" + after, nil
			}
			return before + "\n\n" + marker + "\n\n" + after, nil
		}
	}

	return strings.TrimRight(src, "\n") + "\n\n" + marker + "\n", nil
}

// AddStub is the `stub add <name>` operation: it inserts a new stub marker
// for functionName into src at its ascending-address position.
func AddStub(ctx context.Context, resolver AddressResolver, src, functionName string) (string, error) {
	if _, _, found := findStubMarker(src, functionName); found {
		return "", errs.Precondition("commitapply: stub marker for %s already present", functionName)
	}
	if _, found := findDefinition(src, functionName); found {
		return "", errs.Precondition("commitapply: %s already has a definition, not a stub", functionName)
	}
	return insertStub(ctx, resolver, src, functionName)
}

// ListStubs is the `stub list` operation: every stub marker present in src,
// in source order.
func ListStubs(src string) []string {
	var names []string
	for _, it := range orderedItems(src) {
		if _, _, found := findStubMarker(src, it.name); found {
			names = append(names, it.name)
		}
	}
	return names
}

// CheckStub is the `stub check <name>` operation: reports whether
// functionName currently has a stub marker (as opposed to a real
// definition, or neither).
func CheckStub(src, functionName string) (hasStub bool, hasDefinition bool) {
	_, _, hasStub = findStubMarker(src, functionName)
	_, hasDefinition = findDefinition(src, functionName)
	return hasStub, hasDefinition
}
