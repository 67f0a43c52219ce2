package cparser

import (
	"strings"
	"testing"
)

func TestScanFunctionDefinition(t *testing.T) {
	src := `int add(int a, int b) {
    return a + b;
}
`
	nodes := Scan(src)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	n := nodes[0]
	if n.Kind != KindFunctionDefinition {
		t.Fatalf("expected KindFunctionDefinition, got %v", n.Kind)
	}
	if n.Name != "add" {
		t.Fatalf("expected name %q, got %q", "add", n.Name)
	}
	if src[n.Start:n.End] != src {
		t.Fatalf("expected node to span whole input, got %q", src[n.Start:n.End])
	}
}

func TestScanStructBodyPreserved(t *testing.T) {
	src := `struct Foo {
    int x;
    int y;
};
void f() {
}
`
	nodes := Scan(src)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].Kind != KindStructBody {
		t.Fatalf("expected first node to be KindStructBody, got %v", nodes[0].Kind)
	}
	if nodes[0].Name != "Foo" {
		t.Fatalf("expected struct name Foo, got %q", nodes[0].Name)
	}
	if nodes[1].Kind != KindFunctionDefinition || nodes[1].Name != "f" {
		t.Fatalf("expected second node to be function f, got %+v", nodes[1])
	}
}

func TestScanDeclarationIsNotDefinition(t *testing.T) {
	src := `int add(int a, int b);
`
	nodes := Scan(src)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0].Kind != KindOther {
		t.Fatalf("expected KindOther for a prototype, got %v", nodes[0].Kind)
	}
}

func TestScanTypedefFunctionPointer(t *testing.T) {
	src := `typedef int (*callback_t)(int, int);
`
	nodes := Scan(src)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0].Kind != KindTypedef {
		t.Fatalf("expected KindTypedef, got %v", nodes[0].Kind)
	}
	if want := strings.TrimSuffix(src, "\n"); src[nodes[0].Start:nodes[0].End] != want {
		t.Fatalf("expected typedef node to span the whole statement %q, got %q", want, src[nodes[0].Start:nodes[0].End])
	}
}

func TestScanEnumBody(t *testing.T) {
	src := `enum Color { RED, GREEN, BLUE };
`
	nodes := Scan(src)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0].Kind != KindEnumBody || nodes[0].Name != "Color" {
		t.Fatalf("expected enum Color, got %+v", nodes[0])
	}
}

func TestScanCommentsAndStringsDoNotConfuseBraces(t *testing.T) {
	src := `int f() {
    char *s = "{ not a brace }";
    // also not a brace {
    return 0;
}
`
	nodes := Scan(src)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0].Kind != KindFunctionDefinition {
		t.Fatalf("expected KindFunctionDefinition, got %v", nodes[0].Kind)
	}
	if want := strings.LastIndexByte(src, '}') + 1; nodes[0].End != want {
		t.Fatalf("expected function body to extend through the final closing brace, got end=%d want=%d", nodes[0].End, want)
	}
}
