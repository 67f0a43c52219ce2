package ctxbuild

import (
	"strings"
	"testing"
)

func TestStripBodiesPreservesStruct(t *testing.T) {
	src := `struct Foo {
    int x;
    int y;
};
void f() {
    int z = 1;
}
`
	out := StripBodies(src, StripAll)

	if !strings.Contains(out, "struct Foo {\n    int x;\n    int y;\n};") {
		t.Fatalf("expected struct body preserved verbatim, got: %s", out)
	}
	if strings.Contains(out, "int z = 1;") {
		t.Fatalf("expected function body stripped, got: %s", out)
	}
	if !strings.Contains(out, "void f();") {
		t.Fatalf("expected declaration void f();, got: %s", out)
	}
}

func TestStripBodiesRemovesStaticInline(t *testing.T) {
	src := `static inline int helper(int x) {
    return x * 2;
}
`
	out := StripBodies(src, StripAll)
	if strings.Contains(out, "static") || strings.Contains(out, "inline") {
		t.Fatalf("expected static/inline removed, got: %s", out)
	}
	if !strings.Contains(out, "int helper(int x);") {
		t.Fatalf("expected bare declaration, got: %s", out)
	}
}

func TestStripTargetKeepsCallSitesAndOtherBodies(t *testing.T) {
	src := `int helper(int x) {
    return x + 1;
}

int target(int a) {
    return helper(a) + target(a - 1);
}
`
	out := StripTarget(src, "target")

	if !strings.Contains(out, "int helper(int x) {\n    return x + 1;\n}") {
		t.Fatalf("expected helper's body preserved, got: %s", out)
	}
	if !strings.Contains(out, "int target(int a);") {
		t.Fatalf("expected target declaration, got: %s", out)
	}
	if strings.Contains(out, "return helper(a) + target(a - 1);") {
		t.Fatalf("expected target's own body removed, got: %s", out)
	}
}

func TestStripIsIdempotent(t *testing.T) {
	src := `struct Foo { int x; };
int f(int a) {
    return a;
}
`
	once := StripBodies(src, StripAll)
	twice := StripBodies(once, StripAll)
	if once != twice {
		t.Fatalf("expected strip to be idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestCallSiteIsDefinitionHeuristic(t *testing.T) {
	cases := []struct {
		line   string
		offset int
		want   bool
	}{
		{"int target(int a) {", 4, true},
		{"target(a - 1);", 0, false},
		{"return target(a - 1);", 7, false},
		{"  x = target(3);", 6, false},
	}
	for _, c := range cases {
		got := CallSiteIsDefinition(c.line, c.offset)
		if got != c.want {
			t.Errorf("CallSiteIsDefinition(%q, %d) = %v, want %v", c.line, c.offset, got, c.want)
		}
	}
}
