package extractorfiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "extract.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestOpenMissingManifestIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fns, err := s.ListFunctions(context.Background())
	if err != nil {
		t.Fatalf("list functions: %v", err)
	}
	if len(fns) != 0 {
		t.Errorf("expected no functions, got %v", fns)
	}
}

func TestFunctionLookups(t *testing.T) {
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "Foo.s")
	if err := os.WriteFile(asmPath, []byte(".text\nFoo:\n"), 0644); err != nil {
		t.Fatalf("write asm: %v", err)
	}
	path := writeManifest(t, dir, `
aggregate_header = "`+filepath.Join(dir, "all.h")+`"

[functions.Foo_80005940]
source_file = "src/foo.c"
address = "0x80005940"
assembly_file = "`+asmPath+`"
compiler = "mwcc"
compiler_flags = "-O4"

[objects]
"src/foo.c" = "build/foo.o"
`)
	if err := os.WriteFile(filepath.Join(dir, "all.h"), []byte("int bar(void);\n"), 0644); err != nil {
		t.Fatalf("write header: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	file, ok, err := s.SourceFileFor(ctx, "Foo_80005940")
	if err != nil || !ok || file != "src/foo.c" {
		t.Fatalf("source file = %q, %v, %v", file, ok, err)
	}

	addr, ok, err := s.AddressOf(ctx, "Foo_80005940")
	if err != nil || !ok || addr != 0x80005940 {
		t.Fatalf("address = %#x, %v, %v", addr, ok, err)
	}

	compiler, flags, err := s.CompilerFor(ctx, "Foo_80005940")
	if err != nil || compiler != "mwcc" || flags != "-O4" {
		t.Fatalf("compiler = %q %q, %v", compiler, flags, err)
	}

	asm, err := s.AssemblyFor(ctx, "Foo_80005940")
	if err != nil || asm == "" {
		t.Fatalf("assembly = %q, %v", asm, err)
	}

	header, err := s.AggregateHeader(ctx)
	if err != nil || header == "" {
		t.Fatalf("header = %q, %v", header, err)
	}

	obj, err := s.ObjectPathFor(ctx, "src/foo.c")
	if err != nil || obj != "build/foo.o" {
		t.Fatalf("object path = %q, %v", obj, err)
	}

	files, err := s.ListFiles(ctx)
	if err != nil || len(files) != 1 || files[0] != "src/foo.c" {
		t.Fatalf("list files = %v, %v", files, err)
	}
}

func TestSetMatchingPersists(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[functions]
`)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	matched, err := s.IsFileFullyMatched(ctx, "src/foo.c")
	if err != nil || matched {
		t.Fatalf("expected unmatched by default, got %v, %v", matched, err)
	}

	if err := s.SetMatching(ctx, "src/foo.c", true); err != nil {
		t.Fatalf("set matching: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	matched, err = reopened.IsFileFullyMatched(ctx, "src/foo.c")
	if err != nil || !matched {
		t.Fatalf("expected matching to persist, got %v, %v", matched, err)
	}
}
