// Package extractorfiles is coordctl's default extractor-boundary adapter:
// a single TOML manifest naming each function's source file, assembly,
// object path, and compiler, plus the aggregate header path and per-file
// matching status. This stands in for the project's real extractor
// (splits/symbols/build config parsers), which is out of this repo's
// scope; a deployment with that extractor wired up replaces this package
// with an adapter over its actual data rather than this manifest.
package extractorfiles

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/doldecomp/agentcoord/internal/errs"
)

// FunctionEntry is one function's extractor-derived metadata.
type FunctionEntry struct {
	SourceFile    string `toml:"source_file"`
	Address       string `toml:"address,omitempty"` // hex, e.g. "0x80005940"
	AssemblyFile  string `toml:"assembly_file,omitempty"`
	Compiler      string `toml:"compiler,omitempty"`
	CompilerFlags string `toml:"compiler_flags,omitempty"`
}

// Manifest is the on-disk shape of the extractor-data file.
type Manifest struct {
	AggregateHeader string                   `toml:"aggregate_header,omitempty"`
	Functions       map[string]FunctionEntry `toml:"functions"`
	Objects         map[string]string        `toml:"objects,omitempty"` // source file -> object path
	Matching        map[string]bool          `toml:"matching,omitempty"` // source file -> fully matched
}

// Store loads a Manifest once and serves every extractor-boundary
// interface the Workflow Driver and Commit Applier need, persisting back
// Matching flips (the only field any operation mutates).
type Store struct {
	mu   sync.Mutex
	path string
	m    Manifest
}

// Open reads path (creating an empty manifest in memory if it doesn't
// exist yet — a fresh workspace starts with no known functions).
func Open(path string) (*Store, error) {
	s := &Store{path: path, m: Manifest{Functions: map[string]FunctionEntry{}, Objects: map[string]string{}, Matching: map[string]bool{}}}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &s.m); err != nil {
			return nil, fmt.Errorf("extractorfiles: decoding %s: %w", path, err)
		}
	}
	if s.m.Functions == nil {
		s.m.Functions = map[string]FunctionEntry{}
	}
	if s.m.Objects == nil {
		s.m.Objects = map[string]string{}
	}
	if s.m.Matching == nil {
		s.m.Matching = map[string]bool{}
	}
	return s, nil
}

func (s *Store) save() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("extractorfiles: writing %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()
	return toml.NewEncoder(f).Encode(&s.m)
}

// SourceFileFor implements workflow.SplitsResolver.
func (s *Store) SourceFileFor(ctx context.Context, functionName string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.m.Functions[functionName]
	if !ok {
		return "", false, nil
	}
	return entry.SourceFile, true, nil
}

// AssemblyFor implements workflow.AssemblyProvider.
func (s *Store) AssemblyFor(ctx context.Context, functionName string) (string, error) {
	s.mu.Lock()
	entry, ok := s.m.Functions[functionName]
	s.mu.Unlock()
	if !ok {
		return "", errs.Precondition("extractorfiles: %s is not a known function", functionName)
	}
	if entry.AssemblyFile == "" {
		return "", errs.Precondition("extractorfiles: %s has no assembly_file entry", functionName)
	}
	data, err := os.ReadFile(entry.AssemblyFile)
	if err != nil {
		return "", fmt.Errorf("extractorfiles: reading assembly for %s: %w", functionName, err)
	}
	return string(data), nil
}

// AggregateHeader implements workflow.HeaderProvider.
func (s *Store) AggregateHeader(ctx context.Context) (string, error) {
	s.mu.Lock()
	path := s.m.AggregateHeader
	s.mu.Unlock()
	if path == "" {
		return "", errs.Precondition("extractorfiles: no aggregate_header configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("extractorfiles: reading aggregate header: %w", err)
	}
	return string(data), nil
}

// ObjectPathFor implements workflow.ObjectPathResolver and
// commitapply's object-path lookup.
func (s *Store) ObjectPathFor(ctx context.Context, sourceFile string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.m.Objects[sourceFile]
	if !ok {
		return "", errs.Precondition("extractorfiles: no object path configured for %s", sourceFile)
	}
	return path, nil
}

// CompilerFor implements workflow.CompilerDetector.
func (s *Store) CompilerFor(ctx context.Context, functionName string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.m.Functions[functionName]
	if !ok {
		return "", "", errs.Precondition("extractorfiles: %s is not a known function", functionName)
	}
	return entry.Compiler, entry.CompilerFlags, nil
}

// ListFunctions implements workflow.Catalog.
func (s *Store) ListFunctions(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.m.Functions))
	for name := range s.m.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListFiles implements workflow.Catalog.
func (s *Store) ListFiles(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for _, entry := range s.m.Functions {
		if entry.SourceFile != "" {
			seen[entry.SourceFile] = true
		}
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// AddressOf implements commitapply.AddressResolver.
func (s *Store) AddressOf(ctx context.Context, functionName string) (uint64, bool, error) {
	s.mu.Lock()
	entry, ok := s.m.Functions[functionName]
	s.mu.Unlock()
	if !ok || entry.Address == "" {
		return 0, false, nil
	}
	hexStr := strings.TrimPrefix(entry.Address, "0x")
	addr, err := strconv.ParseUint(hexStr, 16, 64)
	if err != nil {
		return 0, false, fmt.Errorf("extractorfiles: parsing address %q for %s: %w", entry.Address, functionName, err)
	}
	return addr, true, nil
}

// IsFileFullyMatched implements commitapply.MatchConfig.
func (s *Store) IsFileFullyMatched(ctx context.Context, file string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Matching[file], nil
}

// SetMatching implements commitapply.MatchConfig, persisting the flip back
// to the manifest file immediately.
func (s *Store) SetMatching(ctx context.Context, file string, matching bool) error {
	s.mu.Lock()
	s.m.Matching[file] = matching
	err := s.save()
	s.mu.Unlock()
	return err
}
