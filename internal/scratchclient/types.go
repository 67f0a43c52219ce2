package scratchclient

import "errors"

var errNoReachableCandidate = errors.New("scratchclient: no candidate base URL was reachable")

// Scratch mirrors the remote service's representation of a compile sandbox.
type Scratch struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	Compiler      string `json:"compiler"`
	CompilerFlags string `json:"compiler_flags"`
	TargetAsm     string `json:"target_asm"`
	Context       string `json:"context"`
	SourceCode    string `json:"source_code"`
	DiffLabel     string `json:"diff_label,omitempty"`
	ClaimToken    string `json:"claim_token,omitempty"`
	Platform      string `json:"platform,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Score         int    `json:"score"`
	MaxScore      int    `json:"max_score"`
}

// MatchPercent computes this scratch's last-known match percentage using
// the same rule DiffOutput.MatchPercent applies to a fresh compile result.
func (s Scratch) MatchPercent() float64 {
	return DiffOutput{CurrentScore: s.Score, MaxScore: s.MaxScore}.MatchPercent()
}

// CreateRequest is the body for POST /api/scratch.
type CreateRequest struct {
	Name          string `json:"name"`
	Compiler      string `json:"compiler"`
	CompilerFlags string `json:"compiler_flags"`
	TargetAsm     string `json:"target_asm"`
	Context       string `json:"context"`
	SourceCode    string `json:"source_code,omitempty"`
	DiffLabel     string `json:"diff_label,omitempty"`
	Decompile     bool   `json:"decompile,omitempty"`
}

// UpdateRequest is the body for PATCH /api/scratch/{slug}.
type UpdateRequest struct {
	SourceCode string `json:"source_code,omitempty"`
	Context    string `json:"context,omitempty"`
	Compiler   string `json:"compiler,omitempty"`
	Flags      string `json:"compiler_flags,omitempty"`
}

// ClaimRequest is the body for POST /api/scratch/{slug}/claim.
type ClaimRequest struct {
	Token string `json:"token"`
}

// CompileOverrides is the optional body for POST-with-overrides compiles,
// which do not persist the resulting score.
type CompileOverrides struct {
	SourceCode string `json:"source_code,omitempty"`
	Context    string `json:"context,omitempty"`
}

// DiffOutput carries the compile result's scoring.
type DiffOutput struct {
	CurrentScore int    `json:"current_score"`
	MaxScore     int    `json:"max_score"`
	Rows         []Row  `json:"rows,omitempty"`
}

// Row is one line of the diff display the remote compiler returns.
type Row struct {
	Key    string `json:"key"`
	Base   string `json:"base,omitempty"`
	Target string `json:"target,omitempty"`
}

// CompileResult is the response from GET/POST /api/scratch/{slug}/compile.
type CompileResult struct {
	Success        bool       `json:"success"`
	CompilerOutput string     `json:"compiler_output"`
	DiffOutput     DiffOutput `json:"diff_output"`
}

// MatchPercent computes the match percentage from the raw scores: 0 current
// score means byte-identical, a negative score means the remote compile
// failed.
func (d DiffOutput) MatchPercent() float64 {
	if d.CurrentScore < 0 {
		return 0
	}
	if d.MaxScore <= 0 {
		return 0
	}
	return float64(d.MaxScore-d.CurrentScore) / float64(d.MaxScore) * 100.0
}

// DecompileRequest is the body for POST /api/scratch/{slug}/decompile.
type DecompileRequest struct {
	Context  string `json:"context,omitempty"`
	Compiler string `json:"compiler,omitempty"`
}

// SearchParams are the query parameters for GET /api/scratch.
type SearchParams struct {
	Search      string
	Platform    string
	Compiler    string
	PageSize    int
}

// SearchResult is the paginated response for scratch search.
type SearchResult struct {
	Scratches []Scratch `json:"scratches"`
	Total     int       `json:"total"`
}

// Compiler is one entry from GET /api/compiler.
type Compiler struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
}

// Preset is one entry from GET /api/preset.
type Preset struct {
	Name          string `json:"name"`
	Compiler      string `json:"compiler"`
	CompilerFlags string `json:"compiler_flags"`
}
