package workflow

import "context"

// ExtractList is the `extract list` operation: every function name the
// extractor's splits/symbols data knows about, independent of whether this
// repo has ever claimed or touched it.
func (d *Driver) ExtractList(ctx context.Context) ([]string, error) {
	return d.Catalog.ListFunctions(ctx)
}

// ExtractFiles is the `extract files` operation: every source file the
// extractor's splits data assigns functions to.
func (d *Driver) ExtractFiles(ctx context.Context) ([]string, error) {
	return d.Catalog.ListFiles(ctx)
}
