package reconcile

import "fmt"

// Summary accumulates per-run DDL counts, reported to the Interaction Shim
// at the end of each phase (§7: "3 Indexes added, 1 removed").
type Summary struct {
	TablesCreated int
	TablesDropped int

	ColumnsAdded    int
	ColumnsModified int
	ColumnsDropped  int

	IndexesAdded   int
	IndexesDropped int

	ForeignKeysDropped int
	ForeignKeysAdded   int
}

// IsNoOp reports whether this run made zero table-level, column-level and
// index-level changes, the convergence property a second immediate run must satisfy
// (property 1, §8) aside from the unconditional FK rebuild.
func (s Summary) IsNoOp() bool {
	return s.TablesCreated == 0 && s.TablesDropped == 0 &&
		s.ColumnsAdded == 0 && s.ColumnsModified == 0 && s.ColumnsDropped == 0 &&
		s.IndexesAdded == 0 && s.IndexesDropped == 0
}

func (s Summary) tableLine() string {
	return fmt.Sprintf("%d tables created, %d tables removed", s.TablesCreated, s.TablesDropped)
}

func (s Summary) columnLine() string {
	return fmt.Sprintf("%d columns added, %d columns modified, %d columns removed", s.ColumnsAdded, s.ColumnsModified, s.ColumnsDropped)
}

func (s Summary) indexLine() string {
	return fmt.Sprintf("%d indexes added, %d indexes removed", s.IndexesAdded, s.IndexesDropped)
}

func (s Summary) foreignKeyLine() string {
	return fmt.Sprintf("%d foreign keys dropped, %d foreign keys created", s.ForeignKeysDropped, s.ForeignKeysAdded)
}

// ModuleSummary pairs one module's name with its own Summary and the DDL
// statements computed for it, so a caller can report per-module results
// (the CLI's --json mode, §4 item 3) instead of only the run-wide total.
type ModuleSummary struct {
	Module string
	Summary
	// Statements is every DDL statement this module's plan computed, in
	// phase order, whether or not it was actually executed (populated
	// unconditionally so a dry run has something to report).
	Statements []string
}

// RunResult is what Engine.Run returns: the aggregate Summary across every
// module (embedded, so existing callers that only care about totals keep
// working unchanged) plus the per-module breakdown.
type RunResult struct {
	Summary
	Modules []ModuleSummary
}
