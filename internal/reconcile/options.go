package reconcile

// TableDropMode selects how orphan tables (present in the database but no
// longer named by the model) are disposed of (§4.5.2).
type TableDropMode int

const (
	// DropInteractive prompts per table through the Interaction Shim,
	// offering yes/no/all/none/list at each step. This is the default for an
	// interactive run.
	DropInteractive TableDropMode = iota
	// DropAll drops every orphan table belonging to a module in one
	// statement, no prompting.
	DropAll
	// DropNone leaves every orphan table untouched. This is the documented
	// default for a headless run that did not opt into DropAll (§4.5.2).
	DropNone
)

// Options configures one reconciliation run.
type Options struct {
	// NonInteractive skips the master "ready to proceed?" prompt, answering
	// it as if "yes" (CLI --yes).
	NonInteractive bool

	// TableDropMode controls orphan table disposition. The CLI sets this to
	// DropAll when --yes is given, and DropInteractive otherwise. When
	// NonInteractive is set, DropInteractive (the zero value) is treated as
	// DropNone, so a headless caller that wants orphan tables dropped must
	// explicitly request DropAll (§4.5.2).
	TableDropMode TableDropMode

	// DryRun computes the full diff and reports it through the shim without
	// executing any DDL or toggling FOREIGN_KEY_CHECKS.
	DryRun bool
}
