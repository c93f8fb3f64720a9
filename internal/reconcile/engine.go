// Package reconcile is the Reconciliation Engine (§4.5): the phased
// algorithm that diffs a data model against one or more live module
// connections and emits the DDL that converges the database to the model.
package reconcile

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/divbloxjs/dx-db-sync/internal/casing"
	"github.com/divbloxjs/dx-db-sync/internal/gateway"
	"github.com/divbloxjs/dx-db-sync/internal/interact"
	"github.com/divbloxjs/dx-db-sync/internal/model"
	"github.com/divbloxjs/dx-db-sync/internal/syncerr"
)

// ModuleConnection binds one configured module name to the Gateway that
// reaches its schema.
type ModuleConnection struct {
	Name    string
	Gateway gateway.Gateway
}

// moduleState is the engine's working memory for one module across the
// phased plan (§5: "between suspension points the engine's in-memory diff
// state is a local variable; no shared mutable state leaks across
// boundaries" — moduleState is exactly that local variable).
type moduleState struct {
	name     string
	gw       gateway.Gateway
	entities []*model.EntityDefinition

	toCreate []string
	toRemove []string
	toDrop   []string

	fkSpecs map[string][]ForeignKeySpec // entity name -> expected FK specs this run

	fkChecksDisabled bool
	txOpen           bool

	summary Summary
	// plan accumulates every DDL statement computed for this module, in
	// phase order, regardless of DryRun — it's how a dry run surfaces what
	// it would have done (§4 item 1).
	plan []string
}

// Engine runs one reconciliation (§4.5.1) against the supplied, already
// case-appropriate model and module connections.
type Engine struct {
	Policy  casing.Policy
	Options Options
	Shim    interact.Shim

	state State
}

// New builds an Engine. shim must not be nil; callers that want a fully
// headless run pass interacttest.Shim (or any other Shim implementation).
func New(policy casing.Policy, opts Options, shim interact.Shim) *Engine {
	return &Engine{Policy: policy, Options: opts, Shim: shim}
}

// State reports where in the phased algorithm the most recent Run call is,
// or ended up, per §4.5.7.
func (e *Engine) State() State { return e.state }

// Run executes the full phased algorithm across every module connection,
// returning a RunResult: the aggregate Summary of every module touched plus
// each module's own Summary and statement plan. On any error the
// run aborts per §7: FK checks are restored on every module the run had
// already disabled them on, and open transactions are rolled back
// best-effort.
func (e *Engine) Run(ctx context.Context, dataModel *model.DataModel, modules []ModuleConnection) (RunResult, error) {
	var total RunResult
	e.state = StateIdle

	entitiesByModule, err := groupEntitiesByModule(dataModel, modules)
	if err != nil {
		e.state = StateFailed
		return total, err
	}
	e.state = StateValidated

	states := make([]*moduleState, len(modules))
	for i, m := range modules {
		states[i] = &moduleState{name: m.Name, gw: m.Gateway, entities: entitiesByModule[m.Name], fkSpecs: map[string][]ForeignKeySpec{}}
	}

	// Phase 2: integrity probe.
	for _, ms := range states {
		ok, ierr := ms.gw.EngineSupportsInnoDB(ctx)
		if ierr != nil {
			e.state = StateFailed
			return total, ierr
		}
		if !ok {
			e.state = StateFailed
			return total, &syncerr.IntegrityError{Module: ms.name, Reason: "default storage engine is not InnoDB"}
		}
	}
	e.report("Integrity probe", "every module's default storage engine is InnoDB", interact.LevelInfo)

	if !e.Options.NonInteractive {
		decision, cerr := e.Shim.Confirm("Ready to proceed?", false)
		if cerr != nil || decision != interact.DecisionYes {
			e.state = StateAborting
			return total, &syncerr.UserCancel{Reason: "operator declined the master confirmation prompt"}
		}
	}

	// Phase 3: disable FK checks, with a scope guard restoring them on every
	// exit path (§9 "scoped acquisition"). Modules are independent
	// connections, so the restore fans out across them concurrently instead
	// of waiting on each one in turn.
	defer func() {
		var g errgroup.Group
		for _, ms := range states {
			ms := ms
			if ms.fkChecksDisabled && !e.Options.DryRun {
				g.Go(func() error { return ms.gw.SetForeignKeyChecks(ctx, true) })
			}
		}
		_ = g.Wait()
	}()
	if !e.Options.DryRun {
		for _, ms := range states {
			if err := ms.gw.SetForeignKeyChecks(ctx, false); err != nil {
				e.state = StateFailed
				return total, err
			}
			ms.fkChecksDisabled = true
		}
	}

	// Transactions span phases 5-10 (§9 design note); see DESIGN.md for the
	// documented commit-semantics decision given MySQL's implicit DDL commit.
	if !e.Options.DryRun {
		for _, ms := range states {
			if err := ms.gw.BeginTx(ctx); err != nil {
				e.state = StateFailed
				return total, err
			}
			ms.txOpen = true
		}
	}
	defer func() {
		var g errgroup.Group
		for _, ms := range states {
			ms := ms
			if ms.txOpen {
				g.Go(func() error { return ms.gw.Rollback(ctx) })
			}
		}
		_ = g.Wait()
	}()

	// Phase 4: introspect tables, compute the create/remove sets.
	for _, ms := range states {
		rows, ierr := ms.gw.IntrospectTables(ctx)
		if ierr != nil {
			e.state = StateFailed
			return total, ierr
		}
		expected := expectedTableNames(ms.entities, e.Policy)
		ms.toCreate, ms.toRemove = diffTables(expected, rows)
	}
	e.state = StateIntrospected

	// Phase 5: drop orphan tables.
	e.state = StateMutating
	if err := e.dropOrphanTables(ctx, states); err != nil {
		e.state = StateFailed
		return total, err
	}
	e.report("Existing table clean up", sumTables(states).tableLine(), interact.LevelInfo)

	// Phase 6: create new tables (skeleton only).
	if err := e.createTables(ctx, states); err != nil {
		e.state = StateFailed
		return total, err
	}
	e.report("Create new tables", sumTables(states).tableLine(), interact.LevelInfo)

	// Phase 7: first relationships pass (drop-only).
	if err := e.dropForeignKeys(ctx, states); err != nil {
		e.state = StateFailed
		return total, err
	}

	// Phase 8: reconcile columns.
	if err := e.reconcileColumns(ctx, states); err != nil {
		e.state = StateFailed
		return total, err
	}
	e.report("Update columns", sumColumns(states).columnLine(), interact.LevelInfo)

	// Phase 9: reconcile indexes.
	if err := e.reconcileIndexes(ctx, states); err != nil {
		e.state = StateFailed
		return total, err
	}
	e.report("Update indexes", sumIndexes(states).indexLine(), interact.LevelInfo)

	// Phase 10: second relationships pass (add).
	if err := e.addForeignKeys(ctx, states); err != nil {
		e.state = StateFailed
		return total, err
	}
	e.report("Update relationships", sumForeignKeys(states).foreignKeyLine(), interact.LevelInfo)

	// Phase 11: commit. FK-checks restoration happens in the deferred scope
	// guard above regardless of how this function returns.
	e.state = StateCommitting
	if !e.Options.DryRun {
		for _, ms := range states {
			if err := ms.gw.Commit(ctx); err != nil {
				e.state = StateFailed
				return total, err
			}
			ms.txOpen = false
		}
	}

	var result RunResult
	for _, ms := range states {
		result.Modules = append(result.Modules, ModuleSummary{Module: ms.name, Summary: ms.summary, Statements: ms.plan})
		result.Summary = addSummaries(result.Summary, ms.summary)
	}
	e.state = StateDone
	return result, nil
}

func (e *Engine) report(section, message string, level interact.Level) {
	if e.Shim != nil {
		e.Shim.Report(section, message, level)
	}
}

func groupEntitiesByModule(dataModel *model.DataModel, modules []ModuleConnection) (map[string][]*model.EntityDefinition, error) {
	known := map[string]bool{}
	for _, m := range modules {
		known[m.Name] = true
	}
	grouped := map[string][]*model.EntityDefinition{}
	for _, name := range dataModel.EntityNames() {
		entity, _ := dataModel.Entity(name)
		if !known[entity.Module] {
			return nil, &syncerr.IntegrityError{Module: entity.Module, Reason: fmt.Sprintf("entity %q references unconfigured module %q", entity.Name, entity.Module)}
		}
		grouped[entity.Module] = append(grouped[entity.Module], entity)
	}
	return grouped, nil
}

func (e *Engine) dropOrphanTables(ctx context.Context, states []*moduleState) error {
	for _, ms := range states {
		if len(ms.toRemove) == 0 {
			continue
		}
		mode := e.Options.TableDropMode
		if e.Options.NonInteractive && mode == DropInteractive {
			mode = DropNone
		}
		ms.toDrop = resolveOrphanDrops(e.Shim, mode, ms.name, ms.toRemove)
		if len(ms.toDrop) == 0 {
			continue
		}
		stmt := dropTablesStatement(ms.toDrop)
		ms.plan = append(ms.plan, stmt)
		if !e.Options.DryRun {
			if err := ms.gw.Execute(ctx, stmt); err != nil {
				return err
			}
		} else {
			e.report(ms.name, stmt, interact.LevelInfo)
		}
		ms.summary.TablesDropped += len(ms.toDrop)
	}
	return nil
}

func (e *Engine) createTables(ctx context.Context, states []*moduleState) error {
	pk := casing.PrimaryKeyColumn(e.Policy)
	for _, ms := range states {
		if len(ms.toCreate) == 0 {
			continue
		}
		for _, stmt := range createSkeletonTables(ms.toCreate, pk) {
			ms.plan = append(ms.plan, stmt)
			if !e.Options.DryRun {
				if err := ms.gw.Execute(ctx, stmt); err != nil {
					return err
				}
			} else {
				e.report(ms.name, stmt, interact.LevelInfo)
			}
		}
		ms.summary.TablesCreated += len(ms.toCreate)
	}
	return nil
}

func (e *Engine) dropForeignKeys(ctx context.Context, states []*moduleState) error {
	for _, ms := range states {
		for _, entity := range ms.entities {
			table := casing.Normalize(entity.Name, e.Policy)
			specs := expectedForeignKeys(entity, e.Policy)
			ms.fkSpecs[entity.Name] = specs

			current, err := ms.gw.IntrospectForeignKeys(ctx, table)
			if err != nil {
				return err
			}
			expectedNames := map[string]bool{}
			for _, s := range specs {
				expectedNames[s.ConstraintName] = true
			}
			statements, dropped := dropAllForeignKeys(table, current, expectedNames)
			for _, stmt := range statements {
				ms.plan = append(ms.plan, stmt)
				if !e.Options.DryRun {
					if err := ms.gw.Execute(ctx, stmt); err != nil {
						return err
					}
				} else {
					e.report(ms.name, stmt, interact.LevelInfo)
				}
			}
			ms.summary.ForeignKeysDropped += dropped
		}
	}
	return nil
}

func (e *Engine) reconcileColumns(ctx context.Context, states []*moduleState) error {
	for _, ms := range states {
		for _, entity := range ms.entities {
			table := casing.Normalize(entity.Name, e.Policy)
			var rows []gateway.ColumnRow
			for _, created := range ms.toCreate {
				if e.Options.DryRun && created == table {
					// A dry run never created this table; its skeleton holds only the primary key.
					rows = []gateway.ColumnRow{{Field: casing.PrimaryKeyColumn(e.Policy)}}
				}
			}
			if rows == nil {
				var err error
				if rows, err = ms.gw.IntrospectColumns(ctx, table); err != nil {
					return err
				}
			}
			result := reconcileColumns(table, entity, e.Policy, rows)
			for _, stmt := range result.Statements {
				ms.plan = append(ms.plan, stmt)
				if !e.Options.DryRun {
					if err := ms.gw.Execute(ctx, stmt); err != nil {
						return err
					}
				} else {
					e.report(ms.name, stmt, interact.LevelInfo)
				}
			}
			ms.summary.ColumnsAdded += result.Added
			ms.summary.ColumnsModified += result.Modified
			ms.summary.ColumnsDropped += result.Dropped
		}
	}
	return nil
}

func (e *Engine) reconcileIndexes(ctx context.Context, states []*moduleState) error {
	for _, ms := range states {
		for _, entity := range ms.entities {
			table := casing.Normalize(entity.Name, e.Policy)
			rows, err := ms.gw.IntrospectIndexes(ctx, table)
			if err != nil {
				return err
			}
			statements, added, dropped := reconcileIndexes(table, entity, e.Policy, rows, ms.fkSpecs[entity.Name])
			for _, stmt := range statements {
				ms.plan = append(ms.plan, stmt)
				if !e.Options.DryRun {
					if err := ms.gw.Execute(ctx, stmt); err != nil {
						return err
					}
				} else {
					e.report(ms.name, stmt, interact.LevelInfo)
				}
			}
			ms.summary.IndexesAdded += added
			ms.summary.IndexesDropped += dropped
		}
	}
	return nil
}

func (e *Engine) addForeignKeys(ctx context.Context, states []*moduleState) error {
	for _, ms := range states {
		for _, entity := range ms.entities {
			table := casing.Normalize(entity.Name, e.Policy)
			statements, added := addForeignKeys(table, ms.fkSpecs[entity.Name], e.Policy)
			for _, stmt := range statements {
				ms.plan = append(ms.plan, stmt)
				if !e.Options.DryRun {
					if err := ms.gw.Execute(ctx, stmt); err != nil {
						return err
					}
				} else {
					e.report(ms.name, stmt, interact.LevelInfo)
				}
			}
			ms.summary.ForeignKeysAdded += added
		}
	}
	return nil
}

func sumTables(states []*moduleState) Summary {
	var s Summary
	for _, ms := range states {
		s.TablesCreated += ms.summary.TablesCreated
		s.TablesDropped += ms.summary.TablesDropped
	}
	return s
}

func sumColumns(states []*moduleState) Summary {
	var s Summary
	for _, ms := range states {
		s.ColumnsAdded += ms.summary.ColumnsAdded
		s.ColumnsModified += ms.summary.ColumnsModified
		s.ColumnsDropped += ms.summary.ColumnsDropped
	}
	return s
}

func sumIndexes(states []*moduleState) Summary {
	var s Summary
	for _, ms := range states {
		s.IndexesAdded += ms.summary.IndexesAdded
		s.IndexesDropped += ms.summary.IndexesDropped
	}
	return s
}

func sumForeignKeys(states []*moduleState) Summary {
	var s Summary
	for _, ms := range states {
		s.ForeignKeysDropped += ms.summary.ForeignKeysDropped
		s.ForeignKeysAdded += ms.summary.ForeignKeysAdded
	}
	return s
}

func addSummaries(a, b Summary) Summary {
	return Summary{
		TablesCreated:      a.TablesCreated + b.TablesCreated,
		TablesDropped:      a.TablesDropped + b.TablesDropped,
		ColumnsAdded:       a.ColumnsAdded + b.ColumnsAdded,
		ColumnsModified:    a.ColumnsModified + b.ColumnsModified,
		ColumnsDropped:     a.ColumnsDropped + b.ColumnsDropped,
		IndexesAdded:       a.IndexesAdded + b.IndexesAdded,
		IndexesDropped:     a.IndexesDropped + b.IndexesDropped,
		ForeignKeysDropped: a.ForeignKeysDropped + b.ForeignKeysDropped,
		ForeignKeysAdded:   a.ForeignKeysAdded + b.ForeignKeysAdded,
	}
}
