// Package syncerr defines the typed error kinds surfaced by the
// reconciliation engine (§7 of the specification). Each kind carries enough
// context — module, schema, statement, driver message — that a caller can
// report precisely what failed and choose the right process exit code,
// without ever collapsing a driver error into a bare boolean.
package syncerr

import "fmt"

// ConfigError indicates a malformed connection config or data model,
// detected before any database work begins.
type ConfigError struct {
	Reason string // human-readable reason, naming the offending entity/attribute/key
}

func (e *ConfigError) Error() string { return fmt.Sprintf("invalid configuration: %s", e.Reason) }

// ConnectError indicates a module connection could not be opened or
// authenticated, before any DDL has run.
type ConnectError struct {
	Module string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("module %s: cannot connect: %s", e.Module, e.Err)
}
func (e *ConnectError) Unwrap() error { return e.Err }

// IntegrityError indicates the model references an unknown module, or a
// module's default storage engine is not InnoDB.
type IntegrityError struct {
	Module string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("module %s: integrity check failed: %s", e.Module, e.Reason)
}

// IntrospectionError indicates a SHOW/information_schema query failed while
// reading the current state of a module's schema.
type IntrospectionError struct {
	Module    string
	Schema    string
	Statement string
	Err       error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("module %s (schema %s): introspection failed: %s\nstatement: %s", e.Module, e.Schema, e.Err, e.Statement)
}
func (e *IntrospectionError) Unwrap() error { return e.Err }

// DdlError indicates an emitted DDL statement failed to execute. It retains
// the offending statement for diagnosis, satisfying property 9 (abort
// atomicity: no later DDL in the same module is attempted after this).
type DdlError struct {
	Module    string
	Schema    string
	Statement string
	Err       error
}

func (e *DdlError) Error() string {
	return fmt.Sprintf("module %s (schema %s): DDL failed: %s\nstatement: %s", e.Module, e.Schema, e.Err, e.Statement)
}
func (e *DdlError) Unwrap() error { return e.Err }

// UserCancel indicates the operator answered "no" to the master confirmation
// prompt, or supplied an invalid menu selection in interactive mode.
type UserCancel struct {
	Reason string
}

func (e *UserCancel) Error() string { return fmt.Sprintf("cancelled: %s", e.Reason) }
