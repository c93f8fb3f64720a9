package main

import (
	"errors"

	"github.com/divbloxjs/dx-db-sync/internal/syncerr"
)

// Process exit codes. 0 is cobra's default success; the rest classify a
// returned error by which phase of the run it came from.
const (
	exitSuccess          = 0
	exitValidationFailed = 1
	exitDDLFailed        = 2
	exitCancelled        = 3
)

// exitCodeFor maps a typed syncerr kind to the process exit code a caller
// scripting against dbsync can rely on.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}

	var configErr *syncerr.ConfigError
	if errors.As(err, &configErr) {
		return exitValidationFailed
	}

	var cancelErr *syncerr.UserCancel
	if errors.As(err, &cancelErr) {
		return exitCancelled
	}

	var connectErr *syncerr.ConnectError
	var integrityErr *syncerr.IntegrityError
	var introspectErr *syncerr.IntrospectionError
	var ddlErr *syncerr.DdlError
	switch {
	case errors.As(err, &connectErr), errors.As(err, &integrityErr), errors.As(err, &introspectErr), errors.As(err, &ddlErr):
		return exitDDLFailed
	}

	return exitDDLFailed
}
