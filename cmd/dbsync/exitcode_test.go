package main

import (
	"errors"
	"testing"

	"github.com/divbloxjs/dx-db-sync/internal/syncerr"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"config error", &syncerr.ConfigError{Reason: "bad model"}, exitValidationFailed},
		{"user cancel", &syncerr.UserCancel{Reason: "declined prompt"}, exitCancelled},
		{"connect error", &syncerr.ConnectError{Module: "main", Err: errors.New("refused")}, exitDDLFailed},
		{"integrity error", &syncerr.IntegrityError{Module: "main", Reason: "not InnoDB"}, exitDDLFailed},
		{"introspection error", &syncerr.IntrospectionError{Module: "main", Schema: "s", Statement: "SHOW", Err: errors.New("x")}, exitDDLFailed},
		{"ddl error", &syncerr.DdlError{Module: "main", Schema: "s", Statement: "ALTER", Err: errors.New("x")}, exitDDLFailed},
		{"unwrapped other error", errors.New("boom"), exitDDLFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeFor(tc.err); got != tc.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
