package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divbloxjs/dx-db-sync/internal/reconcile"
)

func TestRunSyncRejectsUnknownCasePolicy(t *testing.T) {
	flags := &syncFlags{
		dataModelPath: writeTempFile(t, `{"exampleEntity":{"module":"main","attributes":{}}}`),
		dbConfigPath:  writeTempFile(t, `{"host":"localhost","user":"root","password":"","database":"x","port":3306,"moduleSchemaMapping":[{"moduleName":"main","schemaName":"main_schema"}]}`),
		casePolicy:    "kebab",
	}
	cmd := newSyncCommand()
	err := runSync(cmd, flags)
	require.Error(t, err)
}

func TestRunSyncSurfacesDataModelLoadFailure(t *testing.T) {
	flags := &syncFlags{
		dataModelPath: writeTempFile(t, `{"exampleEntity":{"module":"main","attributes":{}, "unknownKey": true}}`),
		dbConfigPath:  writeTempFile(t, `{}`),
		casePolicy:    "snake",
	}
	cmd := newSyncCommand()
	err := runSync(cmd, flags)
	require.Error(t, err)
}

func TestRunSyncSurfacesMissingDataModelFile(t *testing.T) {
	flags := &syncFlags{
		dataModelPath: filepath.Join(t.TempDir(), "does-not-exist.json"),
		dbConfigPath:  writeTempFile(t, `{}`),
		casePolicy:    "snake",
	}
	cmd := newSyncCommand()
	err := runSync(cmd, flags)
	require.Error(t, err)
}

func TestPrintSummaryPlainText(t *testing.T) {
	cmd := newSyncCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	result := reconcile.RunResult{
		Summary: reconcile.Summary{TablesCreated: 2, ColumnsAdded: 3, IndexesDropped: 1, ForeignKeysAdded: 4},
	}
	err := printSummary(cmd, result, false)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "2 created")
	assert.Contains(t, out, "3 added")
	assert.Contains(t, out, "1 dropped")
	assert.Contains(t, out, "4 added")
}

func TestPrintSummaryJSON(t *testing.T) {
	cmd := newSyncCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	result := reconcile.RunResult{
		Modules: []reconcile.ModuleSummary{
			{Module: "main", Summary: reconcile.Summary{TablesCreated: 1, ColumnsDropped: 2}},
			{Module: "billing", Summary: reconcile.Summary{IndexesAdded: 3}},
		},
	}
	err := printSummary(cmd, result, true)
	require.NoError(t, err)

	var decoded []struct {
		Module  string `json:"module"`
		Created int    `json:"created"`
		Removed int    `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "main", decoded[0].Module)
	assert.Equal(t, 1, decoded[0].Created)
	assert.Equal(t, 2, decoded[0].Removed)
	assert.Equal(t, "billing", decoded[1].Module)
	assert.Equal(t, 3, decoded[1].Created)
	assert.Equal(t, 0, decoded[1].Removed)
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
