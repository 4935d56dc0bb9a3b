package scan

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"deltascan/internal/config"
	"deltascan/internal/report"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T, dir, deltaSQL string) *config.Config {
	t.Helper()
	return &config.Config{
		DeltaPath:     writeFile(t, dir, "delta.sql", deltaSQL),
		OutputPath:    filepath.Join(dir, "report.json"),
		DefaultSchema: "dbo",
		SampleSize:    1000,
		Workers:       1,
		Connection: config.Connection{
			Driver: "sqlserver",
			DSN:    "sqlserver://sa:pw@localhost?database=app",
		},
	}
}

func runWithMock(t *testing.T, cfg *config.Config, setup func(sqlmock.Sqlmock)) int {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	if setup != nil {
		setup(mock)
	}

	r := NewRunner(cfg, zap.NewNop().Sugar())
	r.connect = func(driver, dsn string) (*sql.DB, error) {
		return db, nil
	}
	status := r.Run(context.Background())
	require.NoError(t, mock.ExpectationsWereMet())
	return status
}

func readReport(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestRun_EmptyDeltaSucceedsWithoutConnecting(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "-- no schema changes this release\n")

	r := NewRunner(cfg, zap.NewNop().Sugar())
	r.connect = func(driver, dsn string) (*sql.DB, error) {
		t.Fatal("connect must not be called for an empty delta")
		return nil, nil
	}

	status := r.Run(context.Background())
	assert.Equal(t, report.ExitSuccess, status)

	rep := readReport(t, cfg.OutputPath)
	summary := rep["summary"].(map[string]any)
	assert.Equal(t, "SUCCESS", summary["result"])
	assert.Equal(t, float64(0), summary["violationsFound"])
}

func TestRun_EmailViolationFailsBuild(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "CREATE TABLE dbo.Customers (Id INT, Email NVARCHAR(200));")

	status := runWithMock(t, cfg, func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery("SELECT TOP (1000) [Email], [Id] FROM [dbo].[Customers]").
			WillReturnRows(sqlmock.NewRows([]string{"Email", "Id"}).
				AddRow("jane@example.com", int64(7)))
		mock.ExpectClose()
	})

	assert.Equal(t, report.ExitViolationsFound, status)

	rep := readReport(t, cfg.OutputPath)
	summary := rep["summary"].(map[string]any)
	assert.Equal(t, "BUILD_FAILURE", summary["result"])
	assert.Equal(t, "critical", summary["highestActiveSeverity"])
	assert.Equal(t, float64(1), summary["activeViolations"])

	entries := rep["activeViolations"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "PII_001", entry["violationCode"])
	assert.Equal(t, "dbo.Customers.Email", entry["location"])
}

func TestRun_PolicySuppressionTurnsFailureIntoSuccess(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "CREATE TABLE dbo.Customers (Id INT, Email NVARCHAR(200));")
	cfg.PolicyPath = writeFile(t, dir, "exceptions.json",
		`{"suppressions": {"PII_001": [{"table": "Customers", "column": "Email"}]}}`)

	status := runWithMock(t, cfg, func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery("SELECT TOP (1000) [Email], [Id] FROM [dbo].[Customers]").
			WillReturnRows(sqlmock.NewRows([]string{"Email", "Id"}).
				AddRow("jane@example.com", int64(7)))
		mock.ExpectClose()
	})

	assert.Equal(t, report.ExitSuccess, status)

	rep := readReport(t, cfg.OutputPath)
	summary := rep["summary"].(map[string]any)
	assert.Equal(t, "SUCCESS", summary["result"])
	assert.Equal(t, float64(1), summary["violationsSuppressed"])
	assert.Empty(t, rep["activeViolations"])
	require.Len(t, rep["suppressedViolations"].([]any), 1)
}

func TestRun_ForcedContinuationPassesButIsRecorded(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "CREATE TABLE dbo.Customers (Id INT, Email NVARCHAR(200));")
	cfg.ForceContinue = true
	cfg.ForceReason = "release freeze exception RFC-221"

	status := runWithMock(t, cfg, func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery("SELECT TOP (1000) [Email], [Id] FROM [dbo].[Customers]").
			WillReturnRows(sqlmock.NewRows([]string{"Email", "Id"}).
				AddRow("jane@example.com", int64(7)))
		mock.ExpectClose()
	})

	assert.Equal(t, report.ExitSuccess, status)

	rep := readReport(t, cfg.OutputPath)
	forced, ok := rep["forcedContinuation"].(map[string]any)
	require.True(t, ok, "override must be recorded, never silent")
	assert.Equal(t, true, forced["activated"])
	assert.Equal(t, "release freeze exception RFC-221", forced["reason"])
	assert.Equal(t, "SUCCESS", rep["summary"].(map[string]any)["result"])
}

func TestRun_SkippedTableDoesNotAbortScan(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir,
		`CREATE TABLE dbo.Audit (Note NVARCHAR(400));
		CREATE TABLE dbo.Customers (Email NVARCHAR(200));`)

	status := runWithMock(t, cfg, func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery("SELECT TOP (1000) [Note] FROM [dbo].[Audit]").
			WillReturnError(assert.AnError)
		mock.ExpectQuery("SELECT TOP (1000) [Email] FROM [dbo].[Customers]").
			WillReturnRows(sqlmock.NewRows([]string{"Email"}).AddRow("jane@example.com"))
		mock.ExpectClose()
	})

	assert.Equal(t, report.ExitViolationsFound, status)
}

func TestRun_InvalidConfigFailsFastWithoutReport(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "irrelevant")
	cfg.Connection.DSN = ""

	r := NewRunner(cfg, zap.NewNop().Sugar())
	status := r.Run(context.Background())

	assert.Equal(t, report.ExitInvalidConfig, status)
	_, err := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(err), "no partial report on configuration failure")
}

func TestRun_MissingDeltaFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, "x")
	cfg.DeltaPath = filepath.Join(dir, "absent.sql")

	status := NewRunner(cfg, zap.NewNop().Sugar()).Run(context.Background())
	assert.Equal(t, report.ExitInvalidConfig, status)
}
