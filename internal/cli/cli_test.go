package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulndash/internal/normalizer"
	"vulndash/pkg/metadata"
)

const cliDoc = `[
	{"cwe_id": "CWE-79", "cvss_score": 6.1, "severity": "medium"},
	{"cwe_id": "CWE-89", "cvss_score": 9.8, "severity": "critical"},
	{"cwe_id": "CWE-22", "cvss_score": 7.5, "severity": "high"},
	"junk"
]`

func writeDoc(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vulnerabilities.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func TestExport_Stdout(t *testing.T) {
	stdout, _, err := run(t, "export", writeDoc(t, cliDoc), "--out", "-")
	require.NoError(t, err)

	assert.Equal(t, "cwe_id,cvss_score,severity\nCWE-89,9.8,critical\nCWE-22,7.5,high\n", stdout)
}

func TestExport_ThresholdFlag(t *testing.T) {
	stdout, _, err := run(t, "export", writeDoc(t, cliDoc), "--out", "-", "--threshold", "9")
	require.NoError(t, err)

	assert.Equal(t, "cwe_id,cvss_score,severity\nCWE-89,9.8,critical\n", stdout)
}

func TestExport_ThresholdEnv(t *testing.T) {
	t.Setenv("VULNDASH_ANALYSIS_RISK_THRESHOLD", "9.9")

	stdout, _, err := run(t, "export", writeDoc(t, cliDoc), "--out", "-")
	require.NoError(t, err)

	assert.Equal(t, "cwe_id,cvss_score,severity\n", stdout)
}

func TestExport_File(t *testing.T) {
	out := filepath.Join(t.TempDir(), "high.csv")

	_, stderr, err := run(t, "export", writeDoc(t, cliDoc), "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "2 high-risk vulnerabilities")

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "cwe_id,cvss_score,severity\n"))
}

func TestReport_SignAndVerify(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.md")

	_, _, err := run(t, "report", writeDoc(t, cliDoc), "--sign", "--out", out)
	require.NoError(t, err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)

	meta, err := metadata.Verify(string(b))
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Records)
	assert.Equal(t, 1, meta.Rejected)
	assert.Equal(t, Version, meta.Version)

	stdout, _, err := run(t, "verify", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "verified")

	tampered := strings.Replace(string(b), "CWE-89", "CWE-90", 1)
	require.NoError(t, os.WriteFile(out, []byte(tampered), 0644))

	_, _, err = run(t, "verify", out)
	assert.ErrorIs(t, err, metadata.ErrHashMismatch)
}

func TestReport_Stdout(t *testing.T) {
	stdout, _, err := run(t, "report", writeDoc(t, cliDoc))
	require.NoError(t, err)

	assert.Contains(t, stdout, "# CVSS & CWE Risk Prioritization Dashboard")
	assert.Contains(t, stdout, "**Records:** 3 (rejected: 1)")
	assert.NotContains(t, stdout, "METADATA_START")
}

func TestReport_PipelineFailure(t *testing.T) {
	_, _, err := run(t, "report", writeDoc(t, "[]"))
	require.Error(t, err)
	assert.ErrorIs(t, err, normalizer.ErrEmptyInput)
	assert.Equal(t, "Uploaded file is empty.", err.Error())
}

func TestConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "vulndash.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("analysis:\n  risk_threshold: 9.5\n"), 0644))

	stdout, _, err := run(t, "export", writeDoc(t, cliDoc), "--out", "-", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "cwe_id,cvss_score,severity\nCWE-89,9.8,critical\n", stdout)
}

func TestInvalidOverride(t *testing.T) {
	_, _, err := run(t, "export", writeDoc(t, cliDoc), "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, Version)
}

func TestFmt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("| a | bb |\n| - | - |\n| 1 | 2 |\n"), 0644))

	_, _, err := run(t, "fmt", dir)
	require.ErrorIs(t, err, ErrUnformatted)

	stdout, _, err := run(t, "fmt", dir, "--write")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Formatted: "+path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "| a   | bb  |\n| --- | --- |\n| 1   | 2   |\n", string(b))

	_, _, err = run(t, "fmt", dir)
	assert.NoError(t, err)
}

func TestFmt_SignedReportStaysValid(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.md")

	_, _, err := run(t, "report", writeDoc(t, cliDoc), "--sign", "--out", out)
	require.NoError(t, err)

	// generated reports are already aligned
	_, _, err = run(t, "fmt", dir)
	require.NoError(t, err)

	_, _, err = run(t, "verify", out)
	assert.NoError(t, err)
}
