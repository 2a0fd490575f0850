package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rootManifest = "[workspace]\nmembers = [\"crate_a\", \"crate_b\"]\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// setupWorkspace writes a two-member workspace where tokio is shared, serde
// conflicts and log is declared by crate_a only.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), rootManifest)
	writeFile(t, filepath.Join(dir, "crate_a", "Cargo.toml"),
		"[package]\nname = \"crate_a\"\n\n[dependencies]\ntokio = { version = \"1\", features = [\"rt\"] }\nserde = \"1.0\"\nlog = \"0.4\"\n")
	writeFile(t, filepath.Join(dir, "crate_b", "Cargo.toml"),
		"[package]\nname = \"crate_b\"\n\n[dependencies]\ntokio = \"1\"\nserde = \"1.0.100\"\n")
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRunHoist_nonInteractive(t *testing.T) {
	dir := setupWorkspace(t)

	out, _, err := execute(t, "", dir, "--non-interactive")
	require.NoError(t, err)

	root := readFile(t, filepath.Join(dir, "Cargo.toml"))
	assert.Equal(t, rootManifest+"\n[workspace.dependencies]\nlog = { version = \"0.4\" }\ntokio = { version = \"1\" }\n", root)

	a := readFile(t, filepath.Join(dir, "crate_a", "Cargo.toml"))
	assert.Contains(t, a, "tokio = { workspace = true, features = [\"rt\"] }\n")
	assert.Contains(t, a, "serde = \"1.0\"\n")
	assert.Contains(t, a, "log = { workspace = true }\n")

	b := readFile(t, filepath.Join(dir, "crate_b", "Cargo.toml"))
	assert.Contains(t, b, "tokio = { workspace = true }\n")
	assert.Contains(t, b, "serde = \"1.0.100\"\n")

	assert.Contains(t, out, "Updated Cargo.toml\n")
	assert.Contains(t, out, "Updated crate_a/Cargo.toml\n")
	assert.Contains(t, out, "----- Hoist Summary -----\n")
	assert.Contains(t, out, "- hoisted: 2\n")
	assert.Contains(t, out, "- skipped: 1\n")
	assert.Contains(t, out, "- conflicts resolved: 0 of 1\n")
}

func TestRunHoist_idempotent(t *testing.T) {
	dir := setupWorkspace(t)
	_, _, err := execute(t, "", dir, "--non-interactive")
	require.NoError(t, err)
	before := readFile(t, filepath.Join(dir, "crate_a", "Cargo.toml"))

	out, _, err := execute(t, "", dir, "--non-interactive")
	require.NoError(t, err)
	assert.NotContains(t, out, "Updated")
	assert.Contains(t, out, "- hoisted: 0\n")
	assert.Equal(t, before, readFile(t, filepath.Join(dir, "crate_a", "Cargo.toml")))
}

func TestRunHoist_prompt(t *testing.T) {
	dir := setupWorkspace(t)

	out, _, err := execute(t, "2\n", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Dependency `serde` has conflicting source specifications:")
	assert.Contains(t, out, "- conflicts resolved: 1 of 1\n")
	root := readFile(t, filepath.Join(dir, "Cargo.toml"))
	assert.Contains(t, root, "serde = { version = \"1.0.100\" }\n")
	assert.Contains(t, readFile(t, filepath.Join(dir, "crate_a", "Cargo.toml")), "serde = { workspace = true }\n")
}

func TestRunHoist_dryRun(t *testing.T) {
	dir := setupWorkspace(t)

	out, _, err := execute(t, "", dir, "--non-interactive", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "--- a/Cargo.toml\n+++ b/Cargo.toml\n")
	assert.Contains(t, out, "--- a/crate_b/Cargo.toml\n+++ b/crate_b/Cargo.toml\n")
	assert.Contains(t, out, "-tokio = \"1\"\n+tokio = { workspace = true }\n")
	assert.Contains(t, out, "Dry run: no files were written.\n")
	assert.NotContains(t, out, "Updated")
	assert.Equal(t, rootManifest, readFile(t, filepath.Join(dir, "Cargo.toml")))
}

func TestRunHoist_decisionsAndBackup(t *testing.T) {
	dir := setupWorkspace(t)
	decisions := filepath.Join(t.TempDir(), "decisions.yaml")
	writeFile(t, decisions, "- name: serde\n  version: \"1.0.100\"\n")
	backup := filepath.Join(t.TempDir(), "backup")

	_, _, err := execute(t, "", dir, "--non-interactive", "--decisions", decisions, "--backup", backup)
	require.NoError(t, err)

	assert.Contains(t, readFile(t, filepath.Join(dir, "Cargo.toml")), "serde = { version = \"1.0.100\" }\n")
	assert.Equal(t, rootManifest, readFile(t, filepath.Join(backup, "Cargo.toml")))
	assert.Contains(t, readFile(t, filepath.Join(backup, "crate_b", "Cargo.toml")), "serde = \"1.0.100\"\n")
}

func TestRunHoist_configFile(t *testing.T) {
	dir := setupWorkspace(t)
	writeFile(t, filepath.Join(dir, "cargo-hoist.yaml"), "min_members: 2\nnon_interactive: true\nfallback: first\n")

	out, _, err := execute(t, "", dir)
	require.NoError(t, err)

	root := readFile(t, filepath.Join(dir, "Cargo.toml"))
	assert.Contains(t, root, "serde = { version = \"1.0\" }\n")
	assert.NotContains(t, root, "log")
	assert.Contains(t, readFile(t, filepath.Join(dir, "crate_a", "Cargo.toml")), "log = \"0.4\"\n")
	assert.Contains(t, out, "- deferred: 1\n")
}

func TestRunHoist_flagOverridesConfig(t *testing.T) {
	dir := setupWorkspace(t)
	writeFile(t, filepath.Join(dir, "cargo-hoist.yaml"), "min_members: 2\nnon_interactive: true\n")

	_, _, err := execute(t, "", dir, "--min-members", "1")
	require.NoError(t, err)
	assert.Contains(t, readFile(t, filepath.Join(dir, "Cargo.toml")), "log = { version = \"0.4\" }\n")
}

func TestRunHoist_errors(t *testing.T) {
	dir := setupWorkspace(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no workspace", []string{t.TempDir()}},
		{"missing config", []string{dir, "--config", filepath.Join(dir, "missing.yaml")}},
		{"bad fallback", []string{dir, "--fallback", "ask"}},
		{"bad table", []string{dir, "--table", "features"}},
		{"missing decisions", []string{dir, "--non-interactive", "--decisions", filepath.Join(dir, "missing.yaml")}},
		{"too many args", []string{dir, dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
	assert.Equal(t, rootManifest, readFile(t, filepath.Join(dir, "Cargo.toml")))
}

func TestCheck(t *testing.T) {
	dir := setupWorkspace(t)

	out, _, err := execute(t, "", "check", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 dependency group(s) can be hoisted")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"DEPENDENCY", "TABLE", "CLASS", "MEMBERS", "SOURCES"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"tokio", "dependencies", "uniform", "2", "version:", "1"}, strings.Fields(lines[1]))
	assert.Contains(t, lines[2], "version: 1.0 | version: 1.0.100")
	assert.Equal(t, rootManifest, readFile(t, filepath.Join(dir, "Cargo.toml")))
}

func TestCheck_clean(t *testing.T) {
	dir := setupWorkspace(t)
	_, _, err := execute(t, "", dir, "--non-interactive", "--fallback", "first")
	require.NoError(t, err)

	out, _, err := execute(t, "", "check", dir)
	require.NoError(t, err)
	assert.Equal(t, "No hoistable dependencies found.\n", out)
}

func TestCheck_minMembers(t *testing.T) {
	dir := setupWorkspace(t)

	out, _, err := execute(t, "", "check", dir, "--min-members", "2")
	require.Error(t, err)
	assert.Contains(t, out, "deferred: dependencies.log (1 of 2 members)\n")
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "cargo-hoist version dev\n", out)
}
