package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memberManifest = `[package]
name = "crate-a"
version = "0.1.0"

[dependencies]
# shared across the workspace
serde = "1.0"
tonic = { version = "0.8.3", features = ["tls"] } # grpc
local = { path = "../shared" }

[dependencies.tokio]
version = "1"
features = [
    "full",
]

[dev-dependencies]
pretty = { workspace = true }
`

func TestParse_roundTrip(t *testing.T) {
	doc, err := Parse([]byte(memberManifest))
	require.NoError(t, err)
	assert.Equal(t, memberManifest, doc.String())
	assert.Equal(t, []byte(memberManifest), doc.Bytes())
}

func TestParse_invalid(t *testing.T) {
	_, err := Parse([]byte("[dependencies\nserde = \"1\"\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("[dependencies]\nserde = \"1\"\nserde = \"2\"\n"))
	assert.Error(t, err, "duplicate keys are rejected")
}

func TestDocument_Table(t *testing.T) {
	doc, err := Parse([]byte(memberManifest))
	require.NoError(t, err)

	pkg, ok := doc.Table("package")
	require.True(t, ok)
	assert.Equal(t, "crate-a", pkg["name"])

	_, ok = doc.Table("workspace")
	assert.False(t, ok)

	tokio, ok := doc.Table("dependencies", "tokio")
	require.True(t, ok)
	assert.Equal(t, "1", tokio["version"])
}

func TestDocument_Dependencies(t *testing.T) {
	doc, err := Parse([]byte(memberManifest))
	require.NoError(t, err)

	deps := doc.Dependencies(Regular)
	require.Len(t, deps, 4)

	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
		assert.Equal(t, Regular, d.Table)
	}
	assert.Equal(t, []string{"serde", "tonic", "local", "tokio"}, names)

	assert.Equal(t, LayoutInline, deps[0].Layout)
	assert.Equal(t, "1.0", deps[0].Value)
	assert.Empty(t, deps[0].Attrs)

	assert.Equal(t, LayoutInline, deps[1].Layout)
	assert.Equal(t, []Attr{
		{Key: "version", Raw: `"0.8.3"`},
		{Key: "features", Raw: `["tls"]`},
	}, deps[1].Attrs)
	tonic, ok := deps[1].Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0.8.3", tonic["version"])

	assert.Equal(t, LayoutTable, deps[3].Layout)
	assert.Equal(t, []Attr{
		{Key: "version", Raw: `"1"`},
		{Key: "features", Raw: "[\n    \"full\",\n]"},
	}, deps[3].Attrs)

	dev := doc.Dependencies(Dev)
	require.Len(t, dev, 1)
	assert.Equal(t, "pretty", dev[0].Name)

	assert.Empty(t, doc.Dependencies(Build))
}

func TestDocument_Dependency(t *testing.T) {
	doc, err := Parse([]byte(memberManifest))
	require.NoError(t, err)

	dep, ok := doc.Dependency(Regular, "local")
	require.True(t, ok)
	assert.Equal(t, []Attr{{Key: "path", Raw: `"../shared"`}}, dep.Attrs)

	_, ok = doc.Dependency(Regular, "missing")
	assert.False(t, ok)
}

func TestDocument_dottedLayout(t *testing.T) {
	doc, err := Parse([]byte("[dependencies]\nfoo.version = \"1\"\nfoo.optional = true\n"))
	require.NoError(t, err)

	dep, ok := doc.Dependency(Regular, "foo")
	require.True(t, ok)
	assert.Equal(t, LayoutDotted, dep.Layout)
	assert.Equal(t, []Attr{
		{Key: "version", Raw: `"1"`},
		{Key: "optional", Raw: "true"},
	}, dep.Attrs)

	err = doc.ReferenceWorkspace(Regular, "foo", nil)
	assert.ErrorIs(t, err, ErrUnsupportedLayout)
}

func TestDocument_otherLayout(t *testing.T) {
	doc, err := Parse([]byte("dependencies.foo = \"1\"\n"))
	require.NoError(t, err)

	dep, ok := doc.Dependency(Regular, "foo")
	require.True(t, ok)
	assert.Equal(t, LayoutOther, dep.Layout)
	assert.Equal(t, "1", dep.Value)
}

func TestReferenceWorkspace_inline(t *testing.T) {
	doc, err := Parse([]byte(memberManifest))
	require.NoError(t, err)

	require.NoError(t, doc.ReferenceWorkspace(Regular, "tonic", []string{"features"}))
	require.NoError(t, doc.ReferenceWorkspace(Regular, "serde", nil))

	want := `[package]
name = "crate-a"
version = "0.1.0"

[dependencies]
# shared across the workspace
serde = { workspace = true }
tonic = { workspace = true, features = ["tls"] } # grpc
local = { path = "../shared" }

[dependencies.tokio]
version = "1"
features = [
    "full",
]

[dev-dependencies]
pretty = { workspace = true }
`
	assert.Equal(t, want, doc.String())

	tonic, ok := doc.Table("dependencies", "tonic")
	require.True(t, ok)
	assert.Equal(t, true, tonic["workspace"])
	assert.NotContains(t, tonic, "version")
}

func TestReferenceWorkspace_table(t *testing.T) {
	doc, err := Parse([]byte(memberManifest))
	require.NoError(t, err)

	require.NoError(t, doc.ReferenceWorkspace(Regular, "tokio", []string{"features"}))

	want := `[dependencies.tokio]
workspace = true
features = [
    "full",
]
`
	assert.Contains(t, doc.String(), want)

	tokio, ok := doc.Table("dependencies", "tokio")
	require.True(t, ok)
	assert.Equal(t, true, tokio["workspace"])
	assert.NotContains(t, tokio, "version")
}

func TestReferenceWorkspace_tableWithOnlyExtras(t *testing.T) {
	src := "[dependencies.foo]\nfeatures = [\"a\"]\n"
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	require.NoError(t, doc.ReferenceWorkspace(Regular, "foo", []string{"features"}))
	assert.Equal(t, "[dependencies.foo]\nworkspace = true\nfeatures = [\"a\"]\n", doc.String())
}

func TestReferenceWorkspace_missing(t *testing.T) {
	doc, err := Parse([]byte(memberManifest))
	require.NoError(t, err)

	err = doc.ReferenceWorkspace(Build, "serde", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, memberManifest, doc.String())
}

func TestReferenceWorkspace_crlf(t *testing.T) {
	doc, err := Parse([]byte("[dependencies]\r\nserde = \"1.0\"\r\n"))
	require.NoError(t, err)

	require.NoError(t, doc.ReferenceWorkspace(Regular, "serde", nil))
	assert.Equal(t, "[dependencies]\r\nserde = { workspace = true }\r\n", doc.String())
}

const rootManifest = `# workspace root
[workspace]
members = ["a", "b"]

[profile.release]
lto = true
`

func TestSetWorkspaceDependency_createsTable(t *testing.T) {
	doc, err := Parse([]byte(rootManifest))
	require.NoError(t, err)

	require.NoError(t, doc.SetWorkspaceDependency("serde", []Field{{Key: "version", Value: Quote("1.0")}}, nil))
	require.NoError(t, doc.SetWorkspaceDependency("anyhow", []Field{{Key: "version", Value: Quote("1")}}, nil))

	want := `# workspace root
[workspace]
members = ["a", "b"]

[workspace.dependencies]
serde = { version = "1.0" }
anyhow = { version = "1" }

[profile.release]
lto = true
`
	assert.Equal(t, want, doc.String())

	deps := doc.Dependencies(Workspace)
	require.Len(t, deps, 2)
	assert.Equal(t, "serde", deps[0].Name)
}

func TestSetWorkspaceDependency_appendsToExisting(t *testing.T) {
	src := "[workspace]\nmembers = []\n\n[workspace.dependencies]\nlog = \"0.4\"\n\n# tail\n"
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	fields := []Field{{Key: "git", Value: Quote("https://example.com/x.git")}, {Key: "branch", Value: Quote("main")}}
	require.NoError(t, doc.SetWorkspaceDependency("x", fields, nil))

	want := "[workspace]\nmembers = []\n\n[workspace.dependencies]\nlog = \"0.4\"\n" +
		"x = { git = \"https://example.com/x.git\", branch = \"main\" }\n\n# tail\n"
	assert.Equal(t, want, doc.String())
}

func TestSetWorkspaceDependency_updatesKeepingExtras(t *testing.T) {
	src := "[workspace.dependencies]\nserde = { version = \"1.0\", features = [\"derive\"] } # pinned\n"
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	require.NoError(t, doc.SetWorkspaceDependency("serde", []Field{{Key: "version", Value: Quote("1.0.100")}}, []string{"features"}))
	assert.Equal(t, "[workspace.dependencies]\nserde = { version = \"1.0.100\", features = [\"derive\"] } # pinned\n", doc.String())
}

func TestSetWorkspaceDependency_updatesTableLayout(t *testing.T) {
	src := "[workspace.dependencies.serde]\n  version = \"1.0\"\n  features = [\"derive\"]\n"
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	require.NoError(t, doc.SetWorkspaceDependency("serde", []Field{{Key: "path", Value: Quote("vendor/serde")}}, []string{"features"}))
	assert.Equal(t, "[workspace.dependencies.serde]\n  path = \"vendor/serde\"\n  features = [\"derive\"]\n", doc.String())
}

func TestSetWorkspaceDependency_noWorkspaceHeader(t *testing.T) {
	doc, err := Parse([]byte("[package]\nname = \"x\""))
	require.NoError(t, err)

	require.NoError(t, doc.SetWorkspaceDependency("foo", []Field{{Key: "path", Value: Quote("crates/foo")}}, nil))
	assert.Equal(t, "[package]\nname = \"x\"\n\n[workspace.dependencies]\nfoo = { path = \"crates/foo\" }\n", doc.String())
}

func TestSetWorkspaceDependency_inlineWorkspaceTable(t *testing.T) {
	doc, err := Parse([]byte("[workspace]\ndependencies = { log = \"0.4\" }\n"))
	require.NoError(t, err)

	err = doc.SetWorkspaceDependency("serde", []Field{{Key: "version", Value: Quote("1")}}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedLayout)
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.0", `"1.0"`},
		{`a"b`, `"a\"b"`},
		{`C:\path`, `"C:\\path"`},
		{"tab\there", `"tab\there"`},
		{"\x01", `"\u0001"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in))
		})
	}
}

func TestFormatKey(t *testing.T) {
	assert.Equal(t, "serde_json", FormatKey("serde_json"))
	assert.Equal(t, "tokio-util", FormatKey("tokio-util"))
	assert.Equal(t, `"a.b"`, FormatKey("a.b"))
}

func TestInlineTable(t *testing.T) {
	assert.Equal(t, "{}", InlineTable(nil))
	assert.Equal(t, `{ git = "u", tag = "v1" }`, InlineTable([]Field{{Key: "git", Value: `"u"`}, {Key: "tag", Value: `"v1"`}}))
}

func TestParseTable(t *testing.T) {
	tbl, err := ParseTable("dev-dependencies")
	require.NoError(t, err)
	assert.Equal(t, Dev, tbl)

	_, err = ParseTable("workspace.dependencies")
	assert.Error(t, err)
}
