package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-builder/internal/model"
	"cv-builder/internal/testutil"
)

type runner struct {
	t       *testing.T
	backend *testutil.Backend
	global  []string
}

func newRunner(t *testing.T) *runner {
	t.Helper()
	color.NoColor = true
	dir := t.TempDir()
	backend := testutil.NewBackend(t)
	return &runner{
		t:       t,
		backend: backend,
		global: []string{
			"--config", filepath.Join(dir, "absent.yml"),
			"--store", "sqlite",
			"--store-path", filepath.Join(dir, "local.db"),
			"--api", backend.URL,
		},
	}
}

func (r *runner) run(args ...string) (string, string, error) {
	r.t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(append([]string{}, r.global...), args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func (r *runner) login() {
	r.t.Helper()
	out, _, err := r.run("login", "--token", testutil.Token, "--user-id", "7", "--email", "ada@example.com")
	require.NoError(r.t, err)
	assert.Contains(r.t, out, "Signed in as 7")
}

func writeDraftFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cv.yml")
	body := `full_name: Ada Lovelace
summary: I write programs for engines
skills: [math, poetry]
experiences:
  - position: Analyst
    company: Babbage & Co
    description: notes on the engine
education:
  - school: Home
    degree: Bachelor
    year: "2019"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestWhoami(t *testing.T) {
	r := newRunner(t)
	out, _, err := r.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not signed in")

	r.login()
	out, _, err = r.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "7 <ada@example.com>\n", out)
}

func TestLoginRequiresFlags(t *testing.T) {
	r := newRunner(t)
	_, _, err := r.run("login", "--token", "x")
	assert.Error(t, err)
}

func TestDraftImportShowAndEnhance(t *testing.T) {
	r := newRunner(t)
	r.login()

	_, _, err := r.run("draft", "import", writeDraftFile(t))
	require.NoError(t, err)

	_, stderr, err := r.run("enhance", "summary")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Summary enhanced")

	out, _, err := r.run("draft", "show", "--format", "json")
	require.NoError(t, err)
	var rec model.FormRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "Ada Lovelace", rec.FullName)
	assert.Equal(t, "Enhanced: I write programs for engines", rec.Summary)
	assert.Equal(t, []string{"math", "poetry"}, rec.Skills)
	require.Len(t, rec.Education, 1)
	assert.Equal(t, "2019", rec.Education[0].Year)

	out, _, err = r.run("draft", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "full_name: Ada Lovelace")
}

func TestDraftImportRejectsInvalidRecord(t *testing.T) {
	r := newRunner(t)
	r.login()
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("full_name: X\neducation:\n  - year: \"1800\"\n"), 0o600))

	_, _, err := r.run("draft", "import", path)
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDraftCommandsNeedSession(t *testing.T) {
	r := newRunner(t)
	_, _, err := r.run("draft", "show")
	assert.ErrorIs(t, err, errSignInFirst)
}

func TestExportDocx(t *testing.T) {
	r := newRunner(t)
	r.login()
	_, _, err := r.run("draft", "import", writeDraftFile(t))
	require.NoError(t, err)

	dir := t.TempDir()
	out, _, err := r.run("export", "docx", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Ada_Lovelace_CV.docx")

	b, err := os.ReadFile(filepath.Join(dir, "Ada_Lovelace_CV.docx"))
	require.NoError(t, err)
	assert.Equal(t, testutil.FakeDOCX, b)
}

func TestPreviewText(t *testing.T) {
	r := newRunner(t)
	r.login()
	_, _, err := r.run("draft", "import", writeDraftFile(t))
	require.NoError(t, err)

	out, _, err := r.run("preview", "--text")
	require.NoError(t, err)
	assert.Contains(t, out, "# Ada Lovelace")
}

func TestLogoutRemovesDrafts(t *testing.T) {
	r := newRunner(t)
	r.login()
	_, _, err := r.run("draft", "import", writeDraftFile(t))
	require.NoError(t, err)

	out, _, err := r.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Local drafts removed")

	r.login()
	out, _, err = r.run("draft", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved draft.")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))

	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f))
}
