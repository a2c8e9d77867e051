package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-builder/internal/domain"
	"cv-builder/internal/draft"
	"cv-builder/internal/form"
	"cv-builder/internal/session"
	"cv-builder/internal/testutil"
	"cv-builder/pkg/api"
)

type recorder struct {
	mu       sync.Mutex
	success  []string
	failure  []string
	started  []string
	inFlight int
}

func (r *recorder) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, msg)
}

func (r *recorder) Failure(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = append(r.failure, msg)
}

func (r *recorder) Start(label string) {
	r.mu.Lock()
	r.started = append(r.started, label)
	r.inFlight++
	r.mu.Unlock()
}

func (r *recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
}

func (r *recorder) failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failure...)
}

type fakeRenderer struct{ html string }

func (f *fakeRenderer) RenderHTMLToPDF(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF-local"), nil
}

type fixture struct {
	builder  *Builder
	backend  *testutil.Backend
	store    *draft.MemoryStore
	drafts   *draft.Drafts
	sessions *session.Manager
	rec      *recorder
	renderer *fakeRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	backend := testutil.NewBackend(t)
	store := draft.NewMemoryStore()
	drafts := draft.New(store, nil)
	sessions := session.NewManager(store, drafts, nil)
	require.NoError(t, sessions.SignIn(ctx, domain.Session{AccessToken: testutil.Token, UserID: "42"}))

	client := api.NewClient(backend.URL, 5*time.Second, sessions.Token, nil)
	rec := &recorder{}
	renderer := &fakeRenderer{}
	b := NewBuilder(form.NewDefault(), drafts, sessions, client, Options{
		InputDelay:  time.Hour,
		ChangeDelay: time.Hour,
		Notifier:    rec,
		Busy:        rec,
		Renderer:    renderer,
		VerifyPDF:   func([]byte) (int, error) { return 1, nil },
	})
	t.Cleanup(b.Close)
	return &fixture{builder: b, backend: backend, store: store, drafts: drafts, sessions: sessions, rec: rec, renderer: renderer}
}

func expRef(pos int, f string) form.FieldRef {
	return form.FieldRef{Section: form.Experience, Position: pos, Field: f}
}

func TestEnhanceSummary(t *testing.T) {
	f := newFixture(t)
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalSummary, "I build things"))

	require.NoError(t, f.builder.EnhanceSummary(context.Background()))
	assert.Equal(t, "Enhanced: I build things", m.Personal(form.PersonalSummary))
	assert.Equal(t, []string{"Summary enhanced"}, f.rec.success)
	assert.Equal(t, []string{"Enhancing summary"}, f.rec.started)
	assert.Equal(t, 0, f.rec.inFlight)
}

func TestEnhanceSummaryRequiresText(t *testing.T) {
	f := newFixture(t)
	err := f.builder.EnhanceSummary(context.Background())

	var ce *CheckError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{form.PersonalSummary}, ce.Missing)
	assert.Equal(t, 0, f.backend.Calls("/enhance"))
	assert.Equal(t, []string{"Please enter a summary first"}, f.rec.failures())
}

func TestEnhanceExperience(t *testing.T) {
	f := newFixture(t)
	m := f.builder.Model()
	require.NoError(t, m.Set(expRef(0, form.FieldPosition), "Engineer"))
	require.NoError(t, m.Set(expRef(0, form.FieldCompany), "Acme"))
	require.NoError(t, m.Set(expRef(0, form.FieldDescription), "wrote code"))

	require.NoError(t, f.builder.EnhanceExperience(context.Background(), 0))
	got, err := m.Get(expRef(0, form.FieldDescription))
	require.NoError(t, err)
	assert.Equal(t, "Improved: wrote code", got)
}

func TestEnhanceExperienceRequiresPositionAndCompany(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.builder.Model().Set(expRef(0, form.FieldPosition), "Engineer"))

	err := f.builder.EnhanceExperience(context.Background(), 0)
	var ce *CheckError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"exp_company_0"}, ce.Missing)
	assert.Equal(t, 0, f.backend.Calls("/enhance"))

	err = f.builder.EnhanceExperience(context.Background(), 5)
	assert.ErrorAs(t, err, &ce)
}

func TestEnhanceSkills(t *testing.T) {
	f := newFixture(t)
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalSkills, "go, sql,,\nk8s"))

	require.NoError(t, f.builder.EnhanceSkills(context.Background()))
	body := f.backend.LastBody("/enhance")
	assert.Equal(t, []interface{}{"go", "sql", "k8s"}, body["skills"])
	assert.NotEmpty(t, m.Personal(form.PersonalSkills))
}

func TestEnhanceStaleReplyIgnored(t *testing.T) {
	f := newFixture(t)
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalSummary, "first"))

	hold := make(chan struct{})
	f.backend.SetHold(hold)
	errc := make(chan error, 1)
	go func() { errc <- f.builder.EnhanceSummary(context.Background()) }()

	require.Eventually(t, func() bool { return f.backend.Calls("/enhance") == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, m.SetPersonal(form.PersonalSummary, "typed meanwhile"))
	close(hold)

	assert.ErrorIs(t, <-errc, ErrStale)
	assert.Equal(t, "typed meanwhile", m.Personal(form.PersonalSummary))
}

func TestSecondFlowIsBusy(t *testing.T) {
	f := newFixture(t)
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalSummary, "first"))
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Ada Lovelace"))

	hold := make(chan struct{})
	f.backend.SetHold(hold)
	errc := make(chan error, 1)
	go func() { errc <- f.builder.EnhanceSummary(context.Background()) }()
	require.Eventually(t, func() bool { return f.backend.Calls("/enhance") == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err := f.builder.Export(context.Background(), api.FormatPDF)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 0, f.backend.Calls("/export-temp"))

	close(hold)
	require.NoError(t, <-errc)

	f.backend.SetHold(nil)
	_, err = f.builder.Export(context.Background(), api.FormatPDF)
	assert.NoError(t, err)
}

func TestRemoteFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalSummary, "keep me"))
	f.backend.SetFail(http.StatusInternalServerError, "model overloaded")

	err := f.builder.EnhanceSummary(context.Background())
	var re *api.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "keep me", m.Personal(form.PersonalSummary))
	assert.Equal(t, []string{"model overloaded"}, f.rec.failures())
	assert.Equal(t, 0, f.rec.inFlight)
}

func TestUnauthorizedSignsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Ada"))
	f.builder.SaveDraft()
	f.drafts.Save(ctx, m.Collect(), "someone-else")

	// a credential the backend does not accept
	require.NoError(t, f.store.Set(ctx, session.KeyAccessToken, "expired"))

	_, err := f.builder.Preview(ctx, PreviewHTML)
	assert.ErrorIs(t, err, api.ErrUnauthorized)

	_, err = f.sessions.Current(ctx)
	assert.ErrorIs(t, err, session.ErrNotSignedIn)
	assert.Empty(t, f.drafts.Users(ctx))
	assert.Equal(t, 0, f.store.Len())

	err = f.builder.EnhanceSummary(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestPreviewSanitizesAndSavesDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Ada Lovelace"))

	html, err := f.builder.Preview(ctx, PreviewHTML)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Ada Lovelace</h1>")
	assert.NotContains(t, html, "<script")

	saved, ok := f.drafts.Restore(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", saved.FullName)

	text, err := f.builder.Preview(ctx, PreviewText)
	require.NoError(t, err)
	assert.Contains(t, text, "# Ada Lovelace")
}

func TestPreviewRequiresFullName(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder.Preview(context.Background(), PreviewHTML)

	var ce *CheckError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, f.backend.Calls("/preview-temp"))
	assert.Equal(t, []string{"Please enter your full name"}, f.rec.failures())
}

func TestPreviewPDF(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.builder.Model().SetPersonal(form.PersonalFullName, "Ada"))

	pdf, err := f.builder.PreviewPDF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-local"), pdf)
	assert.Contains(t, f.renderer.html, "<h1>Ada</h1>")
	assert.NotContains(t, f.renderer.html, "<script")
}

func TestExportUploadsPendingAvatar(t *testing.T) {
	f := newFixture(t)
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Ada Lovelace"))
	require.NoError(t, f.builder.SetAvatarFile("me.png", []byte("png-bytes")))

	doc, err := f.builder.Export(context.Background(), "PDF")
	require.NoError(t, err)
	assert.Equal(t, "Ada_Lovelace_CV.pdf", doc.FileName)
	assert.Equal(t, testutil.FakePDF, doc.Data)
	assert.Equal(t, 1, f.backend.Calls("/upload-avatar"))
	assert.Equal(t, "/static/uploads/avatars/me.png", m.Personal(form.PersonalAvatarURL))
	assert.Equal(t, "/static/uploads/avatars/me.png", f.backend.LastBody("/export-temp")["avatar_url"])

	// the avatar is uploaded once
	_, err = f.builder.Export(context.Background(), api.FormatDOCX)
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Calls("/upload-avatar"))
}

func TestExportRejectsBadAvatarAndFormat(t *testing.T) {
	f := newFixture(t)
	err := f.builder.SetAvatarFile("me.bmp", nil)
	assert.ErrorIs(t, err, api.ErrUnsupportedImage)

	require.NoError(t, f.builder.Model().SetPersonal(form.PersonalFullName, "Ada"))
	_, err = f.builder.Export(context.Background(), "odt")
	assert.Error(t, err)
	assert.Equal(t, 0, f.backend.Calls("/export-temp"))
}

func TestExportRejectsDamagedPDF(t *testing.T) {
	f := newFixture(t)
	f.builder.verify = func([]byte) (int, error) { return 0, errors.New("xref missing") }
	require.NoError(t, f.builder.Model().SetPersonal(form.PersonalFullName, "Ada"))

	_, err := f.builder.Export(context.Background(), api.FormatPDF)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "xref missing"))
}

func TestLoadRestoresDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Ada"))
	m.Add(form.Language)
	f.builder.SaveDraft()

	m.Replay(form.New().Collect())
	assert.Equal(t, "", m.Personal(form.PersonalFullName))

	require.True(t, f.builder.Load(ctx))
	assert.Equal(t, "Ada", m.Personal(form.PersonalFullName))
	assert.Equal(t, 1, m.Len(form.Language))

	f.builder.ClearDraft(ctx)
	assert.False(t, f.builder.Load(ctx))
}

func TestSwitchUserStartsFromDefaultForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Alice Secret"))
	m.Add(form.Project)
	require.NoError(t, f.builder.SetAvatarFile("alice.png", []byte("png")))
	f.builder.Input()

	restored, err := f.builder.SwitchUser(ctx, domain.Session{AccessToken: testutil.Token, UserID: "43"})
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, "43", f.sessions.UserID())
	assert.Equal(t, form.NewDefault().Collect(), m.Collect())
	assert.Nil(t, f.builder.takeAvatar())

	// the pending save was written for the previous user
	prev, ok := f.drafts.Restore(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, "Alice Secret", prev.FullName)

	f.builder.SaveDraft()
	mine, ok := f.drafts.Restore(ctx, "43")
	require.True(t, ok)
	assert.Equal(t, "", mine.FullName)

	restored, err = f.builder.SwitchUser(ctx, domain.Session{AccessToken: testutil.Token, UserID: "42"})
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, "Alice Secret", m.Personal(form.PersonalFullName))
	assert.Equal(t, 1, m.Len(form.Project))
}

func TestSwitchUserSameUserKeepsForm(t *testing.T) {
	f := newFixture(t)
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Ada"))

	restored, err := f.builder.SwitchUser(context.Background(), domain.Session{AccessToken: testutil.Token, UserID: "42"})
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, "Ada", m.Personal(form.PersonalFullName))
}

func TestSwitchUserRejectsIncompleteSession(t *testing.T) {
	f := newFixture(t)
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Ada"))

	_, err := f.builder.SwitchUser(context.Background(), domain.Session{UserID: "43"})
	assert.Error(t, err)
	assert.Equal(t, "42", f.sessions.UserID())
	assert.Equal(t, "Ada", m.Personal(form.PersonalFullName))
}

func TestSignOutDropsPendingSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.builder.Model()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Ada"))
	f.builder.Input()

	f.builder.SignOut(ctx)
	assert.False(t, f.builder.saver.Pending())
	assert.Equal(t, "", f.sessions.UserID())
	assert.Equal(t, "", m.Personal(form.PersonalFullName))
	assert.Equal(t, 0, f.store.Len())

	require.NoError(t, f.sessions.SignIn(ctx, domain.Session{AccessToken: testutil.Token, UserID: "43"}))
	_, ok := f.drafts.Restore(ctx, "43")
	assert.False(t, ok)
}
