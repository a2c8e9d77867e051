// Package usecase runs the user-facing flows of the CV builder: enhancing
// text, previewing and exporting the CV. Each flow validates locally, holds
// the busy gate while a request is in flight and reports its outcome through
// a Notifier.
package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"cv-builder/internal/domain"
	"cv-builder/internal/draft"
	"cv-builder/internal/form"
	"cv-builder/internal/model"
	"cv-builder/pkg/api"
	infra "cv-builder/pkg/infrastructure"
)

var (
	// ErrBusy is returned when another flow is still waiting on the server.
	ErrBusy = errors.New("another request is in progress")
	// ErrNotSignedIn blocks every remote flow without a session.
	ErrNotSignedIn = errors.New("please sign in first")
	// ErrStale reports an enhancement whose target changed while in flight;
	// the reply was dropped.
	ErrStale = errors.New("field changed while the request was in flight")

	ErrNoRenderer = errors.New("no local PDF renderer configured")
)

// Remote is the subset of api.Client the flows call.
type Remote interface {
	EnhanceSummary(ctx context.Context, summary string) (string, error)
	EnhanceExperience(ctx context.Context, e model.Experience) (string, error)
	EnhanceSkills(ctx context.Context, skills []string, experiences []model.Experience) ([]string, error)
	UploadAvatar(ctx context.Context, filename string, r io.Reader) (string, error)
	Export(ctx context.Context, rec model.FormRecord, format string) (*api.Document, error)
	Preview(ctx context.Context, rec model.FormRecord) (string, error)
}

// Sessions is what the flows need from the session manager.
type Sessions interface {
	UserID() string
	SignIn(ctx context.Context, s domain.Session) error
	SignOut(ctx context.Context)
}

type Renderer interface {
	RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error)
}

// Notifier shows non-blocking messages to the user.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

// Busy is the in-flight indicator.
type Busy interface {
	Start(label string)
	Stop()
}

// PreviewMode selects how preview markup is returned.
type PreviewMode int

const (
	PreviewHTML PreviewMode = iota
	PreviewText
)

type Options struct {
	InputDelay  time.Duration
	ChangeDelay time.Duration
	Renderer    Renderer
	Notifier    Notifier
	Busy        Busy
	Log         *zap.Logger
	// VerifyPDF checks an exported pdf before it is handed out. Defaults to
	// infra.CheckPDF.
	VerifyPDF func([]byte) (int, error)
}

type pendingAvatar struct {
	name string
	data []byte
}

// Builder owns one form and the flows that act on it.
type Builder struct {
	model    *form.Model
	drafts   *draft.Drafts
	saver    *draft.AutoSaver
	session  Sessions
	remote   Remote
	renderer Renderer
	notify   Notifier
	busy     Busy
	gate     *semaphore.Weighted
	verify   func([]byte) (int, error)
	log      *zap.Logger

	mu     sync.Mutex
	avatar *pendingAvatar
}

func NewBuilder(m *form.Model, drafts *draft.Drafts, sess Sessions, remote Remote, opts Options) *Builder {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Busy == nil {
		opts.Busy = nopBusy{}
	}
	if opts.VerifyPDF == nil {
		opts.VerifyPDF = infra.CheckPDF
	}
	if opts.InputDelay == 0 {
		opts.InputDelay = draft.DefaultInputDelay
	}
	if opts.ChangeDelay == 0 {
		opts.ChangeDelay = draft.DefaultChangeDelay
	}
	b := &Builder{
		model:    m,
		drafts:   drafts,
		session:  sess,
		remote:   remote,
		renderer: opts.Renderer,
		notify:   opts.Notifier,
		busy:     opts.Busy,
		gate:     semaphore.NewWeighted(1),
		verify:   opts.VerifyPDF,
		log:      opts.Log.Named("builder"),
	}
	b.saver = drafts.ForModel(m, sess.UserID, opts.InputDelay, opts.ChangeDelay)
	return b
}

func (b *Builder) Model() *form.Model { return b.model }

// Load replays the signed-in user's draft into the form.
func (b *Builder) Load(ctx context.Context) bool {
	return b.drafts.RestoreInto(ctx, b.model, b.session.UserID())
}

// SwitchUser signs s in and shows that user's draft. A save still pending
// is written for the previous user first. Without a draft to restore, a new
// user starts from the default form, so nothing typed by someone else ends
// up in their session.
func (b *Builder) SwitchUser(ctx context.Context, s domain.Session) (restored bool, err error) {
	b.saver.Settle(true, func() {
		prev := b.session.UserID()
		if err = b.session.SignIn(ctx, s); err != nil {
			return
		}
		if restored = b.Load(ctx); restored || prev == s.UserID {
			return
		}
		b.reset()
	})
	return restored, err
}

// SignOut drops any pending save, removes every draft and credential and
// resets the form.
func (b *Builder) SignOut(ctx context.Context) {
	b.saver.Settle(false, func() {
		b.session.SignOut(ctx)
		b.reset()
	})
}

func (b *Builder) reset() {
	b.model.Replay(form.NewDefault().Collect())
	b.takeAvatar()
}

// Input schedules an auto-save after typing.
func (b *Builder) Input() { b.saver.Input() }

// Change schedules an auto-save after a discrete change.
func (b *Builder) Change() { b.saver.Change() }

// SaveDraft writes the draft now.
func (b *Builder) SaveDraft() { b.saver.Flush() }

// ClearDraft drops any scheduled save and removes the stored draft.
func (b *Builder) ClearDraft(ctx context.Context) {
	b.saver.Flush()
	b.drafts.Clear(ctx, b.session.UserID())
}

// Close stops auto-saving after writing what is pending.
func (b *Builder) Close() {
	if b.saver.Pending() {
		b.saver.Flush()
	}
	b.saver.Stop()
}

// SetAvatarFile keeps an image to upload before the next export. The
// extension is checked now so the user hears about it early.
func (b *Builder) SetAvatarFile(name string, data []byte) error {
	if !api.AllowedAvatar(name) {
		err := fmt.Errorf("%w: %s", api.ErrUnsupportedImage, name)
		b.notify.Failure("Please choose a PNG, JPG, GIF or WEBP image")
		return err
	}
	b.mu.Lock()
	b.avatar = &pendingAvatar{name: name, data: data}
	b.mu.Unlock()
	return nil
}

func (b *Builder) takeAvatar() *pendingAvatar {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.avatar
	b.avatar = nil
	return a
}

func (b *Builder) restoreAvatar(a *pendingAvatar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.avatar == nil {
		b.avatar = a
	}
}

// begin claims the busy gate for one flow.
func (b *Builder) begin(label string) (func(), error) {
	if !b.gate.TryAcquire(1) {
		b.notify.Failure("Please wait for the current request to finish")
		return nil, ErrBusy
	}
	b.busy.Start(label)
	return func() {
		b.busy.Stop()
		b.gate.Release(1)
	}, nil
}

func (b *Builder) check(r *CheckResult) error {
	if err := r.Err(); err != nil {
		b.notify.Failure(r.Message)
		return err
	}
	return nil
}

func (b *Builder) requireSession() error {
	if b.session.UserID() == "" {
		b.notify.Failure("Please sign in first")
		return ErrNotSignedIn
	}
	return nil
}

// remoteFailed reports err and signs out on an expired credential.
func (b *Builder) remoteFailed(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		b.log.Warn("credential rejected, signing out", zap.String("op", op))
		b.SignOut(ctx)
		b.notify.Failure("Your session has expired. Please sign in again")
	case errors.Is(err, context.Canceled):
	default:
		b.log.Warn("request failed", zap.String("op", op), zap.Error(err))
		var re *api.RemoteError
		if errors.As(err, &re) && re.Message != "" {
			b.notify.Failure(re.Message)
		} else {
			b.notify.Failure("Could not reach the server, please try again")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// EnhanceSummary replaces the summary with the server's rewrite unless the
// user edited it meanwhile.
func (b *Builder) EnhanceSummary(ctx context.Context) error {
	if err := b.requireSession(); err != nil {
		return err
	}
	if err := b.check(CheckSummary(b.model)); err != nil {
		return err
	}
	done, err := b.begin("Enhancing summary")
	if err != nil {
		return err
	}
	defer done()

	before := b.model.Personal(form.PersonalSummary)
	text, err := b.remote.EnhanceSummary(ctx, before)
	if err != nil {
		return b.remoteFailed(ctx, "enhance summary", err)
	}
	ok, err := b.model.CompareAndSetPersonal(form.PersonalSummary, before, text)
	if err != nil {
		return err
	}
	if !ok {
		b.log.Info("stale summary enhancement dropped")
		return ErrStale
	}
	b.saver.Change()
	b.notify.Success("Summary enhanced")
	return nil
}

// EnhanceExperience rewrites the description of the experience at pos.
func (b *Builder) EnhanceExperience(ctx context.Context, pos int) error {
	if err := b.requireSession(); err != nil {
		return err
	}
	if err := b.check(CheckExperience(b.model, pos)); err != nil {
		return err
	}
	done, err := b.begin("Enhancing experience")
	if err != nil {
		return err
	}
	defer done()

	ref := func(f string) form.FieldRef { return form.FieldRef{Section: form.Experience, Position: pos, Field: f} }
	var e model.Experience
	e.Position, _ = b.model.Get(ref(form.FieldPosition))
	e.Company, _ = b.model.Get(ref(form.FieldCompany))
	e.Description, _ = b.model.Get(ref(form.FieldDescription))

	text, err := b.remote.EnhanceExperience(ctx, e)
	if err != nil {
		return b.remoteFailed(ctx, "enhance experience", err)
	}
	// the item may have been removed or shifted while waiting
	if p, _ := b.model.Get(ref(form.FieldPosition)); p != e.Position {
		return ErrStale
	}
	if c, _ := b.model.Get(ref(form.FieldCompany)); c != e.Company {
		return ErrStale
	}
	ok, err := b.model.CompareAndSet(ref(form.FieldDescription), e.Description, text)
	if err != nil || !ok {
		b.log.Info("stale experience enhancement dropped", zap.Int("position", pos))
		return ErrStale
	}
	b.saver.Change()
	b.notify.Success("Experience description enhanced")
	return nil
}

// EnhanceSkills replaces the skill list with the server's suggestion.
func (b *Builder) EnhanceSkills(ctx context.Context) error {
	if err := b.requireSession(); err != nil {
		return err
	}
	if err := b.check(CheckSkills(b.model)); err != nil {
		return err
	}
	done, err := b.begin("Enhancing skills")
	if err != nil {
		return err
	}
	defer done()

	before := b.model.Personal(form.PersonalSkills)
	rec := b.model.Collect()
	list, err := b.remote.EnhanceSkills(ctx, rec.Skills, rec.Experiences)
	if err != nil {
		return b.remoteFailed(ctx, "enhance skills", err)
	}
	ok, err := b.model.CompareAndSetPersonal(form.PersonalSkills, before, model.JoinSkills(list))
	if err != nil {
		return err
	}
	if !ok {
		return ErrStale
	}
	b.saver.Change()
	b.notify.Success("Skills enhanced")
	return nil
}

// prepare collects and checks the record, then saves it as the draft.
func (b *Builder) prepare() (model.FormRecord, error) {
	if err := b.requireSession(); err != nil {
		return model.FormRecord{}, err
	}
	rec := b.model.Collect()
	if err := b.check(CheckRecord(rec)); err != nil {
		return model.FormRecord{}, err
	}
	b.saver.Flush()
	return rec, nil
}

// Preview returns the server-rendered CV, sanitized, as HTML or as Markdown.
func (b *Builder) Preview(ctx context.Context, mode PreviewMode) (string, error) {
	rec, err := b.prepare()
	if err != nil {
		return "", err
	}
	done, err := b.begin("Generating preview")
	if err != nil {
		return "", err
	}
	defer done()

	markup, err := b.preview(ctx, rec)
	if err != nil {
		return "", err
	}
	if mode == PreviewText {
		text, err := infra.PreviewMarkdown(markup)
		if err != nil {
			b.notify.Failure("Could not convert the preview to text")
			return "", fmt.Errorf("preview: %w", err)
		}
		return text, nil
	}
	return markup, nil
}

func (b *Builder) preview(ctx context.Context, rec model.FormRecord) (string, error) {
	markup, err := b.remote.Preview(ctx, rec)
	if err != nil {
		return "", b.remoteFailed(ctx, "preview", err)
	}
	return infra.SanitizePreview(markup), nil
}

// PreviewPDF prints the sanitized preview to PDF with the local browser.
func (b *Builder) PreviewPDF(ctx context.Context) ([]byte, error) {
	if b.renderer == nil {
		return nil, ErrNoRenderer
	}
	rec, err := b.prepare()
	if err != nil {
		return nil, err
	}
	done, err := b.begin("Printing preview")
	if err != nil {
		return nil, err
	}
	defer done()

	markup, err := b.preview(ctx, rec)
	if err != nil {
		return nil, err
	}
	pdf, err := b.renderer.RenderHTMLToPDF(ctx, markup)
	if err != nil {
		b.log.Error("local print failed", zap.Error(err))
		b.notify.Failure("Could not print the preview")
		return nil, fmt.Errorf("print preview: %w", err)
	}
	return pdf, nil
}

// Export uploads a pending avatar if the record has none, then asks the
// server for the document in format.
func (b *Builder) Export(ctx context.Context, format string) (*api.Document, error) {
	format = strings.ToLower(format)
	if format != api.FormatPDF && format != api.FormatDOCX {
		b.notify.Failure("Unsupported export format " + format)
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
	rec, err := b.prepare()
	if err != nil {
		return nil, err
	}
	done, err := b.begin("Exporting " + strings.ToUpper(format))
	if err != nil {
		return nil, err
	}
	defer done()

	if rec.AvatarURL == "" {
		if a := b.takeAvatar(); a != nil {
			url, err := b.remote.UploadAvatar(ctx, a.name, bytes.NewReader(a.data))
			if err != nil {
				b.restoreAvatar(a)
				return nil, b.remoteFailed(ctx, "upload avatar", err)
			}
			rec.AvatarURL = url
			if ok, _ := b.model.CompareAndSetPersonal(form.PersonalAvatarURL, "", url); ok {
				b.saver.Change()
			}
		}
	}

	doc, err := b.remote.Export(ctx, rec, format)
	if err != nil {
		return nil, b.remoteFailed(ctx, "export", err)
	}
	if format == api.FormatPDF {
		pages, err := b.verify(doc.Data)
		if err != nil {
			b.log.Error("exported pdf rejected", zap.Error(err))
			b.notify.Failure("The server returned a damaged PDF, please try again")
			return nil, fmt.Errorf("export: %w", err)
		}
		b.log.Info("pdf exported", zap.Int("pages", pages), zap.Int("bytes", len(doc.Data)))
	}
	b.notify.Success("CV exported as " + doc.FileName)
	return doc, nil
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Failure(string) {}

type nopBusy struct{}

func (nopBusy) Start(string) {}
func (nopBusy) Stop()        {}
