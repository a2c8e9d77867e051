package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"cv-builder/internal/domain"
	"cv-builder/internal/form"
	"cv-builder/internal/session"
	"cv-builder/internal/usecase"
	"cv-builder/pkg/api"
)

// Handler serves the local form page and its actions.
type Handler struct {
	builder  *usecase.Builder
	sessions *session.Manager
	log      *zap.Logger
}

func NewHandler(b *usecase.Builder, s *session.Manager, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{builder: b, sessions: s, log: log.Named("http")}
}

// Register mounts every route on app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/", h.Page)
	app.Post("/sections/:section/items", h.AddItem)
	app.Delete("/sections/:section/items/:pos", h.RemoveItem)
	app.Post("/experience/:pos/current", h.ToggleCurrent)
	app.Post("/form", h.SubmitForm)
	app.Get("/form/record", h.Record)
	app.Post("/session", h.SignIn)
	app.Delete("/session", h.SignOut)
	app.Delete("/draft", h.ClearDraft)
	app.Post("/enhance/summary", h.EnhanceSummary)
	app.Post("/enhance/skills", h.EnhanceSkills)
	app.Post("/enhance/experience/:pos", h.EnhanceExperience)
	app.Post("/preview", h.Preview)
	app.Post("/preview/pdf", h.PreviewPDF)
	app.Post("/export/:format", h.Export)
}

func (h *Handler) page() form.PageView {
	view := form.BuildView(h.builder.Model())
	if uid := h.sessions.UserID(); uid != "" {
		view.SignedIn = true
		view.UserID = uid
	}
	return view
}

func (h *Handler) Page(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return form.Render(c, h.page())
}

func (h *Handler) renderSection(c *fiber.Ctx, s form.Section) error {
	c.Type("html", "utf-8")
	return form.RenderSection(c, h.page().SectionOf(s))
}

func (h *Handler) AddItem(c *fiber.Ctx) error {
	s, err := form.ParseSection(c.Params("section"))
	if err != nil {
		return fail(c, fiber.StatusNotFound, err.Error())
	}
	pos := h.builder.Model().Add(s)
	h.builder.Change()
	c.Set("X-Item-Position", strconv.Itoa(pos))
	c.Status(fiber.StatusCreated)
	return h.renderSection(c, s)
}

func (h *Handler) RemoveItem(c *fiber.Ctx) error {
	s, err := form.ParseSection(c.Params("section"))
	if err != nil {
		return fail(c, fiber.StatusNotFound, err.Error())
	}
	pos, err := c.ParamsInt("pos")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid position")
	}
	if !h.builder.Model().Remove(s, pos) {
		return fail(c, fiber.StatusNotFound, "no item at that position")
	}
	h.builder.Change()
	return h.renderSection(c, s)
}

type toggleReq struct {
	Current bool `json:"current" form:"current"`
}

func (h *Handler) ToggleCurrent(c *fiber.Ctx) error {
	pos, err := c.ParamsInt("pos")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid position")
	}
	var req toggleReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid payload")
	}
	m := h.builder.Model()
	if !m.ToggleCurrentJob(pos, req.Current) {
		return fail(c, fiber.StatusNotFound, "no experience at that position")
	}
	h.builder.Change()
	return c.JSON(fiber.Map{"position": pos, "current": req.Current, "end_disabled": m.EndDateDisabled(pos)})
}

// SubmitForm binds the posted inputs. event=input debounces the auto-save
// as typing, anything else as a discrete change. A multipart post may carry
// an avatar file, kept for upload at export.
func (h *Handler) SubmitForm(c *fiber.Ctx) error {
	values := url.Values{}
	if mf, err := c.MultipartForm(); err == nil {
		for k, vs := range mf.Value {
			values[k] = vs
		}
		if files := mf.File["avatar"]; len(files) > 0 {
			fh := files[0]
			f, err := fh.Open()
			if err != nil {
				return fail(c, fiber.StatusBadRequest, "unreadable avatar")
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return fail(c, fiber.StatusBadRequest, "unreadable avatar")
			}
			if err := h.builder.SetAvatarFile(fh.Filename, data); err != nil {
				return fail(c, fiber.StatusUnprocessableEntity, err.Error())
			}
		}
	} else {
		parsed, err := url.ParseQuery(string(c.Body()))
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid form body")
		}
		values = parsed
	}

	if orphans := h.builder.Model().Bind(values); len(orphans) > 0 {
		h.log.Warn("inputs for missing items ignored", zap.Strings("names", orphans))
	}
	if c.Query("event") == "input" {
		h.builder.Input()
	} else {
		h.builder.Change()
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) Record(c *fiber.Ctx) error {
	return c.JSON(h.builder.Model().Collect())
}

func (h *Handler) SignIn(c *fiber.Ctx) error {
	var s domain.Session
	if err := c.BodyParser(&s); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid payload")
	}
	restored, err := h.builder.SwitchUser(context.Background(), s)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"user_id": s.UserID, "restored": restored})
}

// SignOut clears every draft and credential and resets the form.
func (h *Handler) SignOut(c *fiber.Ctx) error {
	h.builder.SignOut(context.Background())
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ClearDraft(c *fiber.Ctx) error {
	h.builder.ClearDraft(context.Background())
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) EnhanceSummary(c *fiber.Ctx) error {
	if err := h.builder.EnhanceSummary(c.UserContext()); err != nil {
		return h.flowError(c, err)
	}
	return c.JSON(fiber.Map{"summary": h.builder.Model().Personal(form.PersonalSummary)})
}

func (h *Handler) EnhanceSkills(c *fiber.Ctx) error {
	if err := h.builder.EnhanceSkills(c.UserContext()); err != nil {
		return h.flowError(c, err)
	}
	return c.JSON(fiber.Map{"skills": h.builder.Model().Personal(form.PersonalSkills)})
}

func (h *Handler) EnhanceExperience(c *fiber.Ctx) error {
	pos, err := c.ParamsInt("pos")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid position")
	}
	if err := h.builder.EnhanceExperience(c.UserContext(), pos); err != nil {
		return h.flowError(c, err)
	}
	desc, _ := h.builder.Model().Get(form.FieldRef{Section: form.Experience, Position: pos, Field: form.FieldDescription})
	return c.JSON(fiber.Map{"position": pos, "description": desc})
}

// Preview answers sanitized HTML, or Markdown with ?format=text.
func (h *Handler) Preview(c *fiber.Ctx) error {
	mode := usecase.PreviewHTML
	if strings.EqualFold(c.Query("format"), "text") {
		mode = usecase.PreviewText
	}
	out, err := h.builder.Preview(c.UserContext(), mode)
	if err != nil {
		return h.flowError(c, err)
	}
	if mode == usecase.PreviewText {
		c.Type("md", "utf-8")
	} else {
		c.Type("html", "utf-8")
	}
	return c.SendString(out)
}

func (h *Handler) PreviewPDF(c *fiber.Ctx) error {
	pdf, err := h.builder.PreviewPDF(c.UserContext())
	if err != nil {
		return h.flowError(c, err)
	}
	c.Type("pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="preview.pdf"`)
	return c.SendStream(bytes.NewReader(pdf), len(pdf))
}

func (h *Handler) Export(c *fiber.Ctx) error {
	doc, err := h.builder.Export(c.UserContext(), c.Params("format"))
	if err != nil {
		return h.flowError(c, err)
	}
	c.Attachment(doc.FileName)
	if doc.ContentType != "" {
		c.Set(fiber.HeaderContentType, doc.ContentType)
	}
	return c.Send(doc.Data)
}

// flowError maps a flow failure to a status the page can act on.
func (h *Handler) flowError(c *fiber.Ctx, err error) error {
	var ce *usecase.CheckError
	var re *api.RemoteError
	switch {
	case errors.As(err, &ce):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": ce.Message, "missing": ce.Missing})
	case errors.Is(err, usecase.ErrNotSignedIn), errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrNoCredential):
		return fail(c, fiber.StatusUnauthorized, "Please sign in again")
	case errors.Is(err, usecase.ErrBusy):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, usecase.ErrStale):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "stale": true})
	case errors.Is(err, usecase.ErrNoRenderer):
		return fail(c, fiber.StatusNotImplemented, err.Error())
	case errors.As(err, &re):
		msg := re.Message
		if msg == "" {
			msg = "the server could not complete the request"
		}
		return fail(c, fiber.StatusBadGateway, msg)
	default:
		h.log.Error("flow failed", zap.Error(err))
		return fail(c, fiber.StatusBadGateway, err.Error())
	}
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// LogNotifier forwards flow notifications to the log; the page reads
// outcomes from the responses.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Success(msg string) { n.Log.Info(msg) }
func (n LogNotifier) Failure(msg string) { n.Log.Warn(msg) }
