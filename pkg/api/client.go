// Package api is the client for the CV server endpoints the builder page
// calls: AI enhancement, avatar upload, document export and preview.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cv-builder/internal/model"
)

// Export formats accepted by /export-temp.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
)

// DefaultBaseURL is the development server's CV builder API.
const DefaultBaseURL = "http://localhost:5000/api/cv-builder"

// AllowedAvatarExtensions mirrors the server's upload filter.
var AllowedAvatarExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// Client calls the CV server with the signed-in user's bearer credential.
type Client struct {
	BaseURL     string
	HTTP        *http.Client
	MaxAttempts int
	// Token returns the current credential; empty means signed out.
	Token func() string
	Log   *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, token func() string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTP:        &http.Client{Timeout: timeout},
		MaxAttempts: 1,
		Token:       token,
		Log:         log.Named("api"),
	}
}

type enhanceRequest struct {
	Type        string             `json:"type"`
	Summary     string             `json:"summary,omitempty"`
	Experience  *experiencePayload `json:"experience,omitempty"`
	Skills      []string           `json:"skills,omitempty"`
	Experiences []model.Experience `json:"experiences,omitempty"`
}

type experiencePayload struct {
	Position    string `json:"position"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

type enhanceResponse struct {
	Success  bool            `json:"success"`
	Enhanced json.RawMessage `json:"enhanced"`
	Message  string          `json:"message"`
}

// EnhanceSummary asks the server to rewrite the profile summary.
func (c *Client) EnhanceSummary(ctx context.Context, summary string) (string, error) {
	out, err := c.enhance(ctx, enhanceRequest{Type: "summary", Summary: summary})
	if err != nil {
		return "", err
	}
	return enhancedText(out, "")
}

// EnhanceExperience asks the server to rewrite one experience description.
func (c *Client) EnhanceExperience(ctx context.Context, e model.Experience) (string, error) {
	out, err := c.enhance(ctx, enhanceRequest{Type: "experience", Experience: &experiencePayload{
		Position: e.Position, Company: e.Company, Description: e.Description,
	}})
	if err != nil {
		return "", err
	}
	return enhancedText(out, "description")
}

// EnhanceSkills asks the server to tidy the skill list given the experiences.
func (c *Client) EnhanceSkills(ctx context.Context, skills []string, experiences []model.Experience) ([]string, error) {
	out, err := c.enhance(ctx, enhanceRequest{Type: "skills", Skills: skills, Experiences: experiences})
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(out, &list); err == nil {
		return list, nil
	}
	text, err := enhancedText(out, "")
	if err != nil {
		return nil, err
	}
	return model.ParseSkills(text), nil
}

func (c *Client) enhance(ctx context.Context, req enhanceRequest) (json.RawMessage, error) {
	op := "enhance " + req.Type
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, op, http.MethodPost, "/enhance", "application/json", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read reply: %w", op, err)
	}
	var out enhanceResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return nil, &RemoteError{Op: op, Status: resp.StatusCode, Message: "reply is not JSON"}
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return nil, &RemoteError{Op: op, Status: resp.StatusCode, Message: out.Message}
	}
	if len(out.Enhanced) == 0 || string(out.Enhanced) == "null" {
		return nil, &RemoteError{Op: op, Status: resp.StatusCode, Message: "no enhanced content returned"}
	}
	return out.Enhanced, nil
}

// enhancedText accepts either a bare string or an object carrying the text
// under key, which is how the experience endpoint sometimes answers.
func enhancedText(raw json.RawMessage, key string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	if key != "" {
		var obj map[string]interface{}
		if err := json.Unmarshal(raw, &obj); err == nil {
			if v, ok := obj[key].(string); ok {
				return v, nil
			}
		}
	}
	return "", &RemoteError{Op: "enhance", Status: http.StatusOK, Message: "unexpected enhanced content"}
}

// UploadAvatar sends an image and returns the URL to embed in the record.
func (c *Client) UploadAvatar(ctx context.Context, filename string, r io.Reader) (string, error) {
	const op = "upload avatar"
	if !AllowedAvatar(filename) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, filepath.Ext(filename))
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("avatar", filepath.Base(filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", fmt.Errorf("%s: read image: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, op, http.MethodPost, "/upload-avatar", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Success   bool   `json:"success"`
		AvatarURL string `json:"avatar_url"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &RemoteError{Op: op, Status: resp.StatusCode, Message: "reply is not JSON"}
	}
	if resp.StatusCode != http.StatusOK || !out.Success || out.AvatarURL == "" {
		return "", &RemoteError{Op: op, Status: resp.StatusCode, Message: out.Message}
	}
	return out.AvatarURL, nil
}

// AllowedAvatar reports whether filename has an image extension the server
// accepts.
func AllowedAvatar(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range AllowedAvatarExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Document is an exported CV file.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Export renders the record on the server as a pdf or docx file.
func (c *Client) Export(ctx context.Context, rec model.FormRecord, format string) (*Document, error) {
	op := "export " + format
	if format != FormatPDF && format != FormatDOCX {
		return nil, fmt.Errorf("%s: unsupported format", op)
	}
	body, err := recordWith(rec, map[string]interface{}{"format": format})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, op, http.MethodPost, "/export-temp", "application/json", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read file: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, remoteFromBody(op, resp.StatusCode, data)
	}
	ct := resp.Header.Get("Content-Type")
	if mt, _, _ := mime.ParseMediaType(ct); mt == "application/json" {
		// a JSON body on success is an error report
		return nil, remoteFromBody(op, resp.StatusCode, data)
	}
	return &Document{FileName: ExportFileName(rec.FullName, format), ContentType: ct, Data: data}, nil
}

// Preview renders the record on the server and returns the markup.
func (c *Client) Preview(ctx context.Context, rec model.FormRecord) (string, error) {
	const op = "preview"
	body, err := recordWith(rec, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, op, http.MethodPost, "/preview-temp", "application/json", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read markup: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", remoteFromBody(op, resp.StatusCode, data)
	}
	return string(data), nil
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	// path separators and dot runs must not leave the target directory
	pathChars = regexp.MustCompile(`[/\\]+|\.\.+`)
)

// ExportFileName builds the download name the page uses, e.g. Nguyen_Van_A_CV.pdf.
// The result is a bare file name whatever the full name contains.
func ExportFileName(fullName, format string) string {
	name := whitespace.ReplaceAllString(strings.TrimSpace(fullName), "_")
	name = pathChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "Resume"
	}
	return fmt.Sprintf("%s_CV.%s", name, format)
}

func recordWith(rec model.FormRecord, extra map[string]interface{}) ([]byte, error) {
	rec.Normalize()
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return b, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range extra {
		m[k] = v
	}
	return json.Marshal(m)
}

func remoteFromBody(op string, status int, body []byte) error {
	var out struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &out)
	msg := out.Message
	if msg == "" {
		msg = out.Error
	}
	return &RemoteError{Op: op, Status: status, Message: msg}
}

// do sends one request with the bearer credential. Transport errors are
// retried up to MaxAttempts with exponential backoff; replies never are.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte) (*http.Response, error) {
	token := ""
	if c.Token != nil {
		token = c.Token()
	}
	if token == "" {
		return nil, ErrNoCredential
	}
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	requestID := uuid.NewString()

	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Request-ID", requestID)

		start := time.Now()
		resp, err := c.HTTP.Do(req)
		if err == nil {
			c.Log.Debug("request done",
				zap.String("op", op),
				zap.String("request_id", requestID),
				zap.Int("status", resp.StatusCode),
				zap.Duration("took", time.Since(start)))
			if resp.StatusCode == http.StatusUnauthorized {
				resp.Body.Close()
				return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
			}
			return resp, nil
		}
		lastErr = err
		c.Log.Warn("request failed", zap.String("op", op), zap.Int("attempt", i+1), zap.Error(err))
		if i < attempts-1 {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%s: %w", op, lastErr)
}
