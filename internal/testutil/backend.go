// Package testutil provides a fake CV server for tests that exercise the
// remote client and the builder workflows end to end.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Token is the only credential the fake server accepts.
const Token = "test-token"

// FakePDF is what /export-temp returns for format=pdf.
var FakePDF = []byte("%PDF-1.4\n% fake export\n%%EOF\n")

// FakeDOCX is what /export-temp returns for format=docx.
var FakeDOCX = []byte("PK\x03\x04fake-docx")

// Backend is an httptest server speaking the CV server's builder endpoints.
type Backend struct {
	*httptest.Server

	mu    sync.Mutex
	calls map[string]int
	last  map[string]map[string]interface{}

	// Hold, when set, blocks every handler until it is closed or receives.
	Hold chan struct{}
	// Fail forces every endpoint to answer with this status and message.
	FailStatus  int
	FailMessage string
}

// NewBackend starts the fake server and closes it when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{calls: map[string]int{}, last: map[string]map[string]interface{}{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/enhance", b.wrap("/enhance", b.enhance))
	mux.HandleFunc("/upload-avatar", b.wrap("/upload-avatar", b.uploadAvatar))
	mux.HandleFunc("/export-temp", b.wrap("/export-temp", b.export))
	mux.HandleFunc("/preview-temp", b.wrap("/preview-temp", b.preview))
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

// Calls returns how many requests reached path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// LastBody returns the last JSON body posted to path.
func (b *Backend) LastBody(path string) map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last[path]
}

func (b *Backend) wrap(path string, h func(w http.ResponseWriter, r *http.Request, body map[string]interface{})) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[path]++
		hold := b.Hold
		failStatus, failMessage := b.FailStatus, b.FailMessage
		b.mu.Unlock()

		if hold != nil {
			<-hold
		}
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"msg": "Token has expired"})
			return
		}
		if failStatus != 0 {
			writeJSON(w, failStatus, map[string]interface{}{"success": false, "message": failMessage})
			return
		}

		var body map[string]interface{}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
			b.mu.Lock()
			b.last[path] = body
			b.mu.Unlock()
		}
		h(w, r, body)
	}
}

// SetHold installs or clears the hold channel.
func (b *Backend) SetHold(ch chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Hold = ch
}

// SetFail makes every endpoint fail; a zero status clears it.
func (b *Backend) SetFail(status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.FailStatus, b.FailMessage = status, message
}

func (b *Backend) enhance(w http.ResponseWriter, _ *http.Request, body map[string]interface{}) {
	switch body["type"] {
	case "summary":
		s, _ := body["summary"].(string)
		if s == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "summary is required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "enhanced": "Enhanced: " + s})
	case "experience":
		exp, _ := body["experience"].(map[string]interface{})
		desc, _ := exp["description"].(string)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"enhanced": map[string]interface{}{"description": "Improved: " + desc},
		})
	case "skills":
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "enhanced": []string{"Go", "PostgreSQL", "Kubernetes"}})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "invalid enhancement type"})
	}
}

func (b *Backend) uploadAvatar(w http.ResponseWriter, r *http.Request, _ map[string]interface{}) {
	f, hdr, err := r.FormFile("avatar")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "no image file"})
		return
	}
	defer f.Close()
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "avatar_url": "/static/uploads/avatars/" + hdr.Filename})
}

func (b *Backend) export(w http.ResponseWriter, _ *http.Request, body map[string]interface{}) {
	name, _ := body["full_name"].(string)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "full name is required"})
		return
	}
	switch body["format"] {
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(FakePDF)
	case "docx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		_, _ = w.Write(FakeDOCX)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "unsupported format"})
	}
}

func (b *Backend) preview(w http.ResponseWriter, _ *http.Request, body map[string]interface{}) {
	name, _ := body["full_name"].(string)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, `<html><body><div class="cv"><h1>`+name+`</h1><script>alert(1)</script></div></body></html>`)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
