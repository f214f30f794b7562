package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emprenix/internal/config"
	"emprenix/internal/contact"
	"emprenix/internal/models"
	"emprenix/internal/session"
)

type fakeChain struct {
	history []models.Message
	err     error
	closed  bool
}

func (c *fakeChain) Query(_ context.Context, question string) (*models.PromptResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.history = append(c.history,
		models.Message{Role: models.RoleUser, Content: question},
		models.Message{Role: models.RoleAssistant, Content: "**Emprenix** helps startups grow."},
	)
	return &models.PromptResponse{Query: question, History: c.history}, nil
}

func (c *fakeChain) History(context.Context) ([]models.Message, error) { return c.history, nil }

func (c *fakeChain) Close(context.Context) error {
	c.closed = true
	return nil
}

type fakeMailer struct {
	sent []contact.Form
	err  error
}

func (m *fakeMailer) Send(f contact.Form) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, f)
	return nil
}

type harness struct {
	t      *testing.T
	server *Server
	cookie *http.Cookie
	chains []*fakeChain
	mailer *fakeMailer
}

func newHarness(t *testing.T, buildErr error) *harness {
	t.Helper()
	h := &harness{t: t, mailer: &fakeMailer{}}

	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "EMPRENIX_LOGO.jpg"), []byte("logo"), 0o644))

	cfg := config.Default()
	cfg.Server.AssetsDir = assets
	cfg.WhatsAppNumber = "5930993513082"

	build := func(context.Context) (session.Chain, error) {
		if buildErr != nil {
			return nil, buildErr
		}
		c := &fakeChain{}
		h.chains = append(h.chains, c)
		return c, nil
	}
	srv, err := New(cfg, session.NewStore(time.Hour), build, h.mailer)
	require.NoError(t, err)
	h.server = srv
	return h
}

func (h *harness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	h.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			h.cookie = c
		}
	}
	return rec
}

func TestPagesRender(t *testing.T) {
	h := newHarness(t, nil)
	cases := map[string]string{
		"/":        "Welcome to Emprenix",
		"/about":   "What can we do for you?",
		"/contact": "Reason for contact:",
	}
	for path, want := range cases {
		rec := h.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		body := rec.Body.String()
		assert.Contains(t, body, MenuTitle)
		assert.Contains(t, body, want)
		assert.Contains(t, body, "💬 Talk with our AI")
		assert.NotContains(t, body, "Chat with Us")
	}
	require.NotNil(t, h.cookie)
	assert.True(t, h.cookie.HttpOnly)
}

func TestContactPageListsReasonsAndWhatsApp(t *testing.T) {
	h := newHarness(t, nil)
	body := h.do(http.MethodGet, "/contact", nil).Body.String()
	for _, reason := range contact.Reasons {
		assert.Contains(t, body, reason)
	}
	assert.Contains(t, body, "https://wa.me/5930993513082?text=")
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/pricing", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, h.do(http.MethodGet, "/chat/toggle", nil).Code)
}

func TestChatToggleAskFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/", nil)

	rec := h.do(http.MethodPost, "/chat/toggle", url.Values{"page": {"/about"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/about", rec.Header().Get("Location"))
	require.Len(t, h.chains, 1)

	body := h.do(http.MethodGet, "/about", nil).Body.String()
	assert.Contains(t, body, "Chat with Us, know me and let´s contact!")
	assert.Contains(t, body, "Doesn´t matter the language, ask anything you need!")
	assert.Contains(t, body, "Ask us anything about how Emprenix can help you!:")

	rec = h.do(http.MethodPost, "/chat/ask", url.Values{"page": {"/"}, "question": {"What does Emprenix do?"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = h.do(http.MethodPost, "/chat/ask", url.Values{"page": {"/"}, "question": {"Tell me more"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body = h.do(http.MethodGet, "/", nil).Body.String()
	assert.Equal(t, 2, strings.Count(body, `class="chat-message user"`))
	assert.Equal(t, 2, strings.Count(body, `class="chat-message assistant"`))
	assert.Less(t, strings.Index(body, "What does Emprenix do?"), strings.Index(body, "Tell me more"))
	assert.Contains(t, body, "<strong>Emprenix</strong>")

	h.do(http.MethodPost, "/chat/toggle", url.Values{"page": {"/"}})
	assert.True(t, h.chains[0].closed)
	body = h.do(http.MethodGet, "/", nil).Body.String()
	assert.NotContains(t, body, "Chat with Us")

	h.do(http.MethodPost, "/chat/toggle", url.Values{"page": {"/"}})
	require.Len(t, h.chains, 2)
	body = h.do(http.MethodGet, "/", nil).Body.String()
	assert.Contains(t, body, "Chat with Us")
	assert.NotContains(t, body, `class="chat-message`)
}

func TestAskWhileHiddenRedirects(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/chat/ask", url.Values{"question": {"hello"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, h.chains)
}

func TestBuildFailureRendersErrorPage(t *testing.T) {
	h := newHarness(t, errors.New("open ./Emprenix.pdf: no such file or directory"))
	rec := h.do(http.MethodPost, "/chat/toggle", url.Values{"page": {"/"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")
	assert.NotContains(t, rec.Body.String(), "Emprenix.pdf")

	body := h.do(http.MethodGet, "/", nil).Body.String()
	assert.NotContains(t, body, "Chat with Us")
}

func TestChatErrorRendersErrorPage(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodPost, "/chat/toggle", url.Values{"page": {"/"}})
	require.Len(t, h.chains, 1)
	h.chains[0].err = errors.New("rate limited")

	rec := h.do(http.MethodPost, "/chat/ask", url.Values{"question": {"hi"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")
}

func TestContactSubmit(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/contact", url.Values{
		"reason":       {"Project Inquiry"},
		"contact_info": {"ana@example.com"},
		"message":      {"We need a website"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your message has been sent successfully!")
	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "Project Inquiry", h.mailer.sent[0].Reason)
}

func TestContactSubmitShowsErrorInline(t *testing.T) {
	h := newHarness(t, nil)
	h.mailer.err = errors.New("smtp unavailable")
	rec := h.do(http.MethodPost, "/contact", url.Values{
		"reason":       {"Employment"},
		"contact_info": {"ana@example.com"},
		"message":      {"Hello"},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error sending message: smtp unavailable")
	assert.Contains(t, rec.Body.String(), "Hello")
}

func TestAssetsAndHealth(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/assets/EMPRENIX_LOGO.jpg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "logo", rec.Body.String())

	rec = h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestContactSubmitStatusByError(t *testing.T) {
	cases := []struct {
		name    string
		form    url.Values
		sendErr error
		want    int
	}{
		{
			name: "unknown reason",
			form: url.Values{"reason": {"Spam"}, "contact_info": {"ana@example.com"}, "message": {"Hello"}},
			want: http.StatusBadRequest,
		},
		{
			name: "missing contact info",
			form: url.Values{"reason": {"Tutoring"}, "message": {"Hello"}},
			want: http.StatusBadRequest,
		},
		{
			name: "missing message",
			form: url.Values{"reason": {"Tutoring"}, "contact_info": {"ana@example.com"}},
			want: http.StatusBadRequest,
		},
		{
			name:    "mail not configured",
			form:    url.Values{"reason": {"Tutoring"}, "contact_info": {"ana@example.com"}, "message": {"Hello"}},
			sendErr: contact.ErrNotConfigured,
			want:    http.StatusInternalServerError,
		},
		{
			name:    "smtp failure",
			form:    url.Values{"reason": {"Tutoring"}, "contact_info": {"ana@example.com"}, "message": {"Hello"}},
			sendErr: errors.New("failed to send contact email: 535 authentication failed"),
			want:    http.StatusBadGateway,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.mailer.err = tc.sendErr
			rec := h.do(http.MethodPost, "/contact", tc.form)
			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "Error sending message:")
			assert.Empty(t, h.mailer.sent)
		})
	}
}
