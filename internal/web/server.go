package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"emprenix/internal/config"
	"emprenix/internal/contact"
	"emprenix/internal/rag"
	"emprenix/internal/session"
)

const sessionCookie = "emprenix_session"

//go:embed templates/*.html
var templateFS embed.FS

// Mailer delivers contact forms.
type Mailer interface {
	Send(form contact.Form) error
}

// Server serves the site and the per-session chat.
type Server struct {
	cfg       *config.Config
	store     *session.Store
	build     session.Builder
	mailer    Mailer
	pages     map[Page]*template.Template
	errorPage *template.Template
	handler   http.Handler
}

type menuItem struct {
	Label  string
	Path   string
	Active bool
}

type chatData struct {
	Visible bool
	Bubbles []Bubble
}

type contactData struct {
	Reasons      []string
	Form         contact.Form
	Sent         bool
	Error        string
	WhatsAppLink string
	status       int
}

type pageData struct {
	MenuTitle string
	Menu      []menuItem
	Path      string
	Chat      chatData
	Contact   contactData
}

// New parses the embedded templates and wires the routes. build creates the
// chat pipeline each time a session opens the chat.
func New(cfg *config.Config, store *session.Store, build session.Builder, mailer Mailer) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  store,
		build:  build,
		mailer: mailer,
		pages:  make(map[Page]*template.Template, len(Pages)),
	}
	for _, p := range Pages {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/chat.html", "templates/"+p.templateName())
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", p.Label(), err)
		}
		s.pages[p] = t
	}
	errorPage, err := template.ParseFS(templateFS, "templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse error template: %w", err)
	}
	s.errorPage = errorPage
	s.handler = s.routes()
	return s, nil
}

// RAGBuilder builds a fresh retrieval chain against the OpenAI endpoints.
func RAGBuilder(cfg *config.Config) session.Builder {
	return func(ctx context.Context) (session.Chain, error) {
		chain, err := rag.Build(ctx, cfg, rag.OpenAIClients)
		if err != nil {
			return nil, err
		}
		return chain, nil
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage(PageHome))
	mux.HandleFunc("GET /about", s.handlePage(PageAbout))
	mux.HandleFunc("GET /contact", s.handlePage(PageContact))
	mux.HandleFunc("POST /contact", s.handleContact)
	mux.HandleFunc("POST /chat/toggle", s.handleToggle)
	mux.HandleFunc("POST /chat/ask", s.handleAsk)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.cfg.Server.AssetsDir))))

	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Handled request")
	})(mux)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	return hlog.NewHandler(log.Logger)(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handlePage(p Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		data, err := s.baseData(r.Context(), p, sess)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.renderPage(w, r, p, data)
	}
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, p Page, data *pageData) {
	switch p {
	case PageAbout:
		s.renderAbout(w, r, data)
	case PageContact:
		s.renderContact(w, r, data)
	default:
		s.renderHome(w, r, data)
	}
}

func (s *Server) renderHome(w http.ResponseWriter, r *http.Request, data *pageData) {
	s.execute(w, r, PageHome, http.StatusOK, data)
}

func (s *Server) renderAbout(w http.ResponseWriter, r *http.Request, data *pageData) {
	s.execute(w, r, PageAbout, http.StatusOK, data)
}

func (s *Server) renderContact(w http.ResponseWriter, r *http.Request, data *pageData) {
	data.Contact.Reasons = contact.Reasons
	if data.Contact.Form.Reason == "" {
		data.Contact.Form.Reason = contact.Reasons[0]
	}
	if s.cfg.WhatsAppNumber != "" {
		data.Contact.WhatsAppLink = contact.WhatsAppLink(s.cfg.WhatsAppNumber, data.Contact.Form)
	}
	status := data.Contact.status
	if status == 0 {
		status = http.StatusOK
	}
	s.execute(w, r, PageContact, status, data)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, p Page, status int, data *pageData) {
	var buf bytes.Buffer
	if err := s.pages[p].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.writeError(w, r, fmt.Errorf("failed to render %s: %w", p.Label(), err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) baseData(ctx context.Context, p Page, sess *session.Session) (*pageData, error) {
	data := &pageData{MenuTitle: MenuTitle, Path: p.Path()}
	for _, item := range Pages {
		data.Menu = append(data.Menu, menuItem{Label: item.Label(), Path: item.Path(), Active: item == p})
	}
	if sess.ChatVisible() {
		history, err := sess.History(ctx)
		if err != nil {
			return nil, err
		}
		data.Chat = chatData{Visible: true, Bubbles: RenderHistory(history)}
	}
	return data, nil
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	visible, err := sess.Toggle(r.Context(), s.build)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Debug().Str("session", sess.ID).Bool("visible", visible).Msg("Toggled chat")
	s.redirectBack(w, r)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, err = sess.Ask(r.Context(), r.FormValue("question"))
	switch {
	case err == nil, errors.Is(err, rag.ErrEmptyQuestion), errors.Is(err, session.ErrChatInactive):
		s.redirectBack(w, r)
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.baseData(r.Context(), PageContact, sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	form := contact.Form{
		Reason:      r.FormValue("reason"),
		ContactInfo: r.FormValue("contact_info"),
		Message:     r.FormValue("message"),
	}
	data.Contact.Form = form
	if err := s.mailer.Send(form); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("reason", form.Reason).Msg("Error sending contact form")
		data.Contact.Error = err.Error()
		data.Contact.status = contactStatus(err)
	} else {
		data.Contact.Sent = true
	}
	s.renderContact(w, r, data)
}

// contactStatus maps a delivery error to the response code.
func contactStatus(err error) int {
	switch {
	case errors.Is(err, contact.ErrInvalidReason),
		errors.Is(err, contact.ErrMissingContact),
		errors.Is(err, contact.ErrMissingMessage):
		return http.StatusBadRequest
	case errors.Is(err, contact.ErrNotConfigured):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// session returns the caller's session, creating one and setting the cookie
// when the request carries no live session.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.store.Get(c.Value); ok {
			return sess, nil
		}
	}
	sess, err := s.store.Create()
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

func (s *Server) redirectBack(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, PageFromPath(r.FormValue("page")).Path(), http.StatusSeeOther)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("Error handling request")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if execErr := s.errorPage.Execute(w, nil); execErr != nil {
		hlog.FromRequest(r).Error().Err(execErr).Msg("Error rendering error page")
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.store.Run(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Serving Emprenix")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
