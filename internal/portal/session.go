// Package portal talks to the e-Dnevnik grade portal.
package portal

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/extract"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	LoginPagePath   = "/pocetna/prijava"
	LoginSubmitPath = "/pocetna/posalji/"
	ClassesPath     = "/razredi/odabir"
	SubjectsPath    = "/pregled/predmeti/"
	ExamsPath       = "/pregled/ispiti/"
	AbsencesPath    = "/pregled/izostanci/"

	csrfCookie        = "csrf_cookie="
	maintenancePhrase = "u nadogradnji"
)

// authFailures are the login page messages shown for rejected credentials.
// The portal answers these with 200.
var authFailures = []struct {
	phrase string
	reason string
}{
	{"Krivo korisničko ime i/ili lozinka.", "wrong username or password"},
	{"Potrebno je upisati korisničko ime i lozinku.", "missing username or password"},
	{"nije pronađen u LDAP imeniku škole", "user not found in school directory"},
	{"Neispravno korisničko ime.", "invalid username"},
}

// Session is a cookie-carrying HTTP session against the portal. It is safe
// for concurrent use once Login has returned.
type Session struct {
	baseURL   *url.URL
	userAgent string
	client    *http.Client
	log       zerolog.Logger

	flight singleflight.Group
	mu     sync.RWMutex
	pages  map[string][]byte
}

// NewSession creates a session for cfg.Portal. With InsecureTLS set the
// portal certificate is not verified.
func NewSession(cfg *config.Config) (*Session, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Portal.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse portal base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.Portal.InsecureTLS} //nolint:gosec

	return &Session{
		baseURL:   base,
		userAgent: cfg.Portal.UserAgent,
		client: &http.Client{
			Jar:       jar,
			Timeout:   cfg.Portal.Timeout,
			Transport: transport,
		},
		log:   logger.Component("portal"),
		pages: make(map[string][]byte),
	}, nil
}

// Login establishes an authenticated session.
func (s *Session) Login(ctx context.Context, username, password string) error {
	page, err := s.do(ctx, http.MethodGet, LoginPagePath, nil)
	if err != nil {
		return err
	}

	token, ok := s.csrfFromJar()
	if !ok {
		token, ok = extract.CSRFToken(page)
	}
	if !ok {
		return &errors.ParseError{Kind: "login", Field: "csrf_token", Snippet: truncate(string(page))}
	}

	form := url.Values{
		"csrf_token":    {token},
		"user_login":    {username},
		"user_password": {password},
	}
	if _, err := s.do(ctx, http.MethodPost, LoginSubmitPath, form); err != nil {
		if errors.IsAuth(err) {
			s.log.Warn().Err(err).Msg("Portal rejected credentials")
		}
		return err
	}

	s.log.Debug().Msg("Portal login successful")
	return nil
}

// Get fetches path with the session cookies.
func (s *Session) Get(ctx context.Context, path string) ([]byte, error) {
	return s.do(ctx, http.MethodGet, path, nil)
}

// Page fetches path at most once per session. Concurrent callers for the same
// path share a single request. The shared request is bounded by the client
// timeout rather than by any one caller's context, so a caller that gives up
// returns early without failing the others.
func (s *Session) Page(ctx context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	page, ok := s.pages[path]
	s.mu.RUnlock()
	if ok {
		return page, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(path, func() (interface{}, error) {
		body, err := s.Get(shared, path)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.pages[path] = body
		s.mu.Unlock()
		return body, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	target := s.baseURL.String() + path

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, networkError(target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(target, err)
	}

	if bytes.Contains(body, []byte(maintenancePhrase)) {
		return nil, &errors.MaintenanceError{URL: target}
	}

	// Rejected logins come back with arbitrary status codes.
	if path == LoginSubmitPath {
		if err := checkAuth(body); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.NetworkError{URL: target, StatusCode: resp.StatusCode}
	}

	s.log.Trace().Str("method", method).Str("path", path).Int("bytes", len(body)).Msg("Portal request completed")
	return body, nil
}

func (s *Session) csrfFromJar() (string, bool) {
	cookies := s.client.Jar.Cookies(s.baseURL)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return csrfFromCookieHeader(strings.Join(parts, "; "))
}

// csrfFromCookieHeader reads the csrf_cookie value out of a Cookie header.
func csrfFromCookieHeader(header string) (string, bool) {
	idx := strings.Index(header, csrfCookie)
	if idx < 0 {
		return "", false
	}
	token := header[idx+len(csrfCookie):]
	if end := strings.Index(token, ";"); end >= 0 {
		token = token[:end]
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func checkAuth(body []byte) error {
	for _, f := range authFailures {
		if bytes.Contains(body, []byte(f.phrase)) {
			return &errors.AuthError{Reason: f.reason, Phrase: f.phrase}
		}
	}
	return nil
}

func networkError(target string, err error) error {
	ne := &errors.NetworkError{URL: target, Err: err}
	if uerr, ok := err.(*url.Error); ok && uerr.Timeout() {
		ne.Timeout = true
	}
	return ne
}

func truncate(s string) string {
	return errors.Truncate(s, 240)
}
