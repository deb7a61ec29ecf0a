package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"

	"github.com/holon-run/prflow/pkg/log"
)

const (
	// DefaultCallbackPort is the fixed local port the OAuth app redirects to.
	DefaultCallbackPort = 8976
	// CallbackPath is the redirect path served by the loopback listener.
	CallbackPath = "/callback"
	// DefaultTimeout bounds how long the flow waits for the browser round trip.
	DefaultTimeout = 5 * time.Minute

	shutdownGrace = 5 * time.Second

	// callbackHost is the listen address and the redirect host.
	callbackHost = "127.0.0.1"
)

// Scopes requested from GitHub.
var Scopes = []string{"repo", "read:user"}

var (
	// ErrStateMismatch means the callback did not echo the state we sent.
	ErrStateMismatch = errors.New("OAuth state mismatch")
	// ErrTimeout means no callback arrived before the deadline.
	ErrTimeout = errors.New("timed out waiting for OAuth callback")
)

// LoopbackFlow runs the OAuth2 authorization-code flow with a temporary local
// listener as the redirect target.
type LoopbackFlow struct {
	ClientID     string
	ClientSecret string

	// Endpoint defaults to GitHub's.
	Endpoint oauth2.Endpoint
	// Port defaults to DefaultCallbackPort; 0 picks a free port.
	Port *int
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	// OpenBrowser defaults to OpenBrowser.
	OpenBrowser func(url string) error
	// HTTPClient is used for the token exchange.
	HTTPClient *http.Client
}

type callbackResult struct {
	token *oauth2.Token
	err   error
}

func (f *LoopbackFlow) port() int {
	if f.Port == nil {
		return DefaultCallbackPort
	}
	return *f.Port
}

func (f *LoopbackFlow) timeout() time.Duration {
	if f.Timeout <= 0 {
		return DefaultTimeout
	}
	return f.Timeout
}

func (f *LoopbackFlow) endpoint() oauth2.Endpoint {
	if f.Endpoint.AuthURL == "" {
		return oauthgithub.Endpoint
	}
	return f.Endpoint
}

// Run opens the browser on the authorization page and waits for the callback,
// the timeout or ctx cancellation, whichever comes first. The listener is shut
// down before Run returns.
func (f *LoopbackFlow) Run(ctx context.Context) (*oauth2.Token, error) {
	if f.ClientID == "" || f.ClientSecret == "" {
		return nil, fmt.Errorf("OAuth client id and secret are required (run 'prflow config-oauth')")
	}

	state, err := newState()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", callbackHost, f.port()))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth callback: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	cfg := &oauth2.Config{
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		Endpoint:     f.endpoint(),
		RedirectURL:  fmt.Sprintf("http://%s:%d%s", callbackHost, port, CallbackPath),
		Scopes:       Scopes,
	}

	exchangeCtx := ctx
	if f.HTTPClient != nil {
		exchangeCtx = context.WithValue(ctx, oauth2.HTTPClient, f.HTTPClient)
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, callbackHandler(exchangeCtx, cfg, state, results))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state)
	open := f.OpenBrowser
	if open == nil {
		open = OpenBrowser
	}
	if err := open(authURL); err != nil {
		log.Warn("could not open browser", "error", err)
	}
	log.Progressf("If the browser did not open, visit: %s", authURL)

	timer := time.NewTimer(f.timeout())
	defer timer.Stop()

	select {
	case res := <-results:
		return res.token, res.err
	case err := <-serveErr:
		return nil, fmt.Errorf("OAuth callback server failed: %w", err)
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func callbackHandler(ctx context.Context, cfg *oauth2.Config, state string, results chan<- callbackResult) http.HandlerFunc {
	deliver := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			err := fmt.Errorf("authorization denied: %s", e)
			if desc := q.Get("error_description"); desc != "" {
				err = fmt.Errorf("authorization denied: %s (%s)", e, desc)
			}
			writePage(w, http.StatusBadRequest, "Authorization failed", err.Error())
			deliver(callbackResult{err: err})
			return
		}

		if q.Get("state") != state {
			writePage(w, http.StatusBadRequest, "Authorization failed", ErrStateMismatch.Error())
			deliver(callbackResult{err: ErrStateMismatch})
			return
		}

		code := q.Get("code")
		if code == "" {
			err := errors.New("callback did not include an authorization code")
			writePage(w, http.StatusBadRequest, "Authorization failed", err.Error())
			deliver(callbackResult{err: err})
			return
		}

		token, err := cfg.Exchange(ctx, code)
		if err != nil {
			err = fmt.Errorf("failed to exchange authorization code: %w", err)
			writePage(w, http.StatusInternalServerError, "Authorization failed", err.Error())
			deliver(callbackResult{err: err})
			return
		}

		writePage(w, http.StatusOK, "Authorization complete", "You can close this window and return to the terminal.")
		deliver(callbackResult{token: token})
	}
}

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>prflow</title></head><body><h1>%s</h1><p>%s</p></body></html>",
		html.EscapeString(title), html.EscapeString(message))
}

// newState returns 32 random bytes, hex encoded.
func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate OAuth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
