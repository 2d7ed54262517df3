package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

const callbackTimeout = 30 * time.Second

// Authenticator completes an authorization code flow. auth.Manager implements it.
type Authenticator interface {
	HandleAuthCallback(ctx context.Context, code, state string) bool
	State() models.AuthState
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Auth models.AuthState
	err  error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the provider redirect for the authorization code flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	auth       Authenticator
	state      string
	resultChan chan OAuthResult
	once       sync.Once

	mu          sync.Mutex
	callbackHit bool
}

// NewOAuthHandler creates a handler that accepts exactly one callback carrying state.
func NewOAuthHandler(auth Authenticator, state string) *OAuthHandler {
	return &OAuthHandler{
		auth:       auth,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /callback"}
}

// ServeHTTP validates state and hands the code to the [Authenticator].
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(OAuthResult{err: shared.ErrInvalidState})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), callbackTimeout)
	defer cancel()

	if !h.auth.HandleAuthCallback(ctx, code, q.Get("state")) {
		st := h.auth.State()
		err := shared.ErrAuthFailed
		if st.LastError != "" {
			err = fmt.Errorf("%w: %s", shared.ErrAuthFailed, st.LastError)
		}
		h.Send(OAuthResult{Auth: st, err: err})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	st := h.auth.State()
	h.Send(OAuthResult{Auth: st})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	name := "there"
	if st.Profile != nil && st.Profile.DisplayName != "" {
		name = st.Profile.DisplayName
	}
	_ = successPage.Execute(w, struct {
		Name    string
		Premium bool
	}{name, st.IsPremium()})
}

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>hivefm connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Hi {{.Name}}, you're connected</h1>
        {{if .Premium}}<p>Playback will use your Spotify Connect device.</p>{{else}}<p>Playback will use 30 second previews.</p>{{end}}
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`))

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
