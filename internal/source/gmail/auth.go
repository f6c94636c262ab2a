package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mastertenor/korgan/internal/source"
)

// NewService builds an authenticated Gmail service from an OAuth client
// credentials file and a cached token file. A missing token is an
// AuthError: the caller should run the Authorize flow first.
func NewService(ctx context.Context, credentialsFile, tokenFile string) (*gmail.Service, error) {
	cfg, err := oauthConfig(credentialsFile)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, &source.AuthError{
			Backend: source.BackendGmail,
			Message: fmt.Sprintf("no cached token at %s: run the login flow first", tokenFile),
		}
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return svc, nil
}

// Authorize runs the browser OAuth flow, receiving the authorization code
// on a local callback server, and caches the token at tokenFile.
func Authorize(ctx context.Context, credentialsFile, tokenFile string) error {
	cfg, err := oauthConfig(credentialsFile)
	if err != nil {
		return err
	}
	cfg.RedirectURL = "http://localhost:8081/oauth2callback"

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		codeCh <- r.URL.Query().Get("code")
	})
	srv := &http.Server{Addr: ":8081", Handler: mux}
	go srv.ListenAndServe()
	defer srv.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following link in your browser:\n%s\n", authURL)

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	return saveToken(tokenFile, tok)
}

// oauthConfig loads the OAuth client configuration with the modify scope.
func oauthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	return cfg, nil
}

// tokenFromFile loads a cached OAuth token.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding cached token: %w", err)
	}
	return tok, nil
}

// saveToken caches an OAuth token with owner-only permissions.
func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("caching oauth token: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding oauth token: %w", err)
	}
	return nil
}
