package meta

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// AuthType selects how requests to the metadata service are authenticated.
type AuthType string

const (
	AuthSimple AuthType = "simple"
	AuthOAuth2 AuthType = "oauth2"
	AuthToken  AuthType = "token"
)

// AuthConfig is a closed set of authentication variants. Type selects the
// variant; each variant has its own required fields, validated by Validate.
type AuthConfig struct {
	Type AuthType

	// Simple auth: acts as User, optionally proxying as ProxyUser.
	User      string
	ProxyUser string

	// OAuth2 client-credentials: token fetched from ServerURI+TokenPath
	// using Credential ("id:secret") and Scope.
	ServerURI  string
	Credential string
	TokenPath  string
	Scope      string

	// Static bearer token.
	Token string
}

// Validate checks that the fields required by the selected variant are set.
func (a AuthConfig) Validate() error {
	switch a.Type {
	case AuthSimple, "":
		if a.User == "" {
			return fmt.Errorf("auth type %q requires a user", AuthSimple)
		}
	case AuthOAuth2:
		for _, f := range []struct{ name, val string }{
			{"server uri", a.ServerURI},
			{"credential", a.Credential},
			{"token path", a.TokenPath},
			{"scope", a.Scope},
		} {
			if f.val == "" {
				return fmt.Errorf("auth type %q requires a %s", AuthOAuth2, f.name)
			}
		}
	case AuthToken:
		if a.Token == "" {
			return fmt.Errorf("auth type %q requires a token", AuthToken)
		}
	default:
		return fmt.Errorf("unsupported auth type: %q", a.Type)
	}
	return nil
}

// authorizer decorates outgoing metadata requests with credentials.
type authorizer interface {
	apply(req *http.Request) error
}

func newAuthorizer(a AuthConfig, hc *http.Client) (authorizer, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	switch a.Type {
	case AuthSimple, "":
		return &simpleAuth{user: a.User, proxyUser: a.ProxyUser}, nil
	case AuthToken:
		return &tokenAuth{token: a.Token}, nil
	case AuthOAuth2:
		return &oauth2Auth{cfg: a, hc: hc}, nil
	}
	return nil, fmt.Errorf("unsupported auth type: %q", a.Type)
}

type simpleAuth struct {
	user      string
	proxyUser string
}

func (s *simpleAuth) apply(req *http.Request) error {
	basic := base64.StdEncoding.EncodeToString([]byte(s.user + ":dummy"))
	req.Header.Set("Authorization", "Basic "+basic)
	if s.proxyUser != "" {
		req.Header.Set("X-Proxy-User", s.proxyUser)
	}
	return nil
}

type tokenAuth struct {
	token string
}

func (t *tokenAuth) apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+t.token)
	return nil
}

// oauth2Auth fetches an access token via the client-credentials grant and
// caches it until shortly before expiry.
type oauth2Auth struct {
	cfg AuthConfig
	hc  *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func (o *oauth2Auth) apply(req *http.Request) error {
	tok, err := o.accessToken(req.Context())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func (o *oauth2Auth) accessToken(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token != "" && time.Now().Before(o.expires) {
		return o.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", o.cfg.Scope)

	endpoint := strings.TrimSuffix(o.cfg.ServerURI, "/") + "/" + strings.TrimPrefix(o.cfg.TokenPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	id, secret, ok := strings.Cut(o.cfg.Credential, ":")
	if !ok {
		return "", fmt.Errorf("oauth2 credential must be in id:secret form")
	}
	req.SetBasicAuth(id, secret)

	resp, err := o.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch oauth2 token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("fetch oauth2 token: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode oauth2 token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("oauth2 token response missing access_token")
	}

	o.token = tr.AccessToken
	o.expires = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - 30*time.Second)
	return o.token, nil
}
