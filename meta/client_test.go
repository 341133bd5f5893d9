package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func filesetHandler(t *testing.T, gotAuth *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			*gotAuth = r.Header.Get("Authorization")
		}
		switch r.URL.Path {
		case "/api/metalakes/lake/catalogs/catalog1/schemas/schema1/filesets/fileset1":
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"fileset": map[string]any{
					"name":            "fileset1",
					"comment":         "test fileset",
					"storageLocation": "s3://bucket/fileset1",
					"properties": map[string]string{
						"fileset.prefix.pattern": "ANY",
						"fileset.dir.max.level":  "3",
					},
				},
			})
		case "/api/metalakes/lake/catalogs/catalog1/schemas/schema1/filesets/broken":
			json.NewEncoder(w).Encode(map[string]any{
				"code":    0,
				"fileset": map[string]any{"name": "broken"},
			})
		case "/api/metalakes/lake/catalogs/catalog1/schemas/schema1/filesets/boom":
			http.Error(w, "internal error", http.StatusInternalServerError)
		default:
			http.Error(w, `{"code":1003,"message":"fileset does not exist"}`, http.StatusNotFound)
		}
	}
}

func TestLoadFileset(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(filesetHandler(t, &gotAuth))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "lake", AuthConfig{Type: AuthSimple, User: "alice"})
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	defer client.Close()

	f, err := client.LoadFileset(context.Background(), Identifier{Catalog: "catalog1", Schema: "schema1", Name: "fileset1"})
	if err != nil {
		t.Fatalf("LoadFileset: %v", err)
	}
	if f.Name != "fileset1" || f.StorageLocation != "s3://bucket/fileset1" {
		t.Errorf("fileset = %+v", f)
	}
	if f.Property("fileset.dir.max.level") != "3" {
		t.Errorf("properties = %v", f.Properties)
	}
	if !strings.HasPrefix(gotAuth, "Basic ") {
		t.Errorf("authorization header = %q", gotAuth)
	}
}

func TestLoadFilesetNotFound(t *testing.T) {
	srv := httptest.NewServer(filesetHandler(t, nil))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "lake", AuthConfig{User: "alice"})
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	defer client.Close()

	_, err = client.LoadFileset(context.Background(), Identifier{Catalog: "catalog1", Schema: "schema1", Name: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadFileset err = %v, want ErrNotFound", err)
	}
}

func TestLoadFilesetServerErrors(t *testing.T) {
	srv := httptest.NewServer(filesetHandler(t, nil))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "lake", AuthConfig{User: "alice"})
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	defer client.Close()

	// 5xx surfaces the status, not ErrNotFound.
	_, err = client.LoadFileset(context.Background(), Identifier{Catalog: "catalog1", Schema: "schema1", Name: "boom"})
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("LoadFileset 5xx err = %v", err)
	}

	// A fileset without a storage location is unusable.
	_, err = client.LoadFileset(context.Background(), Identifier{Catalog: "catalog1", Schema: "schema1", Name: "broken"})
	if err == nil || !strings.Contains(err.Error(), "storage location") {
		t.Errorf("LoadFileset broken err = %v", err)
	}
}

func TestLoadFilesetInvalidIdentifier(t *testing.T) {
	client, err := NewRESTClient("http://localhost:0", "lake", AuthConfig{User: "alice"})
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	defer client.Close()

	for _, id := range []Identifier{
		{},
		{Catalog: "c"},
		{Catalog: "c", Schema: "s"},
		{Schema: "s", Name: "f"},
	} {
		if _, err := client.LoadFileset(context.Background(), id); err == nil {
			t.Errorf("LoadFileset(%v) should fail before any request", id)
		}
	}
}

func TestSimpleAuthProxyUser(t *testing.T) {
	var gotProxy string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProxy = r.Header.Get("X-Proxy-User")
		http.Error(w, "{}", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "lake", AuthConfig{User: "svc", ProxyUser: "bob"})
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	defer client.Close()

	client.LoadFileset(context.Background(), Identifier{Catalog: "c", Schema: "s", Name: "f"})
	if gotProxy != "bob" {
		t.Errorf("X-Proxy-User = %q, want %q", gotProxy, "bob")
	}
}

func TestTokenAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(filesetHandler(t, &gotAuth))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "lake", AuthConfig{Type: AuthToken, Token: "sekrit"})
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	defer client.Close()

	if _, err := client.LoadFileset(context.Background(), Identifier{Catalog: "catalog1", Schema: "schema1", Name: "fileset1"}); err != nil {
		t.Fatalf("LoadFileset: %v", err)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("authorization header = %q", gotAuth)
	}
}

func TestOAuth2Auth(t *testing.T) {
	var tokenFetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenFetches.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("scope") != "all" {
			t.Errorf("scope = %q", r.PostForm.Get("scope"))
		}
		id, secret, ok := r.BasicAuth()
		if !ok || id != "app" || secret != "hunter2" {
			t.Errorf("basic auth = %q/%q ok=%v", id, secret, ok)
		}
		fmt.Fprint(w, `{"access_token":"tok123","expires_in":3600}`)
	})
	var gotAuth string
	mux.Handle("/", filesetHandler(t, &gotAuth))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "lake", AuthConfig{
		Type:       AuthOAuth2,
		ServerURI:  srv.URL,
		Credential: "app:hunter2",
		TokenPath:  "/oauth/token",
		Scope:      "all",
	})
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	defer client.Close()

	id := Identifier{Catalog: "catalog1", Schema: "schema1", Name: "fileset1"}
	for i := 0; i < 3; i++ {
		if _, err := client.LoadFileset(context.Background(), id); err != nil {
			t.Fatalf("LoadFileset #%d: %v", i, err)
		}
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if got := tokenFetches.Load(); got != 1 {
		t.Errorf("token fetched %d times across repeated loads, want 1", got)
	}
}

func TestAuthConfigValidate(t *testing.T) {
	valid := []AuthConfig{
		{User: "alice"},
		{Type: AuthSimple, User: "alice"},
		{Type: AuthSimple, User: "svc", ProxyUser: "bob"},
		{Type: AuthToken, Token: "tok"},
		{Type: AuthOAuth2, ServerURI: "http://a", Credential: "i:s", TokenPath: "/t", Scope: "all"},
	}
	for _, a := range valid {
		if err := a.Validate(); err != nil {
			t.Errorf("Validate(%+v): %v", a, err)
		}
	}

	invalid := []AuthConfig{
		{},
		{Type: AuthSimple},
		{Type: AuthToken},
		{Type: AuthOAuth2, Credential: "i:s", TokenPath: "/t", Scope: "all"},
		{Type: AuthOAuth2, ServerURI: "http://a", TokenPath: "/t", Scope: "all"},
		{Type: AuthOAuth2, ServerURI: "http://a", Credential: "i:s", Scope: "all"},
		{Type: AuthOAuth2, ServerURI: "http://a", Credential: "i:s", TokenPath: "/t"},
		{Type: "kerberos"},
	}
	for _, a := range invalid {
		if err := a.Validate(); err == nil {
			t.Errorf("Validate(%+v) should fail", a)
		}
	}
}
