package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// RESTClient loads fileset metadata over the metadata service's REST API.
type RESTClient struct {
	baseURL  string
	metalake string
	auth     authorizer
	hc       *http.Client
}

// NewRESTClient builds a client for the metadata service at serverURI,
// scoped to the given metalake (tenant namespace root).
func NewRESTClient(serverURI, metalake string, auth AuthConfig) (*RESTClient, error) {
	if serverURI == "" {
		return nil, fmt.Errorf("metadata server uri is required")
	}
	if metalake == "" {
		return nil, fmt.Errorf("metalake name is required")
	}
	if _, err := url.Parse(serverURI); err != nil {
		return nil, fmt.Errorf("invalid metadata server uri %q: %w", serverURI, err)
	}
	hc := &http.Client{Timeout: defaultRequestTimeout}
	az, err := newAuthorizer(auth, hc)
	if err != nil {
		return nil, err
	}
	return &RESTClient{
		baseURL:  strings.TrimSuffix(serverURI, "/"),
		metalake: metalake,
		auth:     az,
		hc:       hc,
	}, nil
}

type filesetResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message,omitempty"`
	Fileset *Fileset `json:"fileset"`
}

// LoadFileset fetches the metadata snapshot for id. Unknown identifiers
// yield ErrNotFound.
func (c *RESTClient) LoadFileset(ctx context.Context, id Identifier) (*Fileset, error) {
	if err := validIdentifier(id); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/metalakes/%s/catalogs/%s/schemas/%s/filesets/%s",
		c.baseURL,
		url.PathEscape(c.metalake),
		url.PathEscape(id.Catalog),
		url.PathEscape(id.Schema),
		url.PathEscape(id.Name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if err := c.auth.apply(req); err != nil {
		return nil, fmt.Errorf("authorize metadata request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load fileset %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("load fileset %s: %w", id, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("load fileset %s: %s: %s", id, resp.Status, strings.TrimSpace(string(body)))
	}

	var fr filesetResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decode fileset %s: %w", id, err)
	}
	if fr.Fileset == nil {
		return nil, fmt.Errorf("load fileset %s: empty response", id)
	}
	if fr.Fileset.StorageLocation == "" {
		return nil, fmt.Errorf("fileset %s has no storage location", id)
	}
	return fr.Fileset, nil
}

// Close releases idle connections held by the underlying HTTP client.
func (c *RESTClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}
