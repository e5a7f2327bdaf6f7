// Package target speaks to the flat, ID-addressed REST API of the note
// service being migrated into.
//
// The service knows folders, notes, tags and resources, each addressed by a
// 32-hex identifier; the only hierarchy concept is a note's or folder's
// parent-folder pointer. The Client interface is the collaborator boundary
// the sync engine is written against; HTTPClient is the wire implementation.
package target

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrDuplicate reports that the service rejected a create because the
// requested identifier or a unique field is already taken. Callers reconcile
// by fetching the existing entity and recording it locally.
var ErrDuplicate = errors.New("target entity already exists")

// Client is the full call surface the sync engine needs from the service.
type Client interface {
	// CreateFolder creates a folder; parentID may be empty for root level.
	CreateFolder(ctx context.Context, title, parentID string) (*Folder, error)
	// CreateTag creates a tag under the requested ID. Returns ErrDuplicate
	// when the ID or title is already taken.
	CreateTag(ctx context.Context, tag *Tag) (*Tag, error)
	// Tag fetches an existing tag by ID.
	Tag(ctx context.Context, id string) (*Tag, error)
	// CreateResource uploads binary content with the given metadata; the
	// service assigns the resource ID.
	CreateResource(ctx context.Context, res *Resource, data io.Reader) (*Resource, error)
	// ListResources returns every resource the service holds.
	ListResources(ctx context.Context) ([]*Resource, error)
	// CreateNote creates a note under the requested ID. Returns ErrDuplicate
	// when the ID is already taken.
	CreateNote(ctx context.Context, note *Note) (*Note, error)
}

// HTTPClient talks to the service's token-authenticated data API.
type HTTPClient struct {
	base  string
	token string
	http  *http.Client
	log   zerolog.Logger
}

// NewHTTPClient builds a client for the data API listening on host:port.
func NewHTTPClient(host string, port int, token string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		base:  fmt.Sprintf("http://%s:%d", host, port),
		token: token,
		http:  &http.Client{Timeout: timeout},
		log:   log.With().Str("component", "target").Logger(),
	}
}

func (c *HTTPClient) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("token", c.token)
	return c.base + path + "?" + query.Encode()
}

// do issues the request and decodes the JSON response into out. Responses
// signalling a uniqueness violation are mapped to ErrDuplicate.
func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode >= 400 {
		if strings.Contains(string(body), "UNIQUE constraint") {
			return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrDuplicate)
		}
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
		}
	}
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// CreateFolder implements Client.
func (c *HTTPClient) CreateFolder(ctx context.Context, title, parentID string) (*Folder, error) {
	payload := map[string]string{"title": title}
	if parentID != "" {
		payload["parent_id"] = parentID
	}
	var folder Folder
	if err := c.postJSON(ctx, "/folders", payload, &folder); err != nil {
		return nil, err
	}
	c.log.Debug().Str("id", folder.ID).Str("title", title).Msg("created folder")
	return &folder, nil
}

// CreateTag implements Client.
func (c *HTTPClient) CreateTag(ctx context.Context, tag *Tag) (*Tag, error) {
	var created Tag
	if err := c.postJSON(ctx, "/tags", tag, &created); err != nil {
		return nil, err
	}
	c.log.Debug().Str("id", created.ID).Str("title", created.Title).Msg("created tag")
	return &created, nil
}

// Tag implements Client.
func (c *HTTPClient) Tag(ctx context.Context, id string) (*Tag, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/tags/"+id, nil), nil)
	if err != nil {
		return nil, err
	}
	var tag Tag
	if err := c.do(req, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

// CreateResource implements Client. The API takes a multipart form with a
// "props" JSON part for the metadata and a "data" part for the content.
func (c *HTTPClient) CreateResource(ctx context.Context, res *Resource, data io.Reader) (*Resource, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	props, err := json.Marshal(map[string]string{"title": res.Title, "filename": res.Filename})
	if err != nil {
		return nil, fmt.Errorf("encode resource props: %w", err)
	}
	if err := form.WriteField("props", string(props)); err != nil {
		return nil, err
	}
	part, err := form.CreateFormFile("data", res.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, data); err != nil {
		return nil, fmt.Errorf("copy resource data: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/resources", nil), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var created Resource
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	created.Kind = res.Kind
	c.log.Debug().Str("id", created.ID).Str("filename", created.Filename).Msg("uploaded resource")
	return &created, nil
}

// resourcePage is one page of the paginated resource listing.
type resourcePage struct {
	Items   []*Resource `json:"items"`
	HasMore bool        `json:"has_more"`
}

// ListResources implements Client, following has_more pagination to the end.
func (c *HTTPClient) ListResources(ctx context.Context) ([]*Resource, error) {
	var all []*Resource
	for page := 1; ; page++ {
		query := url.Values{"page": []string{strconv.Itoa(page)}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/resources", query), nil)
		if err != nil {
			return nil, err
		}
		var res resourcePage
		if err := c.do(req, &res); err != nil {
			return nil, err
		}
		all = append(all, res.Items...)
		if !res.HasMore {
			return all, nil
		}
	}
}

// CreateNote implements Client.
func (c *HTTPClient) CreateNote(ctx context.Context, note *Note) (*Note, error) {
	var created Note
	if err := c.postJSON(ctx, "/notes", note, &created); err != nil {
		return nil, err
	}
	created.Location = note.Location
	c.log.Debug().Str("id", created.ID).Str("title", created.Title).Msg("created note")
	return &created, nil
}
