package target

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return NewHTTPClient(u.Hostname(), port, "secret", 5*time.Second, zerolog.Nop())
}

func TestHTTPClient_CreateFolder(t *testing.T) {
	var gotToken string
	var gotPayload map[string]string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/folders", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		gotToken = r.URL.Query().Get("token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprintf(w, `{"id":"%s","title":"%s","parent_id":"%s"}`,
			strings.Repeat("a", 32), gotPayload["title"], gotPayload["parent_id"])
	}))

	folder, err := client.CreateFolder(context.Background(), "inbox", strings.Repeat("b", 32))
	require.NoError(t, err)
	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, strings.Repeat("a", 32), folder.ID)
	assert.Equal(t, "inbox", folder.Title)
	assert.Equal(t, strings.Repeat("b", 32), folder.ParentID)
}

func TestHTTPClient_CreateFolder_RootOmitsParent(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, hasParent := payload["parent_id"]
		assert.False(t, hasParent, "root folder must not send parent_id")
		fmt.Fprintf(w, `{"id":"%s","title":"root"}`, strings.Repeat("c", 32))
	}))

	_, err := client.CreateFolder(context.Background(), "root", "")
	require.NoError(t, err)
}

func TestHTTPClient_DuplicateMapsToErrDuplicate(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"UNIQUE constraint failed: tags.title"}`)
	}))

	_, err := client.CreateTag(context.Background(), &Tag{ID: strings.Repeat("d", 32), Title: "dup"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestHTTPClient_ErrorCarriesStatusAndBody(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"invalid token"}`)
	}))

	_, err := client.CreateNote(context.Background(), &Note{ID: strings.Repeat("e", 32)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid token")
}

func TestHTTPClient_Tag(t *testing.T) {
	id := strings.Repeat("f", 32)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tags/"+id, r.URL.Path)
		fmt.Fprintf(w, `{"id":"%s","title":"projects","created_time":7,"updated_time":9}`, id)
	}))

	tag, err := client.Tag(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "projects", tag.Title)
	assert.Equal(t, int64(7), tag.Created)
	assert.Equal(t, int64(9), tag.Updated)
}

func TestHTTPClient_CreateResource_Multipart(t *testing.T) {
	var gotProps map[string]string
	var gotData []byte
	var gotFilename string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/resources", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("props")), &gotProps))

		file, header, err := r.FormFile("data")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		gotData, err = io.ReadAll(file)
		require.NoError(t, err)

		fmt.Fprintf(w, `{"id":"%s","title":"report.pdf","filename":"report.pdf"}`, strings.Repeat("9", 32))
	}))

	res, err := client.CreateResource(context.Background(),
		&Resource{Title: "report.pdf", Filename: "report.pdf", Kind: ResourceAttachment},
		strings.NewReader("binary-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", gotProps["title"])
	assert.Equal(t, "report.pdf", gotProps["filename"])
	assert.Equal(t, "report.pdf", gotFilename)
	assert.Equal(t, "binary-bytes", string(gotData))
	assert.Equal(t, strings.Repeat("9", 32), res.ID)
	assert.Equal(t, ResourceAttachment, res.Kind, "kind is local metadata and must survive the round trip")
}

func TestHTTPClient_ListResources_Pagination(t *testing.T) {
	pages := map[string]string{
		"1": fmt.Sprintf(`{"items":[{"id":"%s","filename":"a.pdf"}],"has_more":true}`, strings.Repeat("1", 32)),
		"2": fmt.Sprintf(`{"items":[{"id":"%s","filename":"b.pdf"}],"has_more":false}`, strings.Repeat("2", 32)),
	}
	var requested []string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		fmt.Fprint(w, pages[page])
	}))

	all, err := client.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"1", "2"}, requested)
	assert.Equal(t, "a.pdf", all[0].Filename)
	assert.Equal(t, "b.pdf", all[1].Filename)
}

func TestHTTPClient_CreateNote(t *testing.T) {
	id := strings.Repeat("a", 32)
	parent := strings.Repeat("b", 32)
	var gotPayload map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/notes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprintf(w, `{"id":"%s","title":"hello","parent_id":"%s"}`, id, parent)
	}))

	note, err := client.CreateNote(context.Background(), &Note{
		ID:       id,
		Title:    "hello",
		Body:     "text",
		Markup:   MarkupMarkdown,
		ParentID: parent,
		Location: "work/projects",
	})
	require.NoError(t, err)

	assert.Equal(t, id, gotPayload["id"])
	assert.Equal(t, float64(MarkupMarkdown), gotPayload["markup_language"])
	_, hasLocation := gotPayload["location"]
	assert.False(t, hasLocation, "source location must not go over the wire")
	assert.Equal(t, "work/projects", note.Location, "location is carried back for the cache")
}
