package target

// Markup languages accepted by the target service's note API.
const (
	MarkupMarkdown = 1
	MarkupRichText = 2
)

// Resource kinds recorded in the sync cache. The target service itself does
// not distinguish them; the distinction matters when rewriting link text.
const (
	ResourceAttachment = 1
	ResourceImage      = 2
)

// Folder is a target-side notebook. Hierarchy is expressed purely through
// ParentID pointers.
type Folder struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ParentID string `json:"parent_id,omitempty"`
}

// Tag is a target-side label. Timestamps are Unix milliseconds.
type Tag struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Created int64  `json:"created_time"`
	Updated int64  `json:"updated_time"`
}

// Resource is a target-side binary resource.
type Resource struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Created  int64  `json:"created_time"`
	// Kind is cache-side bookkeeping (attachment vs image), never sent to
	// the service.
	Kind int `json:"-"`
}

// Note is a target-side note.
type Note struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Markup   int    `json:"markup_language"`
	ParentID string `json:"parent_id"`
	// SourceURL is the origin URL of the migrated document, if any.
	SourceURL string `json:"source_url,omitempty"`
	Created   int64  `json:"created_time"`
	Updated   int64  `json:"updated_time"`
	// Location is the source-side hierarchy key the note came from,
	// cache-side bookkeeping only.
	Location string `json:"-"`
}
