package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	noteID = "aaaaaaaabbbbccccddddeeeeeeeeeeee"
	resID  = "11111111222233334444555555555555"
	res2ID = "66666666777788889999aaaaaaaaaaaa"
)

func TestLinkText_Markdown(t *testing.T) {
	assert.Equal(t, "[report.pdf](:/"+resID+")",
		LinkText(true, Link{ResourceID: resID, Title: "report.pdf", Kind: KindAttachment}))
	assert.Equal(t, "![chart.png](:/"+resID+")",
		LinkText(true, Link{ResourceID: resID, Title: "chart.png", Kind: KindImage}))
	assert.Equal(t, "[Other note](:/"+resID+")",
		LinkText(true, Link{ResourceID: resID, Title: "Other note", Kind: KindDocument}))
}

func TestLinkText_RichText(t *testing.T) {
	assert.Equal(t, `<a href=":/`+resID+`">report.pdf</a>`,
		LinkText(false, Link{ResourceID: resID, Title: "report.pdf", Kind: KindAttachment}))
	assert.Equal(t, `<img src=":/`+resID+`" alt="chart.png">`,
		LinkText(false, Link{ResourceID: resID, Title: "chart.png", Kind: KindImage}))
}

// Every literal occurrence must disappear and exactly N target-addressed
// forms must take their place.
func TestBody_SubstitutionComplete(t *testing.T) {
	links := []Link{
		{NoteID: noteID, ResourceID: resID, Title: "pic", Kind: KindImage,
			SourceText: `<img src="index_files/pic.png">`},
		{NoteID: noteID, ResourceID: res2ID, Title: "doc", Kind: KindDocument,
			SourceText: `<a href="notes://open_document?guid=x">doc</a>`},
	}
	body := `before <img src="index_files/pic.png"> middle ` +
		`<a href="notes://open_document?guid=x">doc</a> after`

	out := Body(body, true, links)

	for _, l := range links {
		assert.Zero(t, strings.Count(out, l.SourceText), "literal %q survived", l.SourceText)
	}
	assert.Equal(t, 1, strings.Count(out, "![pic](:/"+resID+")"))
	assert.Equal(t, 1, strings.Count(out, "[doc](:/"+res2ID+")"))
	assert.NotContains(t, out, TrailingHeading)
}

func TestBody_RepeatedLiteral(t *testing.T) {
	link := Link{NoteID: noteID, ResourceID: resID, Title: "pic", Kind: KindImage,
		SourceText: "![](old/pic.png)"}
	out := Body("![](old/pic.png) and again ![](old/pic.png)", true, []Link{link})
	assert.Zero(t, strings.Count(out, "![](old/pic.png)"))
	assert.Equal(t, 2, strings.Count(out, "![pic](:/"+resID+")"))
}

// An attachment never seen inline is appended exactly once under the
// trailing heading, and nothing is substituted for it.
func TestBody_TrailingAppend(t *testing.T) {
	link := Link{NoteID: noteID, ResourceID: resID, Title: "backup.zip", Kind: KindAttachment}
	out := Body("plain body", true, []Link{link})

	require.Equal(t, 1, strings.Count(out, "# "+TrailingHeading))
	assert.Equal(t, 1, strings.Count(out, "- [backup.zip](:/"+resID+")"))
	assert.True(t, strings.HasPrefix(out, "plain body"))
}

func TestBody_TrailingAppend_RichText(t *testing.T) {
	link := Link{NoteID: noteID, ResourceID: resID, Title: "backup.zip", Kind: KindAttachment}
	out := Body("<p>body</p>", false, []Link{link})

	assert.Equal(t, 1, strings.Count(out, "<h1>"+TrailingHeading+"</h1>"))
	assert.Equal(t, 1, strings.Count(out, `<li><a href=":/`+resID+`">backup.zip</a></li>`))
}

// Inline attachments are substituted, not appended; only the never-inline
// one lands in the trailing block.
func TestBody_InlineAttachmentNotAppended(t *testing.T) {
	links := []Link{
		{NoteID: noteID, ResourceID: resID, Title: "inline.pdf", Kind: KindAttachment,
			SourceText: "{{inline.pdf}}"},
		{NoteID: noteID, ResourceID: res2ID, Title: "loose.pdf", Kind: KindAttachment},
	}
	out := Body("with {{inline.pdf}} embedded", true, links)

	assert.Equal(t, 1, strings.Count(out, "[inline.pdf](:/"+resID+")"))
	assert.Equal(t, 1, strings.Count(out, "# "+TrailingHeading))
	assert.Equal(t, 1, strings.Count(out, "- [loose.pdf](:/"+res2ID+")"))
	assert.Zero(t, strings.Count(out, "- [inline.pdf]"))
}

// Documents and images without source text are never appended.
func TestBody_NoTrailingForNonAttachments(t *testing.T) {
	links := []Link{
		{NoteID: noteID, ResourceID: resID, Title: "ghost", Kind: KindImage},
		{NoteID: noteID, ResourceID: res2ID, Title: "other", Kind: KindDocument},
	}
	out := Body("body", true, links)
	assert.Equal(t, "body", out)
}
