package displays

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/conduit-admin/internal/enums"
)

const jsonHead = `<link rel="stylesheet" href="https://cdn.jsdelivr.net/gh/highlightjs/cdn-release@10.7.2/build/styles/default.min.css">
<script src="https://cdn.jsdelivr.net/gh/highlightjs/cdn-release@10.7.2/build/highlight.min.js"></script>
<script>hljs.highlightAll();</script>
`

func newRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/admin", nil)
}

func TestDisplayEscapesText(t *testing.T) {
	out, err := NewDisplay().Render(newRequest(), "<b>bold</b>")
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", out)

	out, err = NewDisplay().Render(newRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestDatetimeDisplay(t *testing.T) {
	assert.Equal(t, "%Y-%m-%d %H:%M:%S", NewDatetimeDisplay("").Format)
	assert.Equal(t, "%d-%m-%Y %H:%M:%S", NewDatetimeDisplay("%d-%m-%Y %H:%M:%S").Format)

	out, err := NewDatetimeDisplay("").Render(newRequest(), time.Date(2023, 10, 5, 15, 30, 45, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2023-10-05 15:30:45", out)

	out, err = NewDatetimeDisplay("").Render(newRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestDateDisplay(t *testing.T) {
	assert.Equal(t, "%Y-%m-%d", NewDateDisplay("").Format)

	out, err := NewDateDisplay("%d-%m-%Y").Render(newRequest(), time.Date(2023, 10, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "05-10-2023", out)
}

func TestBooleanTemplate(t *testing.T) {
	b := NewBoolean()
	assert.Equal(t, "widgets/displays/boolean.html", b.Template)

	out, err := b.Render(newRequest(), true)
	require.NoError(t, err)
	assert.Contains(t, out, "bg-green-lt")

	out, err = b.Render(newRequest(), "false")
	require.NoError(t, err)
	assert.Contains(t, out, "bg-red-lt")
}

func TestJsonRender(t *testing.T) {
	j := NewJson()
	assert.Equal(t, "widgets/displays/json.html", j.Template)

	out, err := j.Render(newRequest(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, jsonHead+`<pre><code class="json">{}</code></pre>`, out)

	out, err = j.Render(newRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, jsonHead+`<pre><code class="json">null</code></pre>`, out)
}

func TestEnumDisplay(t *testing.T) {
	status := enums.New("status", "ACTIVE", "1", "BANNED", "2")

	out, err := NewEnumDisplay(status).Render(newRequest(), int64(2))
	require.NoError(t, err)
	assert.Equal(t, "BANNED", out)

	out, err = NewEnumDisplay(status).Render(newRequest(), "9")
	require.NoError(t, err)
	assert.Equal(t, "9", out)
}

func TestImageAndColor(t *testing.T) {
	out, err := NewImage("32", "").Render(newRequest(), "/static/uploads/a.png")
	require.NoError(t, err)
	assert.Contains(t, out, `src="/static/uploads/a.png"`)
	assert.Contains(t, out, `width="32"`)
	assert.NotContains(t, out, "height")

	out, err = NewColor().Render(newRequest(), "#FFFFFF")
	require.NoError(t, err)
	assert.Contains(t, out, "#FFFFFF")
}

func TestInputOnlyIsDisplay(t *testing.T) {
	var w interface{} = NewInputOnly()
	_, ok := w.(*InputOnly)
	assert.True(t, ok)
}
