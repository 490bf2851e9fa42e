package ollama

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/marengo/provider"
)

func newTestLineReader(body string) *lineReader {
	return &lineReader{
		reader: bufio.NewReader(strings.NewReader(body)),
		closer: io.NopCloser(strings.NewReader("")),
	}
}

func TestLineReader_ReadObject(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"Hel"},"done":false}` + "\n" +
		"\n" +
		`{"message":{"role":"assistant","content":"lo"},"done":false}` + "\n" +
		`{"done":true,"done_reason":"stop"}` + "\n"

	r := newTestLineReader(body)

	obj, err := r.ReadObject()
	require.NoError(t, err)
	assert.Equal(t, "Hel", obj.Message.Content)

	obj, err = r.ReadObject()
	require.NoError(t, err)
	assert.Equal(t, "lo", obj.Message.Content)

	obj, err = r.ReadObject()
	require.NoError(t, err)
	assert.True(t, obj.Done)
	assert.Equal(t, "stop", obj.DoneReason)

	_, err = r.ReadObject()
	assert.Equal(t, io.EOF, err)
}

func TestLineReader_SkipsMalformedLines(t *testing.T) {
	body := "garbage that is not json\n" +
		`{"message":{"role":"assistant","content":"ok"},"done":false}` + "\n"

	r := newTestLineReader(body)

	obj, err := r.ReadObject()
	require.NoError(t, err)
	assert.Equal(t, "ok", obj.Message.Content)
}

func TestLineReader_TrailingPartialLine(t *testing.T) {
	// The body ends without a final newline; the last line still decodes.
	body := `{"message":{"role":"assistant","content":"a"},"done":false}` + "\n" +
		`{"done":true,"done_reason":"stop"}`

	r := newTestLineReader(body)

	obj, err := r.ReadObject()
	require.NoError(t, err)
	assert.Equal(t, "a", obj.Message.Content)

	obj, err = r.ReadObject()
	require.NoError(t, err)
	assert.True(t, obj.Done)

	_, err = r.ReadObject()
	assert.Equal(t, io.EOF, err)
}

func TestLineReader_TrailingGarbage(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"a"},"done":false}` + "\n" +
		`{"truncated`

	r := newTestLineReader(body)

	obj, err := r.ReadObject()
	require.NoError(t, err)
	assert.Equal(t, "a", obj.Message.Content)

	_, err = r.ReadObject()
	assert.Equal(t, io.EOF, err)
}

func TestParseError(t *testing.T) {
	t.Run("structured body", func(t *testing.T) {
		err := parseError(http.StatusNotFound, []byte(`{"error": "model \"nope\" not found"}`))

		var te *provider.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusNotFound, te.StatusCode)
		assert.Equal(t, `model "nope" not found`, te.Message)
	})

	t.Run("opaque body", func(t *testing.T) {
		err := parseError(http.StatusInternalServerError, []byte("boom"))

		var te *provider.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "boom", te.Message)
	})
}

func TestNewClient_Defaults(t *testing.T) {
	c := newClient("", nil)
	assert.Equal(t, defaultBaseURL, c.baseURL)

	c = newClient("http://remote:11434/", nil)
	assert.Equal(t, "http://remote:11434", c.baseURL)
}
