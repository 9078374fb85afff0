package variables

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/models"
)

func TestExtract_Static(t *testing.T) {
	v := &models.Variable{Source: models.SourceStatic, StaticValue: "fixed"}
	val, ok := Extract(v, Context{})
	require.True(t, ok)
	assert.Equal(t, "fixed", val)
}

func TestExtract_RandomUUID(t *testing.T) {
	v := &models.Variable{Source: models.SourceRandom, ExtractMethod: models.ExtractRandomUUID}
	val, ok := Extract(v, Context{})
	require.True(t, ok)
	assert.Len(t, val, 36)
}

func TestExtract_RandomStringWithFormat(t *testing.T) {
	v := &models.Variable{Source: models.SourceRandom, ExtractMethod: models.ExtractRandomString, RandomFormat: "aaa-nnnn"}
	val, ok := Extract(v, Context{})
	require.True(t, ok)
	require.Len(t, val, 8)
	assert.Equal(t, byte('-'), val[3])
}

func TestExtract_RandomStringNoFormat(t *testing.T) {
	v := &models.Variable{Source: models.SourceRandom, ExtractMethod: models.ExtractRandomString, RandomLength: 12}
	val, ok := Extract(v, Context{})
	require.True(t, ok)
	assert.Len(t, val, 12)
}

func TestExtract_RandomNumberNoFormat(t *testing.T) {
	v := &models.Variable{Source: models.SourceRandom, ExtractMethod: models.ExtractRandomNumber, RandomLength: 6}
	val, ok := Extract(v, Context{})
	require.True(t, ok)
	require.Len(t, val, 6)
	for _, r := range val {
		assert.True(t, r >= '0' && r <= '9', "expected digit, got %q", r)
	}
}

func TestExtract_RandomNumberFormatOnlyHashIsDigit(t *testing.T) {
	// "A#" must produce a literal 'A' followed by a random digit: unlike
	// random_string, 'a'/'A'/'n' are not format runes here.
	v := &models.Variable{Source: models.SourceRandom, ExtractMethod: models.ExtractRandomNumber, RandomFormat: "A#"}
	val, ok := Extract(v, Context{})
	require.True(t, ok)
	require.Len(t, val, 2)
	assert.Equal(t, byte('A'), val[0])
	assert.True(t, val[1] >= '0' && val[1] <= '9', "expected digit, got %q", val[1])
}

func TestExtract_RandomNumberFormatLiteralSeparators(t *testing.T) {
	v := &models.Variable{Source: models.SourceRandom, ExtractMethod: models.ExtractRandomNumber, RandomFormat: "###-###"}
	val, ok := Extract(v, Context{})
	require.True(t, ok)
	require.Len(t, val, 7)
	assert.Equal(t, byte('-'), val[3])
}

func TestExtract_FullBody(t *testing.T) {
	v := &models.Variable{Source: models.SourceResponseBody, ExtractMethod: models.ExtractFullBody}
	val, ok := Extract(v, Context{ResponseBody: []byte("hello world")})
	require.True(t, ok)
	assert.Equal(t, "hello world", val)
}

func TestExtract_JSONPath(t *testing.T) {
	v := &models.Variable{Source: models.SourceResponseBody, ExtractMethod: models.ExtractJSONPath, Pattern: "data.items.0.token"}
	body := []byte(`{"data":{"items":[{"token":"abc123"}]}}`)
	val, ok := Extract(v, Context{ResponseBody: body})
	require.True(t, ok)
	assert.Equal(t, "abc123", val)
}

func TestExtract_JSONPathMissingKey(t *testing.T) {
	v := &models.Variable{Source: models.SourceResponseBody, ExtractMethod: models.ExtractJSONPath, Pattern: "data.missing"}
	body := []byte(`{"data":{"items":[]}}`)
	_, ok := Extract(v, Context{ResponseBody: body})
	assert.False(t, ok)
}

func TestExtract_JSONPathNonJSONBody(t *testing.T) {
	v := &models.Variable{Source: models.SourceResponseBody, ExtractMethod: models.ExtractJSONPath, Pattern: "data.token"}
	_, ok := Extract(v, Context{ResponseBody: []byte("not json")})
	assert.False(t, ok)
}

func TestExtract_RegexFirstCaptureGroup(t *testing.T) {
	v := &models.Variable{Source: models.SourceResponseBody, ExtractMethod: models.ExtractRegex, Pattern: `token=(\w+)`}
	val, ok := Extract(v, Context{ResponseBody: []byte("prefix token=xyz789 suffix")})
	require.True(t, ok)
	assert.Equal(t, "xyz789", val)
}

func TestExtract_RegexNoCaptureGroup(t *testing.T) {
	v := &models.Variable{Source: models.SourceResponseBody, ExtractMethod: models.ExtractRegex, Pattern: `\d+`}
	val, ok := Extract(v, Context{ResponseBody: []byte("order 42 placed")})
	require.True(t, ok)
	assert.Equal(t, "42", val)
}

func TestExtract_RegexNoMatch(t *testing.T) {
	v := &models.Variable{Source: models.SourceResponseBody, ExtractMethod: models.ExtractRegex, Pattern: `zzz`}
	_, ok := Extract(v, Context{ResponseBody: []byte("nothing here")})
	assert.False(t, ok)
}

func TestExtract_HeaderValueCaseInsensitive(t *testing.T) {
	v := &models.Variable{Source: models.SourceResponseHeader, ExtractMethod: models.ExtractHeaderValue, Pattern: "x-request-id"}
	headers := http.Header{}
	headers.Set("X-Request-Id", "req-1")
	val, ok := Extract(v, Context{ResponseHeaders: headers})
	require.True(t, ok)
	assert.Equal(t, "req-1", val)
}

func TestExtract_CookieValueCaseSensitive(t *testing.T) {
	v := &models.Variable{Source: models.SourceCookie, ExtractMethod: models.ExtractCookieValue, Pattern: "session"}
	cookies := []httpclient.Cookie{{Name: "session", Value: "abc"}, {Name: "Session", Value: "wrong"}}
	val, ok := Extract(v, Context{Cookies: cookies})
	require.True(t, ok)
	assert.Equal(t, "abc", val)
}

func TestSubstitute_ReplacesKnownPlaceholder(t *testing.T) {
	out := Substitute("token is [[token]] end", map[string]string{"token": "xyz"})
	assert.Equal(t, "token is xyz end", out)
}

func TestSubstitute_LeavesUnknownPlaceholderIntact(t *testing.T) {
	out := Substitute("value: [[missing]]", map[string]string{})
	assert.Equal(t, "value: [[missing]]", out)
}

func TestSubstituteRequest_RecursesOverURLHeadersBody(t *testing.T) {
	req := httpclient.Request{
		URL:     "https://example.com/[[id]]",
		Headers: map[string]string{"Authorization": "Bearer [[token]]"},
		Body:    []byte(`{"id":"[[id]]"}`),
	}
	context := map[string]string{"id": "42", "token": "secret"}
	out := SubstituteRequest(req, context)
	assert.Equal(t, "https://example.com/42", out.URL)
	assert.Equal(t, "Bearer secret", out.Headers["Authorization"])
	assert.Equal(t, `{"id":"42"}`, string(out.Body))
}
