// Package variables implements C3: extraction of a Variable's value
// from a response, and substitution of `[[name]]` placeholders inside
// a request template. Grounded on the teacher's
// internal/common/replacement.go recursive substitution pattern
// (generalized from `{key}` to `[[name]]`), with json_path extraction
// delegated to github.com/tidwall/gjson per spec §4.3.
package variables

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/models"
)

// Context is the response data extraction can draw from (spec §4.3).
type Context struct {
	ResponseBody    []byte
	ResponseHeaders http.Header
	Cookies         []httpclient.Cookie
}

var placeholderPattern = regexp.MustCompile(`\[\[(\w+)\]\]`)

// Extract computes v's value given ctx, returning ("", false) when
// extraction yields null (spec §4.3: missing key, bad pattern, no
// match, non-JSON body, ...).
func Extract(v *models.Variable, ctx Context) (string, bool) {
	switch v.Source {
	case models.SourceStatic:
		return v.StaticValue, true

	case models.SourceRandom:
		return extractRandom(v)

	case models.SourceResponseBody:
		return extractFromBody(v, ctx.ResponseBody)

	case models.SourceResponseHeader:
		if v.ExtractMethod != models.ExtractHeaderValue || ctx.ResponseHeaders == nil {
			return "", false
		}
		val := ctx.ResponseHeaders.Get(v.Pattern)
		if val == "" {
			return "", false
		}
		return val, true

	case models.SourceCookie:
		if v.ExtractMethod != models.ExtractCookieValue {
			return "", false
		}
		for _, c := range ctx.Cookies {
			if c.Name == v.Pattern {
				return c.Value, true
			}
		}
		return "", false

	default:
		return "", false
	}
}

func extractRandom(v *models.Variable) (string, bool) {
	switch v.ExtractMethod {
	case models.ExtractRandomUUID:
		return uuid.New().String(), true
	case models.ExtractRandomString:
		return randomStringFormatted(v.RandomLength, v.RandomFormat), true
	case models.ExtractRandomNumber:
		return randomNumberFormatted(v.RandomLength, v.RandomFormat), true
	default:
		return "", false
	}
}

// randomStringFormatted builds the value for random_string (spec
// §4.3). With a non-empty format, the result has one character per
// format rune and n is ignored: 'a' lowercase, 'A' uppercase, 'n'
// digit; any other rune is copied literally. Without a format, the
// result is n alphanumeric characters.
func randomStringFormatted(n int, format string) string {
	if n <= 0 && format == "" {
		return ""
	}
	if format != "" {
		out := make([]byte, 0, len(format))
		for _, r := range format {
			switch r {
			case 'a':
				out = append(out, randomLowerChar())
			case 'A':
				out = append(out, randomUpperChar())
			case 'n':
				out = append(out, randomDigitChar())
			default:
				out = append(out, byte(r))
			}
		}
		return string(out)
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = randomAlnumChar()
	}
	return string(out)
}

// randomNumberFormatted builds the value for random_number (spec
// §4.3). With a non-empty format, the result has one character per
// format rune and n is ignored: `#` is the only digit placeholder,
// every other format rune is copied literally. Without a format, the
// result is n digits.
func randomNumberFormatted(n int, format string) string {
	if n <= 0 && format == "" {
		return ""
	}
	if format != "" {
		out := make([]byte, 0, len(format))
		for _, r := range format {
			if r == '#' {
				out = append(out, randomDigitChar())
			} else {
				out = append(out, byte(r))
			}
		}
		return string(out)
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = randomDigitChar()
	}
	return string(out)
}

const lowerAlphabet = "abcdefghijklmnopqrstuvwxyz"
const upperAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const digitAlphabet = "0123456789"
const alnumAlphabet = lowerAlphabet + upperAlphabet + digitAlphabet

func randomLowerChar() byte { return randomFrom(lowerAlphabet) }
func randomUpperChar() byte { return randomFrom(upperAlphabet) }
func randomDigitChar() byte { return randomFrom(digitAlphabet) }
func randomAlnumChar() byte { return randomFrom(alnumAlphabet) }

func randomFrom(alphabet string) byte {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return alphabet[0]
	}
	return alphabet[idx.Int64()]
}

var jsonPathIndexPattern = regexp.MustCompile(`\[(\d+)\]`)

// toGjsonPath rewrites the spec's `seg[index]` array syntax into
// gjson's native `seg.index` dot form (spec §4.3's grammar, gjson's
// path grammar).
func toGjsonPath(pattern string) string {
	return jsonPathIndexPattern.ReplaceAllString(pattern, ".$1")
}

func extractFromBody(v *models.Variable, body []byte) (string, bool) {
	switch v.ExtractMethod {
	case models.ExtractFullBody:
		return string(body), true

	case models.ExtractJSONPath:
		if !gjson.ValidBytes(body) {
			return "", false
		}
		result := gjson.GetBytes(body, toGjsonPath(v.Pattern))
		if !result.Exists() {
			return "", false
		}
		return result.String(), true

	case models.ExtractRegex:
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return "", false
		}
		match := re.FindSubmatch(body)
		if match == nil {
			return "", false
		}
		if len(match) > 1 {
			return string(match[1]), true
		}
		return string(match[0]), true

	default:
		return "", false
	}
}

// Substitute replaces every `[[name]]` occurrence in text with
// context[name]; placeholders with no match in context are left
// intact (spec §4.3). Pure function of (text, context).
func Substitute(text string, context map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := context[name]; ok {
			return v
		}
		return m
	})
}

// SubstituteRequest applies Substitute recursively over a request
// template's url, header values and body (spec §4.3: "applied
// recursively... strings only; non-string leaves pass through").
func SubstituteRequest(req httpclient.Request, context map[string]string) httpclient.Request {
	out := req
	out.URL = Substitute(req.URL, context)

	if req.Headers != nil {
		headers := make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			headers[k] = Substitute(v, context)
		}
		out.Headers = headers
	}

	if len(req.Body) > 0 {
		out.Body = []byte(Substitute(string(req.Body), context))
	}

	return out
}
