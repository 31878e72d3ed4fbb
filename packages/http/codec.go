package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/tidwall/gjson"
)

// Codec decodes a response body.
type Codec interface {
	Decode(resp *Response) (any, error)
}

// CodecFunc adapts a function to Codec.
type CodecFunc func(resp *Response) (any, error)

func (f CodecFunc) Decode(resp *Response) (any, error) {
	return f(resp)
}

// DefaultCodec picks the decoding from the response content type:
//   - JSON (application/json, */*+json): map[string]any, []any or a scalar
//   - form (application/x-www-form-urlencoded): url.Values
//   - text/*, XML and JavaScript: string
//   - empty body: nil
//   - anything else: the raw bytes
type DefaultCodec struct{}

func (DefaultCodec) Decode(resp *Response) (any, error) {
	if len(resp.Body) == 0 {
		return nil, nil
	}

	ct := resp.ContentType()
	media := mediaType(ct)
	switch {
	case isJSON(media):
		if !gjson.ValidBytes(resp.Body) {
			return nil, errs.Parse(ct, errors.New("invalid JSON"))
		}
		return gjson.ParseBytes(resp.Body).Value(), nil
	case media == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(resp.Body))
		if err != nil {
			return nil, errs.Parse(ct, err)
		}
		return values, nil
	case isText(media):
		return string(resp.Body), nil
	default:
		return append([]byte(nil), resp.Body...), nil
	}
}

func isText(media string) bool {
	return strings.HasPrefix(media, "text/") ||
		media == "application/xml" ||
		strings.HasSuffix(media, "+xml") ||
		media == "application/javascript"
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		media, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(media))
}

// EncodeBody turns a call body into bytes and reports the content type the
// encoding implies ("" when the caller supplied raw bytes or text).
func EncodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "", nil
	case string:
		return []byte(b), "", nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("reading body: %w", err)
		}
		return data, "", nil
	case url.Values:
		return []byte(b.Encode()), "application/x-www-form-urlencoded", nil
	case json.RawMessage:
		return b, "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encoding body as JSON: %w", err)
		}
		return data, "application/json", nil
	}
}
