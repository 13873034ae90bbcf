package channel

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"strings"
)

// Response is a completed 2xx exchange. Value holds the decoded JSON document
// for JSON bodies and the raw text otherwise.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Value      any
}

// RequestID returns the provider-assigned id used to track asynchronous
// operations.
func (r *Response) RequestID() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(headerRequestID))
}

func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

func (r *Response) Decode(target any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return parseError("response body is empty", nil)
	}

	decoder := json.NewDecoder(bytes.NewReader(r.Body))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return parseError("response body is not valid JSON", err)
	}
	return nil
}

func (r *Response) DecodeXML(target any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return parseError("response body is empty", nil)
	}

	if err := xml.Unmarshal(r.Body, target); err != nil {
		return parseError("response body is not valid XML", err)
	}
	return nil
}

func decodeResponseValue(contentType string, body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !isJSONMediaType(contentType) {
		return string(body), nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, parseError("response body is not valid JSON", err)
	}
	return value, nil
}

func isJSONMediaType(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return mediaType == MediaTypeJSON || strings.HasSuffix(mediaType, "+json") || mediaType == "text/json"
}
