package channel

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/crmarques/mobilectl/faults"
)

func validationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

func transportError(message string, cause error) error {
	return faults.NewTypedError(faults.TransportError, message, cause)
}

func parseError(message string, cause error) error {
	return faults.NewTypedError(faults.ParseError, message, cause)
}

func internalError(message string, cause error) error {
	return faults.NewTypedError(faults.InternalError, message, cause)
}

type xmlErrorBody struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// classifyStatusError turns a non-2xx response into an ApplicationError
// carrying the status and the remote message when one can be extracted.
func classifyStatusError(statusCode int, header http.Header, body []byte) error {
	code, message := extractRemoteError(header.Get("Content-Type"), body)
	if message == "" {
		message = summarizeBody(body)
	}

	text := fmt.Sprintf("remote request failed with status %d", statusCode)
	switch {
	case code != "" && message != "":
		text = fmt.Sprintf("%s (%s): %s", text, code, message)
	case message != "":
		text = fmt.Sprintf("%s: %s", text, message)
	}

	return faults.NewStatusError(faults.ApplicationError, statusCode, text)
}

func extractRemoteError(contentType string, body []byte) (string, string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", ""
	}

	if trimmed[0] == '<' || strings.Contains(strings.ToLower(contentType), "xml") {
		var payload xmlErrorBody
		if err := xml.Unmarshal(trimmed, &payload); err == nil {
			return strings.TrimSpace(payload.Code), strings.TrimSpace(payload.Message)
		}
		return "", ""
	}

	var payload map[string]any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return "", ""
	}

	code := firstString(payload, "code", "Code")
	message := firstString(payload, "message", "Message")
	switch nested := payload["error"].(type) {
	case string:
		if message == "" {
			message = nested
		}
	case map[string]any:
		if message == "" {
			message = firstString(nested, "message", "Message")
		}
		if code == "" {
			code = firstString(nested, "code", "Code")
		}
	}

	return code, message
}

func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch value := payload[key].(type) {
		case string:
			if strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		case float64:
			return fmt.Sprintf("%v", value)
		}
	}
	return ""
}

func summarizeBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	if len(trimmed) > 512 {
		return trimmed[:512] + "..."
	}
	return trimmed
}
