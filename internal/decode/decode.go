package decode

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"strings"
)

// Decoder turns a raw response body into a structured value
type Decoder func(data []byte) (any, error)

// Error wraps a failure to decode a response body
type Error struct {
	ContentType string
	Err         error
}

func (e *Error) Error() string {
	if e.ContentType == "" {
		return fmt.Sprintf("decode response: %v", e.Err)
	}
	return fmt.Sprintf("decode %s response: %v", e.ContentType, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MediaType strips parameters from a Content-Type header value
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt
}

// Dispatch decodes data with the explicit decoder when given, otherwise by
// media type. Empty bodies decode to an empty object and unknown media types
// pass the raw text through.
func Dispatch(data []byte, contentType string, explicit Decoder) (any, error) {
	if explicit != nil {
		v, err := explicit(data)
		if err != nil {
			return nil, &Error{ContentType: MediaType(contentType), Err: err}
		}
		return v, nil
	}

	if len(data) == 0 {
		return map[string]any{}, nil
	}

	mt := MediaType(contentType)
	var (
		v   any
		err error
	)
	switch {
	case mt == "application/json" || strings.HasSuffix(mt, "+json"):
		v, err = JSON(data)
	case mt == "text/xml" || mt == "application/xml":
		v, err = XML(data)
	case mt == "text/html":
		v, err = HTMLHeading(data)
	case mt == "text/plain":
		v, err = Text(data)
	default:
		return string(data), nil
	}
	if err != nil {
		return nil, &Error{ContentType: mt, Err: err}
	}
	return v, nil
}

// JSON decodes a JSON document
func JSON(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Text wraps a plain text body as {"result": text}
func Text(data []byte) (any, error) {
	return map[string]any{"result": string(data)}, nil
}

// Raw returns the body as a string without interpretation
func Raw(data []byte) (any, error) {
	return string(data), nil
}

// NetLog decodes a Chrome net log, closing the trailing array when the
// capture was cut off after a ",\r\n"
func NetLog(data []byte) (any, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if bytes.HasSuffix(data, []byte(",\r\n")) {
		fixed := make([]byte, 0, len(data))
		fixed = append(fixed, data[:len(data)-3]...)
		data = append(fixed, ']', '}')
	}
	return JSON(data)
}

// DataURI encodes a binary body as a base64 string
func DataURI(data []byte) (any, error) {
	return base64.StdEncoding.EncodeToString(data), nil
}
