// Package render turns a raw render request into a response. It knows
// nothing about the HTTP server hosting it: callers pass the method and the
// body and write back whatever Response they get.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"md2html/internal/domain"
)

// Converter renders Markdown to HTML. Equal input must give equal output.
type Converter interface {
	Render(markdown string) (string, error)
}

// Options tunes the handler for its hosting environment.
type Options struct {
	// AllowGetNoop answers GET with 200 and an empty JSON object, for hosts
	// that probe the endpoint before routing traffic to it.
	AllowGetNoop bool
}

// Response is the status and body to write back.
type Response struct {
	Status int
	Body   []byte
}

// Result is the success payload.
type Result struct {
	Result string `json:"result"`
}

// Outcome classifies a handled request.
type Outcome string

const (
	OutcomeRendered Outcome = "rendered"
	OutcomeNoop     Outcome = "noop"
	OutcomeRejected Outcome = "rejected"
	OutcomeFault    Outcome = "fault"
)

var noopBody = []byte("{}")

// Handler holds no per-request state and is safe for concurrent use.
type Handler struct {
	conv Converter
	opts Options
}

func NewHandler(conv Converter, opts Options) *Handler {
	return &Handler{conv: conv, opts: opts}
}

// Handle processes one request.
//
// Wrong method or an empty body yields a 400 with an empty body. A body that
// is not a JSON object, or a converter failure, is returned as an error:
// it is a fault for the host to report, not a client error response.
// A missing or non-string "data" field renders as the empty string.
func (h *Handler) Handle(method string, body []byte) (Response, error) {
	if method == http.MethodGet && h.opts.AllowGetNoop {
		return Response{Status: http.StatusOK, Body: noopBody}, nil
	}
	if method != http.MethodPost || len(body) == 0 {
		return Response{Status: http.StatusBadRequest}, nil
	}

	markdown, err := extractData(body)
	if err != nil {
		return Response{}, err
	}

	html, err := h.conv.Render(markdown)
	if err != nil {
		return Response{}, fmt.Errorf("render markdown: %w", err)
	}

	out, err := encodeResult(html)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusOK, Body: out}, nil
}

// Classify maps a Handle result to its Outcome.
func Classify(resp Response, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeFault
	case resp.Status == http.StatusBadRequest:
		return OutcomeRejected
	case bytes.Equal(resp.Body, noopBody):
		return OutcomeNoop
	default:
		return OutcomeRendered
	}
}

func extractData(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: invalid JSON", domain.ErrMalformedJSON)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return "", fmt.Errorf("%w: expected a JSON object", domain.ErrMalformedJSON)
	}

	data := doc.Get("data")
	if data.Type != gjson.String {
		return "", nil
	}
	return data.String(), nil
}

func encodeResult(html string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Result{Result: html}); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
