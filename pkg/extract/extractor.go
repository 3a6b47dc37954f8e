// Package extract normalizes raw provider output into a candidate object for
// schema validation.
//
// Providers return structured content in inconsistent shapes: clean JSON,
// JSON wrapped in API envelopes, JSON embedded in prose, doubly-encoded JSON
// strings, or SSE streams. The extractor handles all of them and refuses
// values that look like unresolved deferred results rather than data.
package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// wrapperPaths are the known provider envelope paths tried, in order, when
// an object arrives where content was expected.
var wrapperPaths = []string{
	"choices[0].message.content",
	"content",
	"data.content",
	"output",
}

// Extraction is a successfully extracted candidate plus salvage notes.
type Extraction struct {
	// Candidate is the parsed object, ready for validation.
	Candidate map[string]any

	// Notes records salvage steps taken ("prose_salvage",
	// "wrapper_descent:<path>", "unquoted_json"). Each note applies an
	// extraction penalty to the artifact's confidence.
	Notes []string
}

// Error is an extraction failure with its taxonomy kind and the location
// context recorded for the promise-detection metric.
type Error struct {
	// Provider is the provider whose output failed extraction.
	Provider string

	// Kind is the taxonomy kind (async_extraction_error, parsing_error,
	// invalid_response).
	Kind taxonomy.Kind

	// Location describes where in the payload the failure was found.
	Location string

	// Message describes the failure.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("provider %q extraction failed at %s: %s",
		e.Provider, e.Location, e.Message)
}

// ErrorKind implements taxonomy.Kinder.
func (e *Error) ErrorKind() taxonomy.Kind {
	return e.Kind
}

// PromiseDetectedFunc observes deferred-value detections for metrics.
type PromiseDetectedFunc func(provider, location string)

// Extractor turns raw provider output into candidates.
type Extractor struct {
	logger *slog.Logger

	// onPromiseDetected is invoked when a deferred value is refused.
	onPromiseDetected PromiseDetectedFunc
}

// New creates an extractor.
func New() *Extractor {
	return &Extractor{
		logger: slog.Default().With("component", "extract"),
	}
}

// OnPromiseDetected registers the promise-detection metric hook.
func (e *Extractor) OnPromiseDetected(fn PromiseDetectedFunc) {
	e.onPromiseDetected = fn
}

// Extract normalizes raw provider output into a candidate object.
//
// Accepted shapes, in order of handling:
//   - deferred values (channels, funcs, promise-shaped maps): refused with
//     async_extraction_error — an unresolved producer must never be
//     serialized as content
//   - []byte / string: parsed as JSON, unquoting doubly-encoded documents
//     and salvaging JSON embedded in prose
//   - map: wrapper descent through known envelope paths, then treated as
//     the candidate itself
//
// Anything else is invalid_response.
func (e *Extractor) Extract(provider string, raw any) (*Extraction, error) {
	if raw == nil {
		return nil, &Error{
			Provider: provider,
			Kind:     taxonomy.KindInvalidResponse,
			Location: "root",
			Message:  "payload is nil",
		}
	}

	if loc, deferred := deferredLocation(raw); deferred {
		e.recordPromise(provider, loc)
		return nil, &Error{
			Provider: provider,
			Kind:     taxonomy.KindAsyncExtraction,
			Location: loc,
			Message:  "payload is an unresolved deferred value, not data",
		}
	}

	switch v := raw.(type) {
	case []byte:
		return e.extractText(provider, string(v), nil)
	case string:
		return e.extractText(provider, v, nil)
	case json.RawMessage:
		return e.extractText(provider, string(v), nil)
	case map[string]any:
		return e.extractObject(provider, v, nil)
	default:
		return nil, &Error{
			Provider: provider,
			Kind:     taxonomy.KindInvalidResponse,
			Location: "root",
			Message:  fmt.Sprintf("unsupported payload type %T", raw),
		}
	}
}

// extractText parses a textual payload into a candidate.
func (e *Extractor) extractText(provider, text string, notes []string) (*Extraction, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &Error{
			Provider: provider,
			Kind:     taxonomy.KindInvalidResponse,
			Location: "root",
			Message:  "payload is empty",
		}
	}

	// Doubly-encoded document: a JSON string whose contents are JSON.
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			innerTrimmed := strings.TrimSpace(inner)
			if strings.HasPrefix(innerTrimmed, "{") {
				return e.extractText(provider, inner, append(notes, "unquoted_json"))
			}
		}
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		if obj, ok := decoded.(map[string]any); ok {
			return e.extractObject(provider, obj, notes)
		}
		return nil, &Error{
			Provider: provider,
			Kind:     taxonomy.KindInvalidResponse,
			Location: "root",
			Message:  fmt.Sprintf("payload decodes to %T, expected object", decoded),
		}
	}

	// The payload is prose; salvage the outermost balanced JSON document.
	salvaged, ok := salvageJSON(trimmed)
	if !ok {
		return nil, &Error{
			Provider: provider,
			Kind:     taxonomy.KindParsingError,
			Location: "root",
			Message:  "no JSON document found in payload",
		}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(salvaged), &obj); err != nil {
		return nil, &Error{
			Provider: provider,
			Kind:     taxonomy.KindParsingError,
			Location: "salvage",
			Message:  fmt.Sprintf("salvaged document does not parse: %v", err),
		}
	}

	e.logger.Debug("salvaged JSON from prose",
		"provider", provider,
		"salvaged_bytes", len(salvaged),
	)
	return e.extractObject(provider, obj, append(notes, "prose_salvage"))
}

// extractObject descends through known wrapper paths, then treats the object
// as the candidate.
func (e *Extractor) extractObject(provider string, obj map[string]any, notes []string) (*Extraction, error) {
	if loc, deferred := deferredLocation(obj); deferred {
		e.recordPromise(provider, loc)
		return nil, &Error{
			Provider: provider,
			Kind:     taxonomy.KindAsyncExtraction,
			Location: loc,
			Message:  "object carries an unresolved deferred shape",
		}
	}

	for _, path := range wrapperPaths {
		inner, ok := lookupPath(obj, path)
		if !ok || inner == nil {
			continue
		}

		note := "wrapper_descent:" + path
		switch v := inner.(type) {
		case string:
			return e.extractText(provider, v, append(notes, note))
		case map[string]any:
			return e.extractObject(provider, v, append(notes, note))
		}
	}

	// No wrapper matched: the object itself is the candidate.
	return &Extraction{Candidate: obj, Notes: notes}, nil
}

// recordPromise logs and counts a refused deferred value.
func (e *Extractor) recordPromise(provider, location string) {
	e.logger.Warn("refusing to serialize deferred value",
		"provider", provider,
		"location", location,
	)
	if e.onPromiseDetected != nil {
		e.onPromiseDetected(provider, location)
	}
}

// deferredLocation reports whether a value looks like an unresolved deferred
// result and where the evidence is.
//
// Two surfaces are checked: Go-level deferred carriers (channels, funcs,
// and values exposing a Then method, the shape wrapped-SDK futures take),
// and promise-shaped JSON objects (a "then" member next to "catch"/"finally",
// or an explicit pending-state marker).
func deferredLocation(raw any) (string, bool) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Chan:
		return "root(chan)", true
	case reflect.Func:
		return "root(func)", true
	}
	if rv.IsValid() {
		if m := rv.MethodByName("Then"); m.IsValid() {
			return "root(.then)", true
		}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}

	if _, hasThen := obj["then"]; hasThen {
		if _, hasCatch := obj["catch"]; hasCatch {
			return "root{then,catch}", true
		}
		if _, hasFinally := obj["finally"]; hasFinally {
			return "root{then,finally}", true
		}
	}
	if state, ok := obj["state"].(string); ok && state == "pending" {
		if _, hasValue := obj["value"]; hasValue || len(obj) <= 2 {
			return "root{state:pending}", true
		}
	}
	if pending, ok := obj["__pending__"].(bool); ok && pending {
		return "root{__pending__}", true
	}

	return "", false
}

// lookupPath resolves a dotted wrapper path with optional [n] indices.
func lookupPath(obj map[string]any, path string) (any, bool) {
	var current any = obj

	for _, part := range strings.Split(path, ".") {
		key := part
		index := -1
		if open := strings.IndexByte(part, '['); open >= 0 && strings.HasSuffix(part, "]") {
			key = part[:open]
			n, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil {
				return nil, false
			}
			index = n
		}

		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}

		if index >= 0 {
			arr, ok := current.([]any)
			if !ok || index >= len(arr) {
				return nil, false
			}
			current = arr[index]
		}
	}

	return current, true
}

// salvageJSON locates the outermost balanced {…} document in prose.
// String contents are skipped so braces inside values do not confuse the
// balance count.
func salvageJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
