package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"oneiro-hq/morpheus/pkg/gateway"
	"oneiro-hq/morpheus/pkg/schema"
	"oneiro-hq/morpheus/pkg/taxonomy"
)

// parseDreamRequest is the POST /api/parse-dream body.
type parseDreamRequest struct {
	Text    string `json:"text"`
	Style   string `json:"style"`
	Quality string `json:"quality"`
	Options struct {
		Schema      string   `json:"schema"`
		Model       string   `json:"model"`
		Stream      bool     `json:"stream"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"maxTokens"`
	} `json:"options"`
}

// parseDreamResponse is the generation envelope. Data is set only on
// success; Error only on failure.
type parseDreamResponse struct {
	Success bool             `json:"success"`
	Data    *schema.Artifact `json:"data,omitempty"`
	Error   *apiError        `json:"error,omitempty"`
}

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// errorResponse is the JSON error envelope for the non-generation
// endpoints and the middleware chain.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError serializes the error envelope.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Type: errType, Message: message}})
}

// writeEnvelopeError serializes a failed generation envelope.
func writeEnvelopeError(w http.ResponseWriter, status int, kind taxonomy.Kind, message string) {
	writeJSON(w, status, parseDreamResponse{
		Success: false,
		Error:   &apiError{Kind: string(kind), Message: message},
	})
}

// handleParseDream serves POST /api/parse-dream.
//
// The gateway absorbs provider failures into the emergency fallback, so
// a 5xx here means even fallback synthesis failed. Fallback-served
// artifacts still return 200; callers read source and confidence from
// the artifact metadata.
func (s *Server) handleParseDream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeEnvelopeError(w, http.StatusMethodNotAllowed, taxonomy.KindClientError, "use POST")
		return
	}

	var body parseDreamRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, taxonomy.KindClientError,
			"request body is not valid JSON: "+err.Error())
		return
	}

	req := &gateway.Request{
		RequestID:   GetRequestID(r.Context()),
		Prompt:      body.Text,
		Style:       body.Style,
		Quality:     body.Quality,
		Schema:      body.Options.Schema,
		Model:       body.Options.Model,
		Stream:      body.Options.Stream,
		Temperature: body.Options.Temperature,
		MaxTokens:   body.Options.MaxTokens,
	}

	artifact, err := s.gateway.Generate(r.Context(), req)
	if err != nil {
		var reqErr *gateway.RequestError
		if errors.As(err, &reqErr) {
			writeEnvelopeError(w, http.StatusBadRequest, taxonomy.KindClientError, reqErr.Error())
			return
		}
		slog.Error("generation failed beyond fallback",
			"request_id", req.RequestID,
			"error", err,
		)
		writeEnvelopeError(w, http.StatusInternalServerError, taxonomy.Classify(err),
			"generation failed and no fallback could be synthesized")
		return
	}

	writeJSON(w, http.StatusOK, parseDreamResponse{Success: true, Data: artifact})
}
