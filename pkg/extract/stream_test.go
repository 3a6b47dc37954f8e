package extract

import (
	"context"
	"errors"
	"testing"

	"oneiro-hq/morpheus/pkg/providers"
)

func chunkChannel(chunks ...*providers.StreamChunk) <-chan *providers.StreamChunk {
	ch := make(chan *providers.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestAggregateStream_AssemblesDeltas(t *testing.T) {
	ch := chunkChannel(
		&providers.StreamChunk{Delta: `{"title":`},
		&providers.StreamChunk{Delta: `"Stream`},
		&providers.StreamChunk{Delta: `ed"}`, FinishReason: "stop"},
	)

	text, err := New().AggregateStream(context.Background(), "test", ch)
	if err != nil {
		t.Fatalf("AggregateStream returned error: %v", err)
	}
	if text != `{"title":"Streamed"}` {
		t.Errorf("Assembled = %q", text)
	}
}

func TestAggregateStream_PropagatesChunkError(t *testing.T) {
	streamErr := &providers.StreamError{Provider: "test", Message: "connection reset"}
	ch := chunkChannel(
		&providers.StreamChunk{Delta: `{"partial":`},
		&providers.StreamChunk{Error: streamErr},
	)

	_, err := New().AggregateStream(context.Background(), "test", ch)
	var got *providers.StreamError
	if !errors.As(err, &got) {
		t.Fatalf("Expected StreamError, got %T: %v", err, err)
	}
}

func TestAggregateStream_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unclosed channel: cancellation must unblock the aggregator.
	ch := make(chan *providers.StreamChunk)

	_, err := New().AggregateStream(ctx, "test", ch)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestAggregateStream_EmptyStream(t *testing.T) {
	text, err := New().AggregateStream(context.Background(), "test", chunkChannel())
	if err != nil {
		t.Fatalf("AggregateStream returned error: %v", err)
	}
	if text != "" {
		t.Errorf("Expected empty text, got %q", text)
	}
}

func TestAggregateStream_ThenExtract(t *testing.T) {
	ch := chunkChannel(
		&providers.StreamChunk{Delta: `{"id": "d1", `},
		&providers.StreamChunk{Delta: `"title": "From Stream"}`},
	)

	e := New()
	text, err := e.AggregateStream(context.Background(), "test", ch)
	if err != nil {
		t.Fatalf("AggregateStream returned error: %v", err)
	}

	ex, err := e.Extract("test", text)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if ex.Candidate["title"] != "From Stream" {
		t.Errorf("title = %v", ex.Candidate["title"])
	}
}
