package extract

import (
	"context"
	"strings"

	"oneiro-hq/morpheus/pkg/providers"
)

// AggregateStream drains a streaming response into the complete text the
// chunks assemble. A mid-stream error chunk aborts aggregation and is
// returned as-is; context cancellation aborts with the context error.
func (e *Extractor) AggregateStream(ctx context.Context, provider string, chunks <-chan *providers.StreamChunk) (string, error) {
	var sb strings.Builder
	count := 0

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				e.logger.Debug("stream aggregated",
					"provider", provider,
					"chunks", count,
					"bytes", sb.Len(),
				)
				return sb.String(), nil
			}
			if chunk.Error != nil {
				return "", chunk.Error
			}
			sb.WriteString(chunk.Delta)
			count++
		}
	}
}
