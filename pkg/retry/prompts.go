package retry

import (
	"fmt"
	"strings"

	"oneiro-hq/morpheus/pkg/providers"
	"oneiro-hq/morpheus/pkg/schema"
)

// Temperature and token tuning for corrective retries. Lower temperature
// trades creativity for structural discipline; a larger token budget avoids
// truncation-induced parse failures.
const (
	temperatureStep  = 0.2
	temperatureFloor = 0.2
	maxTokensGrowth  = 1.5
)

// maxReportedErrors bounds how many validation errors the corrective
// message enumerates.
const maxReportedErrors = 5

// CorrectiveMessage builds the follow-up message appended to a retried
// request. It names what was wrong with the previous response and restates
// the output contract.
func CorrectiveMessage(validationErrors []schema.ValidationError, schemaGuide string) providers.Message {
	var sb strings.Builder
	sb.WriteString("Your previous response did not satisfy the required structure.\n")

	if len(validationErrors) > 0 {
		sb.WriteString("Problems found:\n")
		for i, e := range validationErrors {
			if i == maxReportedErrors {
				fmt.Fprintf(&sb, "- and %d more\n", len(validationErrors)-maxReportedErrors)
				break
			}
			fmt.Fprintf(&sb, "- %s: %s\n", e.Field, e.Message)
		}
	}

	sb.WriteString("\nRespond with a single JSON object and nothing else. ")
	sb.WriteString(schemaGuide)
	return providers.Message{Role: providers.RoleUser, Content: sb.String()}
}

// TuneForRetry adjusts a request in place for a corrective retry: the
// temperature steps down toward the floor and the token budget grows,
// capped by the provider's output ceiling.
func TuneForRetry(req *providers.GenerationRequest, maxOutputTokens int) {
	req.Temperature -= temperatureStep
	if req.Temperature < temperatureFloor {
		req.Temperature = temperatureFloor
	}

	if req.MaxTokens > 0 {
		grown := int(float64(req.MaxTokens) * maxTokensGrowth)
		if maxOutputTokens > 0 && grown > maxOutputTokens {
			grown = maxOutputTokens
		}
		req.MaxTokens = grown
	}
}
