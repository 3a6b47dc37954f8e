// Package retry decides what happens after a failed generation attempt.
//
// Every error kind maps to a fixed policy: retry on the same provider with
// exponential backoff, repair the response and retry, move to the next
// provider immediately, or give up. Policies are deterministic per kind;
// only the jittered delay varies between runs.
//
// The package also prepares follow-up requests: a corrective message
// describing what was wrong with the previous response, a lowered
// temperature, and a raised token budget.
package retry
