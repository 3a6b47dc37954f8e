package taxonomy

// Kind identifies a class of failure. Kinds are stable strings: they appear
// in metrics labels, alert records, and API error responses.
type Kind string

// The closed set of error kinds.
const (
	KindProviderUnavailable Kind = "provider_unavailable"
	KindRateLimitExceeded   Kind = "rate_limit_exceeded"
	KindInvalidResponse     Kind = "invalid_response"
	KindValidationFailed    Kind = "validation_failed"
	KindTimeout             Kind = "timeout"
	KindAuthentication      Kind = "authentication"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindNetworkError        Kind = "network_error"
	KindServerError         Kind = "server_error"
	KindClientError         Kind = "client_error"
	KindParsingError        Kind = "parsing_error"
	KindConfigurationError  Kind = "configuration_error"
	KindResourceExhausted   Kind = "resource_exhausted"
	KindServiceDegraded     Kind = "service_degraded"
	KindCircuitBreakerOpen  Kind = "circuit_breaker_open"
	KindFallbackFailed      Kind = "fallback_failed"
	KindStreamingError      Kind = "streaming_error"
	KindTokenLimitExceeded  Kind = "token_limit_exceeded"
	KindModelUnavailable    Kind = "model_unavailable"
	KindContentFilter       Kind = "content_filter"
	KindAsyncExtraction     Kind = "async_extraction_error"
	KindUnknown             Kind = "unknown"
)

// Severity ranks how serious an error kind is for alerting and surfacing.
type Severity string

// Severity levels, lowest to highest.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank maps severities to a comparable order.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Category groups error kinds by the nature of the underlying cause.
type Category string

// Categories.
const (
	CategoryTransient     Category = "transient"
	CategoryPermanent     Category = "permanent"
	CategoryConfiguration Category = "configuration"
	CategoryCapacity      Category = "capacity"
	CategoryExternal      Category = "external"
)

// traits holds the fixed attributes of an error kind.
type traits struct {
	severity  Severity
	category  Category
	retryable bool
}

// kindTraits fixes severity, category, and retryability per kind.
// Classification is deterministic: a kind always carries the same traits.
var kindTraits = map[Kind]traits{
	KindProviderUnavailable: {SeverityHigh, CategoryTransient, true},
	KindRateLimitExceeded:   {SeverityMedium, CategoryCapacity, true},
	KindInvalidResponse:     {SeverityMedium, CategoryExternal, true},
	KindValidationFailed:    {SeverityMedium, CategoryExternal, true},
	KindTimeout:             {SeverityMedium, CategoryTransient, true},
	KindAuthentication:      {SeverityCritical, CategoryConfiguration, false},
	KindQuotaExceeded:       {SeverityHigh, CategoryCapacity, false},
	KindNetworkError:        {SeverityMedium, CategoryTransient, true},
	KindServerError:         {SeverityMedium, CategoryTransient, true},
	KindClientError:         {SeverityMedium, CategoryPermanent, false},
	KindParsingError:        {SeverityMedium, CategoryExternal, true},
	KindConfigurationError:  {SeverityCritical, CategoryConfiguration, false},
	KindResourceExhausted:   {SeverityHigh, CategoryCapacity, true},
	KindServiceDegraded:     {SeverityMedium, CategoryTransient, true},
	KindCircuitBreakerOpen:  {SeverityMedium, CategoryTransient, false},
	KindFallbackFailed:      {SeverityCritical, CategoryPermanent, false},
	KindStreamingError:      {SeverityMedium, CategoryTransient, true},
	KindTokenLimitExceeded:  {SeverityMedium, CategoryPermanent, false},
	KindModelUnavailable:    {SeverityHigh, CategoryConfiguration, false},
	KindContentFilter:       {SeverityMedium, CategoryPermanent, false},
	KindAsyncExtraction:     {SeverityHigh, CategoryExternal, true},
	KindUnknown:             {SeverityMedium, CategoryTransient, true},
}

// Severity returns the fixed severity for the kind.
// Unknown kinds report medium severity.
func (k Kind) Severity() Severity {
	if t, ok := kindTraits[k]; ok {
		return t.severity
	}
	return SeverityMedium
}

// Category returns the fixed category for the kind.
func (k Kind) Category() Category {
	if t, ok := kindTraits[k]; ok {
		return t.category
	}
	return CategoryTransient
}

// Retryable reports whether same-provider retry may recover the kind.
func (k Kind) Retryable() bool {
	if t, ok := kindTraits[k]; ok {
		return t.retryable
	}
	return true
}

// Valid reports whether k is a member of the taxonomy.
func (k Kind) Valid() bool {
	_, ok := kindTraits[k]
	return ok
}

// Kinds returns all kinds in the taxonomy. The order is not guaranteed.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindTraits))
	for k := range kindTraits {
		out = append(out, k)
	}
	return out
}
