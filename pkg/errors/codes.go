package errors

import "net/http"

// Code is the stable, machine-readable error identifier returned to clients.
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeInvalidSignature Code = "INVALID_SIGNATURE"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeDemoExhausted    Code = "DEMO_EXHAUSTED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeIdempotency      Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit        Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeDependency       Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// DetailsAllowed gates whether Error.Details reaches the response body.
	DetailsAllowed bool
}

const (
	retryable     = true
	withDetails   = true
	noRetry       = false
	hiddenDetails = false
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:       {http.StatusBadRequest, noRetry, "validation failed", withDetails},
	CodeInvalidSignature: {http.StatusBadRequest, noRetry, "invalid signature", hiddenDetails},
	CodeUnauthorized:     {http.StatusUnauthorized, noRetry, "authentication required", hiddenDetails},
	CodeForbidden:        {http.StatusForbidden, noRetry, "access denied", hiddenDetails},
	CodeDemoExhausted:    {http.StatusForbidden, noRetry, "demo already used", withDetails},
	CodeNotFound:         {http.StatusNotFound, noRetry, "resource not found", hiddenDetails},
	CodeConflict:         {http.StatusConflict, retryable, "conflict detected", hiddenDetails},
	CodeIdempotency:      {http.StatusConflict, noRetry, "idempotency key reused", withDetails},
	CodeRateLimit:        {http.StatusTooManyRequests, noRetry, "rate limit exceeded", hiddenDetails},
	CodeInternal:         {http.StatusInternalServerError, retryable, "internal server error", hiddenDetails},
	CodeDependency:       {http.StatusServiceUnavailable, retryable, "dependency unavailable", withDetails},
}

// MetadataFor returns the rendering rules for code. Unknown codes render as
// CodeInternal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// HTTPStatus is shorthand for MetadataFor(code).HTTPStatus.
func (c Code) HTTPStatus() int { return MetadataFor(c).HTTPStatus }
