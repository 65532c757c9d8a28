package common

const (
	// AuthorizationHeaderName carries bearer tokens on inbound HTTP requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the token in the Authorization header.
	BearerPrefix = "Bearer "
)

// Share categories accepted for timeline placement.
const (
	CategoryHolding = "holding"
	CategoryBank    = "bank"
)
