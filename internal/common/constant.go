package common

const (
	// AuthorizationHeaderName carries the bearer access token on API requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "
)

// Roles a profile can carry. Only RoleAdmin may manage content.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
