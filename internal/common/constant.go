package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound calls.
const AccessTokenHeaderName = "access_token"

// SessionCookieName is the default name of the encrypted session cookie.
const SessionCookieName = "session"
