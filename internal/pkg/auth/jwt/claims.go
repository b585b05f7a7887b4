package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of a relaychat access token.
type Payload struct {
	// StandardClaims carries exp, iat and iss; expiry is checked on parse.
	jwt.StandardClaims

	// Username is the chat identity the bearer is allowed to register as
	// and to read history for.
	Username string `json:"username"`
}
