package tokenizer

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims are the claims of an inter-service identity assertion
type IdentityClaims struct {
	jwt.RegisteredClaims
}
