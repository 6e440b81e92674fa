package tokenizer

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sevotec/voting-service/core"
	"github.com/sevotec/voting-service/ports"
)

// DefaultAssertionTTL is the lifetime of an issued identity assertion
const DefaultAssertionTTL = 20 * time.Second

// Config configures a JWTTokenizer
type Config struct {
	// Service is this service's name: the issuer of outbound assertions and
	// the required audience of inbound ones
	Service string
	// SignKey signs outbound assertions
	SignKey *rsa.PrivateKey
	// TrustedIssuer is the only issuer accepted on inbound assertions
	TrustedIssuer string
	// VerifyKey verifies inbound assertions
	VerifyKey *rsa.PublicKey
	// TTL of issued assertions, DefaultAssertionTTL when zero
	TTL time.Duration
}

// JWTTokenizer implements the Tokenizer interface using RS256 JWTs
type JWTTokenizer struct {
	cfg Config
	now func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(cfg Config) (*JWTTokenizer, error) {
	if cfg.Service == "" {
		return nil, errors.New("tokenizer service name is required")
	}
	if cfg.SignKey == nil || cfg.VerifyKey == nil {
		return nil, errors.New("tokenizer requires a sign key and a verify key")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultAssertionTTL
	}
	return &JWTTokenizer{cfg: cfg, now: time.Now}, nil
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// Issue creates an assertion for the target audience
func (j *JWTTokenizer) Issue(audience string) (string, error) {
	now := j.now()
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.cfg.Service,
			Audience:  jwt.ClaimStrings{audience},
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signedToken, err := token.SignedString(j.cfg.SignKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign identity token: %w", err)
	}

	return signedToken, nil
}

// Verify parses an inbound assertion and checks it was issued by the trusted
// issuer for this service
func (j *JWTTokenizer) Verify(tokenStr string) (*ports.Identity, error) {
	if tokenStr == "" {
		return nil, core.ErrInvalidIdentity
	}

	token, err := jwt.ParseWithClaims(tokenStr, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.cfg.VerifyKey, nil
	},
		jwt.WithIssuer(j.cfg.TrustedIssuer),
		jwt.WithAudience(j.cfg.Service),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidIdentity, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidIdentity
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", core.ErrInvalidIdentity)
	}

	identity := &ports.Identity{
		Issuer:   claims.Issuer,
		Audience: j.cfg.Service,
		ID:       claims.ID,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}
