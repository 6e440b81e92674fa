package ports

import "time"

// Identity is the verified content of an identity assertion
type Identity struct {
	Issuer   string
	Audience string
	ID       string
	IssuedAt time.Time
}

// Tokenizer issues and verifies short-lived identity assertions exchanged
// between services
type Tokenizer interface {
	// Issue creates an assertion for the target audience
	Issue(audience string) (string, error)

	// Verify checks signature, issuer, audience and expiry
	Verify(token string) (*Identity, error)
}
