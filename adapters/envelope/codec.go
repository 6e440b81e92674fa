package envelope

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/sevotec/voting-service/core"
)

// Security headers carried on every inter-service call
const (
	HeaderAPIKey    = "x-api-key"
	HeaderIdentity  = "x-internal-token"
	HeaderEnvelope  = "x-security-envelope"
	HeaderEncrypted = "x-content-encrypted"
)

// SentinelBody is sent as the transport body. The real content only travels
// inside the envelope header.
var SentinelBody = []byte(`{"protected":true}`)

// Peer identifies a service on the other end of an envelope
type Peer struct {
	// Service is the name used as iss/aud
	Service string
	// EncryptionKey names the peer's public key used to encrypt envelopes for it
	EncryptionKey string
	// VerificationKey names the peer's public key used to verify its signatures
	VerificationKey string
}

// Envelope is a packed outbound payload
type Envelope struct {
	Headers map[string]string
	Body    []byte
}

// CodecConfig configures a Codec
type CodecConfig struct {
	// Service is this service's name
	Service string
	// SigningKey names the private key used to sign outbound payloads
	SigningKey string
	// DecryptionKey names the private key used to open inbound envelopes
	DecryptionKey string
	// Trusted lists the peers whose envelopes are accepted
	Trusted []Peer
}

// Codec signs-then-encrypts outbound payloads and decrypts-then-verifies
// inbound ones
type Codec struct {
	service       string
	vault         *KeyVault
	signingKey    *rsa.PrivateKey
	decryptionKey *rsa.PrivateKey
}

// NewCodec resolves all keys the codec needs. A missing key is a
// configuration error: no inbound request could ever be trusted without it.
func NewCodec(vault *KeyVault, cfg CodecConfig) (*Codec, error) {
	if cfg.Service == "" {
		return nil, errors.New("codec service name is required")
	}

	signingKey, err := vault.PrivateKey(cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	decryptionKey, err := vault.PrivateKey(cfg.DecryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decryption key: %w", err)
	}
	for _, peer := range cfg.Trusted {
		if _, err := vault.PublicKey(peer.VerificationKey); err != nil {
			return nil, fmt.Errorf("verification key for %s: %w", peer.Service, err)
		}
	}

	return &Codec{
		service:       cfg.Service,
		vault:         vault,
		signingKey:    signingKey,
		decryptionKey: decryptionKey,
	}, nil
}

// Service returns the name this codec signs as
func (c *Codec) Service() string {
	return c.service
}

// Pack serializes payload, signs it (PS256, iss/aud in the protected header)
// and encrypts the compact JWS for target (RSA-OAEP-256 + A256GCM).
func (c *Codec) Pack(target Peer, payload any) (*Envelope, error) {
	recipientKey, err := c.vault.PublicKey(target.EncryptionKey)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, core.Internal("failed to encode payload", err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.PS256, Key: c.signingKey},
		(&jose.SignerOptions{}).WithHeader("iss", c.service).WithHeader("aud", target.Service),
	)
	if err != nil {
		return nil, core.Internal("failed to create signer", err)
	}
	jws, err := signer.Sign(body)
	if err != nil {
		return nil, core.Internal("failed to sign payload", err)
	}
	signed, err := jws.CompactSerialize()
	if err != nil {
		return nil, core.Internal("failed to serialize signature", err)
	}

	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: recipientKey},
		nil,
	)
	if err != nil {
		return nil, core.Internal("failed to create encrypter", err)
	}
	jwe, err := encrypter.Encrypt([]byte(signed))
	if err != nil {
		return nil, core.Internal("failed to encrypt payload", err)
	}
	sealed, err := jwe.CompactSerialize()
	if err != nil {
		return nil, core.Internal("failed to serialize envelope", err)
	}

	return &Envelope{
		Headers: map[string]string{
			HeaderEnvelope:  sealed,
			HeaderEncrypted: "true",
			"Content-Type":  "application/json",
		},
		Body: SentinelBody,
	}, nil
}

// Unpack decrypts an envelope with this service's key and verifies the inner
// signature against from. Every failure other than a missing key yields
// core.ErrInvalidEnvelope.
func (c *Codec) Unpack(envelope string, from Peer) (json.RawMessage, error) {
	verifyKey, err := c.vault.PublicKey(from.VerificationKey)
	if err != nil {
		return nil, err
	}

	jwe, err := jose.ParseEncrypted(envelope,
		[]jose.KeyAlgorithm{jose.RSA_OAEP_256},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return nil, invalid("parse envelope", err)
	}
	plain, err := jwe.Decrypt(c.decryptionKey)
	if err != nil {
		return nil, invalid("decrypt envelope", err)
	}

	jws, err := jose.ParseSigned(string(plain), []jose.SignatureAlgorithm{jose.PS256})
	if err != nil {
		return nil, invalid("parse signature", err)
	}
	payload, err := jws.Verify(verifyKey)
	if err != nil {
		return nil, invalid("verify signature", err)
	}

	headers := jws.Signatures[0].Protected.ExtraHeaders
	if iss, _ := headers["iss"].(string); iss != from.Service {
		return nil, invalid("check issuer", fmt.Errorf("unexpected issuer %q", iss))
	}
	if aud, _ := headers["aud"].(string); aud != c.service {
		return nil, invalid("check audience", fmt.Errorf("unexpected audience %q", aud))
	}
	if !json.Valid(payload) {
		return nil, invalid("decode payload", errors.New("payload is not JSON"))
	}

	return json.RawMessage(payload), nil
}

func invalid(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrInvalidEnvelope, step, err)
}
