package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/sevotec/voting-service/core"
)

// Logical key names
const (
	KeyVotingPrivate    = "VOTING_PRIVATE_KEY_BASE64"
	KeyVotingSigning    = "VOTING_SIGNING_KEY_BASE64"
	KeyGatewayPublic    = "GATEWAY_PUBLIC_KEY_BASE64"
	KeyBlockchainPublic = "BLOCKCHAIN_PUBLIC_KEY_BASE64"
	KeyCensusPublic     = "CENSUS_PUBLIC_KEY_BASE64"
)

// KeyVault holds parsed RSA keys by logical name. It is built once at startup
// and never modified afterwards.
type KeyVault struct {
	private map[string]*rsa.PrivateKey
	public  map[string]*rsa.PublicKey
}

// NewKeyVault parses base64-encoded PEM keys. Entries whose value is empty
// are skipped; a value that does not parse is an error.
func NewKeyVault(privateKeys, publicKeys map[string]string) (*KeyVault, error) {
	v := &KeyVault{
		private: make(map[string]*rsa.PrivateKey),
		public:  make(map[string]*rsa.PublicKey),
	}

	for name, encoded := range privateKeys {
		if encoded == "" {
			continue
		}
		key, err := ParsePrivateKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key %s: %w", name, err)
		}
		v.private[name] = key
		v.public[name] = &key.PublicKey
	}

	for name, encoded := range publicKeys {
		if encoded == "" {
			continue
		}
		key, err := ParsePublicKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key %s: %w", name, err)
		}
		v.public[name] = key
	}

	return v, nil
}

// PrivateKey looks up a private key
func (v *KeyVault) PrivateKey(name string) (*rsa.PrivateKey, error) {
	key, ok := v.private[name]
	if !ok {
		return nil, fmt.Errorf("private key %s: %w", name, core.ErrKeyNotFound)
	}
	return key, nil
}

// PublicKey looks up a public key. The public half of every private key is
// also available under the same name.
func (v *KeyVault) PublicKey(name string) (*rsa.PublicKey, error) {
	key, ok := v.public[name]
	if !ok {
		return nil, fmt.Errorf("public key %s: %w", name, core.ErrKeyNotFound)
	}
	return key, nil
}

// ParsePrivateKey decodes a base64 PEM private key in PKCS#8 or PKCS#1 form
func ParsePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	block, err := decodePEM(encoded)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an RSA private key")
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// ParsePublicKey decodes a base64 PEM public key in PKIX or PKCS#1 form
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	block, err := decodePEM(encoded)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("not an RSA public key")
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PublicKey(block.Bytes)
}

func decodePEM(encoded string) (*pem.Block, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return block, nil
}

// KeyPair is a base64-encoded PEM key pair, the format read from the environment
type KeyPair struct {
	Private string
	Public  string
}

// GenerateKeyPair creates a new RSA key pair encoded as base64 PEM
// (PKCS#8 private, PKIX public)
func GenerateKeyPair(bits int) (KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return KeyPair{}, err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyPair{}, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}

	return KeyPair{
		Private: base64.StdEncoding.EncodeToString(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
		Public:  base64.StdEncoding.EncodeToString(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
	}, nil
}
