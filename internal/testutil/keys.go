// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"sync"
	"testing"

	"github.com/sevotec/voting-service/adapters/envelope"
	"github.com/stretchr/testify/require"
)

// Keys is a set of RSA key pairs for every service in the voting platform
type Keys struct {
	Gateway    envelope.KeyPair
	Voting     envelope.KeyPair
	Blockchain envelope.KeyPair
	Census     envelope.KeyPair
	Intruder   envelope.KeyPair
}

var (
	keysOnce sync.Once
	keys     Keys
	keysErr  error
)

// TestKeys returns key pairs generated once per test binary
func TestKeys(t testing.TB) Keys {
	t.Helper()

	keysOnce.Do(func() {
		for _, kp := range []*envelope.KeyPair{&keys.Gateway, &keys.Voting, &keys.Blockchain, &keys.Census, &keys.Intruder} {
			*kp, keysErr = envelope.GenerateKeyPair(2048)
			if keysErr != nil {
				return
			}
		}
	})
	require.NoError(t, keysErr)
	return keys
}

// Names used for keys in test vaults
const (
	GatewayKey    = "gateway"
	VotingKey     = "voting"
	BlockchainKey = "blockchain"
	CensusKey     = "census"
	IntruderKey   = "intruder"
)

// Vault returns a vault holding the private half of every test key pair, so
// that any service can be impersonated in tests
func Vault(t testing.TB) *envelope.KeyVault {
	t.Helper()

	k := TestKeys(t)
	vault, err := envelope.NewKeyVault(map[string]string{
		GatewayKey:    k.Gateway.Private,
		VotingKey:     k.Voting.Private,
		BlockchainKey: k.Blockchain.Private,
		CensusKey:     k.Census.Private,
		IntruderKey:   k.Intruder.Private,
	}, nil)
	require.NoError(t, err)
	return vault
}

// Service names used in tests
const (
	GatewayService    = "sevotec-gateway"
	VotingService     = "voting-service"
	BlockchainService = "blockchain-service"
	CensusService     = "census-service"
)

// Peer returns the envelope peer for a service using the test key of the same role
func Peer(service, key string) envelope.Peer {
	return envelope.Peer{Service: service, EncryptionKey: key, VerificationKey: key}
}

// Codec returns a codec acting as service with the given key
func Codec(t testing.TB, vault *envelope.KeyVault, service, key string, trusted ...envelope.Peer) *envelope.Codec {
	t.Helper()

	codec, err := envelope.NewCodec(vault, envelope.CodecConfig{
		Service:       service,
		SigningKey:    key,
		DecryptionKey: key,
		Trusted:       trusted,
	})
	require.NoError(t, err)
	return codec
}
