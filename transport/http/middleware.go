package http

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sevotec/voting-service/adapters/envelope"
	"github.com/sevotec/voting-service/core"
	"github.com/sevotec/voting-service/ports"
)

const (
	identityKey = "identity"

	// maxDiscardedBody bounds how much of the unread transport body is drained
	maxDiscardedBody = 64 << 10
)

// GateConfig holds what the security gate needs to trust a caller
type GateConfig struct {
	// APIKey is the shared internal API key
	APIKey string
	// Tokenizer verifies identity assertions
	Tokenizer ports.Tokenizer
	// Codec opens inbound envelopes
	Codec *envelope.Codec
	// Sender is the only peer whose envelopes are accepted
	Sender envelope.Peer
}

// SecurityGate returns the middleware chain guarding business routes: API
// key, then identity assertion, then envelope unwrapping
func SecurityGate(cfg GateConfig) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		APIKeyMiddleware(cfg.APIKey),
		IdentityMiddleware(cfg.Tokenizer),
		EnvelopeMiddleware(cfg.Codec, cfg.Sender),
	}
}

// APIKeyMiddleware rejects requests without the shared API key
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	want := sha256.Sum256([]byte(apiKey))

	return func(c *gin.Context) {
		got := sha256.Sum256([]byte(c.GetHeader(envelope.HeaderAPIKey)))
		if apiKey == "" || subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			abortWithError(c, core.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}

// IdentityMiddleware verifies the caller's identity assertion
func IdentityMiddleware(tokenizer ports.Tokenizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := tokenizer.Verify(c.GetHeader(envelope.HeaderIdentity))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// EnvelopeMiddleware replaces the request body with the verified envelope
// payload. The original body is discarded unread.
func EnvelopeMiddleware(codec *envelope.Codec, sender envelope.Peer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			_, _ = io.Copy(io.Discard, http.MaxBytesReader(c.Writer, c.Request.Body, maxDiscardedBody))
			_ = c.Request.Body.Close()
		}
		c.Request.Body = http.NoBody

		sealed := c.GetHeader(envelope.HeaderEnvelope)
		if sealed == "" {
			abortWithError(c, core.ErrMissingEnvelope)
			return
		}

		payload, err := codec.Unpack(sealed, sender)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(payload))
		c.Request.ContentLength = int64(len(payload))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if v, ok := c.Get(identityKey); ok {
			identity := v.(*ports.Identity)
			attrs = append(attrs, "caller", identity.Issuer, "assertion_id", identity.ID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", attrs...)
		case c.Writer.Status() >= 400:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}
