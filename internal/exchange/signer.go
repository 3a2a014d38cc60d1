package exchange

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is how long a request token stays valid upstream.
const tokenTTL = 2 * time.Minute

// Signer produces a bearer token for one upstream request.
type Signer interface {
	Token(method, host, path string) (string, error)
}

// CDPSigner signs short-lived JWTs with a Coinbase Developer Platform key.
type CDPSigner struct {
	keyName string
	key     crypto.PrivateKey
	method  jwt.SigningMethod
	now     func() time.Time
}

// NewCDPSigner parses the API secret. PEM encoded EC keys sign with ES256,
// PEM or base64 Ed25519 keys sign with EdDSA.
func NewCDPSigner(keyName, secret string) (*CDPSigner, error) {
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return nil, fmt.Errorf("empty API key name")
	}
	// .env files usually carry the PEM on one line with escaped newlines
	secret = strings.TrimSpace(strings.ReplaceAll(secret, `\n`, "\n"))
	if secret == "" {
		return nil, fmt.Errorf("empty API secret")
	}

	s := &CDPSigner{keyName: keyName, now: time.Now}

	if strings.HasPrefix(secret, "-----BEGIN") {
		if ec, err := jwt.ParseECPrivateKeyFromPEM([]byte(secret)); err == nil {
			s.key, s.method = ec, jwt.SigningMethodES256
			return s, nil
		}
		ed, err := jwt.ParseEdPrivateKeyFromPEM([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("parse API secret: unsupported PEM key")
		}
		s.key, s.method = ed, jwt.SigningMethodEdDSA
		return s, nil
	}

	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("parse API secret: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		s.key = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		s.key = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("parse API secret: unexpected Ed25519 key length %d", len(raw))
	}
	s.method = jwt.SigningMethodEdDSA
	return s, nil
}

// Algorithm reports the JWT alg header value.
func (s *CDPSigner) Algorithm() string {
	return s.method.Alg()
}

func (s *CDPSigner) Token(method, host, path string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": s.keyName,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"uri": fmt.Sprintf("%s %s%s", strings.ToUpper(method), host, path),
	}
	token := jwt.NewWithClaims(s.method, claims)
	token.Header["kid"] = s.keyName

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	token.Header["nonce"] = hex.EncodeToString(nonce)

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign request token: %w", err)
	}
	return signed, nil
}
