package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Signing algorithms accepted by the verifier.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmRS256 = "RS256"
)

var (
	// ErrInvalidToken marks a token that failed parsing, signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")
)

// VerifierConfig holds configuration for JWT verification.
type VerifierConfig struct {
	// RS256
	PublicKeyPEM string

	// HS256
	SecretKey string

	Algorithm string
}

// Verifier checks token signatures and extracts claims.
type Verifier struct {
	config    VerifierConfig
	publicKey *rsa.PublicKey
}

// NewVerifier creates a verifier for the configured algorithm.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	v := &Verifier{config: config}

	switch config.Algorithm {
	case AlgorithmRS256:
		if config.PublicKeyPEM == "" {
			return nil, fmt.Errorf("RS256 requires a public key")
		}
		key, err := parsePublicKeyPEM(config.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load public key from PEM: %w", err)
		}
		v.publicKey = key
	case AlgorithmHS256:
		if config.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires secret key")
		}
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", config.Algorithm)
	}

	return v, nil
}

// VerifyToken verifies a JWT and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.key,
		jwt.WithValidMethods([]string{v.config.Algorithm}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return extractClaims(claims)
}

func (v *Verifier) key(token *jwt.Token) (interface{}, error) {
	if v.config.Algorithm == AlgorithmRS256 {
		return v.publicKey, nil
	}
	return []byte(v.config.SecretKey), nil
}

func extractClaims(claims jwt.MapClaims) (*Claims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing or invalid 'sub' claim", ErrInvalidToken)
	}

	roles, err := stringSlice(claims, "roles")
	if err != nil {
		return nil, err
	}
	scopes, err := stringSlice(claims, "scopes")
	if err != nil {
		return nil, err
	}

	if !allKnown(roles, RoleViewer, RoleController) {
		return nil, fmt.Errorf("%w: invalid roles: %v", ErrInvalidToken, roles)
	}
	if !allKnown(scopes, ScopeRead, ScopeControl) {
		return nil, fmt.Errorf("%w: invalid scopes: %v", ErrInvalidToken, scopes)
	}

	return &Claims{Subject: sub, Roles: roles, Scopes: scopes}, nil
}

func stringSlice(claims jwt.MapClaims, key string) ([]string, error) {
	value, ok := claims[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing claim: %s", ErrInvalidToken, key)
	}

	switch val := value.(type) {
	case []string:
		return val, nil
	case []interface{}:
		result := make([]string, len(val))
		for i, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: invalid %s claim: not a string", ErrInvalidToken, key)
			}
			result[i] = str
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: invalid %s claim: not a string array", ErrInvalidToken, key)
	}
}

// allKnown reports whether values is non-empty and every value is in known.
func allKnown(values []string, known ...string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		found := false
		for _, k := range known {
			if v == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func parsePublicKeyPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return rsaPub, nil
}
