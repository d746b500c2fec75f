/*
Package auth covers credential checks for the HTTP surface: bcrypt
password hashing, HS256 access tokens, and a token bucket limiter for
the query route.
*/
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/thothlabs/thoth/pkg/errors"
)

// DefaultTokenTTL matches the documented access token lifetime.
const DefaultTokenTTL = 60 * time.Minute

/*
Service signs and verifies access tokens for registered users. Tokens
are stateless HS256 JWTs carrying the username in the subject claim, so
there is nothing to revoke server-side before expiry.
*/
type Service struct {
	signingKey []byte
	ttl        time.Duration
}

type ServiceOption func(*Service)

func NewService(secret string, options ...ServiceOption) *Service {
	service := &Service{
		signingKey: []byte(secret),
		ttl:        DefaultTokenTTL,
	}

	for _, option := range options {
		option(service)
	}

	return service
}

func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// HashPassword produces a bcrypt hash suitable for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.ErrPersistence.WithMessagef("failed to hash password: %v", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a candidate password against a stored hash.
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errors.ErrInvalidRequest.WithMessagef("incorrect username or password")
	}
	return nil
}

/*
GenerateToken issues a signed access token for the given username. The
expiry is included in the token itself and echoed back so clients can
schedule a refresh.
*/
func (s *Service) GenerateToken(username string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": time.Now().Unix(),
		"exp": expiresAt.Unix(),
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, errors.ErrConfig.WithMessagef("failed to sign token: %v", err)
	}

	return signed, expiresAt, nil
}

/*
VerifyToken validates a token string and returns the username it was
issued to. Expired, malformed and foreign-key tokens all fail the same
way so callers cannot distinguish them.
*/
func (s *Service) VerifyToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, s.getSigningKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return "", errors.ErrInvalidRequest.WithMessagef("could not validate credentials")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.ErrInvalidRequest.WithMessagef("could not validate credentials")
	}

	return subject, nil
}

func (s *Service) getSigningKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.ErrInvalidRequest.WithMessagef(
			"unexpected signing method: %v", token.Header["alg"],
		)
	}
	return s.signingKey, nil
}
