package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "carnumbers"

// TokenClaims are the API token claims: sub is the chat user id, gid the
// guild the token is scoped to and adm whether the user may administer it.
type TokenClaims struct {
	GuildID int64 `json:"gid,string"`
	Admin   bool  `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a chat user id.
func (c *TokenClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("token subject is not a user id")
	}
	return id, nil
}

// TokenService mints and verifies HS256 API tokens for the chat layer.
type TokenService interface {
	Issue(userID, guildID int64, admin bool) (string, time.Time, error)
	Parse(token string) (*TokenClaims, error)
}

type tokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &tokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *tokenService) Issue(userID, guildID int64, admin bool) (string, time.Time, error) {
	if userID <= 0 || guildID <= 0 {
		return "", time.Time{}, errors.New("user id and guild id must be positive")
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := &TokenClaims{
		GuildID: guildID,
		Admin:   admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

func (s *tokenService) Parse(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
