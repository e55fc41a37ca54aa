package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"carnumbers/internal/common"
	"carnumbers/internal/services"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// AuthConfig selects how bearer tokens are verified: a shared HS256
// secret, or a JWKS key function when KeyFunc is set.
type AuthConfig struct {
	Secret  string
	KeyFunc jwt.Keyfunc
}

// NewJWKSKeyfunc fetches the key set at url and refreshes it in the
// background. Call EndBackground on the returned JWKS at shutdown.
func NewJWKSKeyfunc(url string) (*keyfunc.JWKS, error) {
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load jwks from %s: %w", url, err)
	}
	return jwks, nil
}

// JWTMiddleware validates the bearer token and stores the caller (user,
// guild, admin flag) on the request context.
func JWTMiddleware(cfg AuthConfig) (echo.MiddlewareFunc, error) {
	if cfg.Secret == "" && cfg.KeyFunc == nil {
		return nil, errors.New("jwt middleware needs a secret or a key function")
	}

	jwtCfg := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(services.TokenClaims)
		},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*services.TokenClaims)
			if !ok {
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				return
			}
			ctx := common.WithCaller(c.Request().Context(), userID, claims.GuildID, claims.Admin)
			c.SetRequest(c.Request().WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, common.CreateErrorResponse("UNAUTHORIZED", "Invalid or missing token", nil))
		},
	}
	if cfg.KeyFunc != nil {
		jwtCfg.KeyFunc = cfg.KeyFunc
	} else {
		jwtCfg.SigningKey = []byte(cfg.Secret)
		jwtCfg.SigningMethod = echojwt.AlgorithmHS256
	}

	mw, err := jwtCfg.ToMiddleware()
	if err != nil {
		return nil, err
	}
	return mw, nil
}
