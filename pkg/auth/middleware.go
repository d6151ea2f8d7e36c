package auth

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	binderr "github.com/lmfdb/lmfdb/pkg/api/errors"
)

const contextKey = "lmfdb/editor"

// Middleware rejects requests without a valid editor token in Authorization header.
//
// Claims of the token can be get by Editor.
func (s *Signer) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return binderr.Unauthorized("editor token is required", errors.New("no bearer token"))
			}
			claims, err := s.Verify(strings.TrimSpace(token))
			if err != nil {
				return binderr.Unauthorized("editor token is not valid", err)
			}
			c.Set(contextKey, claims)
			return next(c)
		}
	}
}

// Editor returns claims verified by Middleware.
func Editor(c echo.Context) (*EditorClaims, bool) {
	claims, ok := c.Get(contextKey).(*EditorClaims)
	return claims, ok
}

// WithEditor sets claims into the context, as Middleware does.
func WithEditor(c echo.Context, claims *EditorClaims) echo.Context {
	c.Set(contextKey, claims)
	return c
}
