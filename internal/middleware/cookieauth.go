package middleware

// cookieauth.go bridges cookie-only clients onto bearer-token endpoints.
// Browsers hold the access token in an HttpOnly cookie and cannot attach
// an Authorization header themselves, so this middleware synthesizes one
// from the cookie before routing. An explicit Authorization header always
// wins; the cookie is only consulted when the header is absent.

import "github.com/labstack/echo/v4"

// AccessCookieName is the cookie carrying the access token.
const AccessCookieName = "access_token"

// AccessTokenFromCookie returns a middleware that copies the access_token
// cookie into the Authorization header when no header is present.
func AccessTokenFromCookie() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				if ck, err := c.Cookie(AccessCookieName); err == nil && ck.Value != "" {
					c.Request().Header.Set("Authorization", "Bearer "+ck.Value)
				}
			}
			return next(c)
		}
	}
}
