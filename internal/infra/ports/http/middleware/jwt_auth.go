package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/GoldLink/internal/infra/appctx"
	"github.com/qrave1/GoldLink/internal/usecase"
)

const CookieName = "jwt"

// TokenFromRequest достаёт токен из cookie, заголовка Authorization или query параметра token.
// Браузер не умеет ставить заголовки на WebSocket, поэтому query тоже принимается.
func TokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "); ok {
		return token
	}

	return c.QueryParam("token")
}

func JWTAuthMiddleware(identityUsecase usecase.IdentityUsecase) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := TokenFromRequest(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing or malformed jwt"})
			}

			p, err := identityUsecase.VerifyToken(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired jwt"})
			}

			c.SetRequest(
				c.Request().WithContext(
					appctx.WithParticipant(c.Request().Context(), p),
				),
			)

			return next(c)
		}
	}
}

// AdminOnly ставится после JWTAuthMiddleware
func AdminOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := appctx.Participant(c.Request().Context())
			if !ok || !p.IsAdmin() {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "support staff only"})
			}

			return next(c)
		}
	}
}

// BuildCookieDomain возвращает значение для cookie.Domain или пустую строку, если Domain не нужно задавать.
// domain - адрес фронта из конфига, со схемой или без.
func BuildCookieDomain(domain string) string {
	host := domain
	if u, err := url.Parse(domain); err == nil && u.Host != "" {
		host = u.Host
	}

	// Убираем порт: example.com:8080 -> example.com
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	host = strings.ToLower(strings.TrimSpace(host))

	if host == "" || host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}

	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}

	// api.example.com -> .example.com
	return "." + strings.Join(parts[len(parts)-2:], ".")
}
