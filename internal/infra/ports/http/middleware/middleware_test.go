package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/infra/appctx"
	"github.com/qrave1/GoldLink/internal/usecase"
)

func TestBuildCookieDomain(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3000":        "",
		"https://127.0.0.1:8443":       "",
		"https://support.goldlink.com": ".goldlink.com",
		"goldlink.com":                 ".goldlink.com",
		"https://GoldLink.com:443":     ".goldlink.com",
		"":                             "",
	}

	for in, want := range cases {
		require.Equal(t, want, BuildCookieDomain(in), in)
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	secret := []byte("secret")
	identity := usecase.NewIdentityUsecase(secret)
	users := usecase.NewUserUsecase(secret, nil)

	user := models.NewUser()
	user.Username = "support"
	user.Role = models.RoleAdmin

	token, err := users.GenerateJWT(user)
	require.NoError(t, err)

	e := echo.New()
	h := JWTAuthMiddleware(identity)(AdminOnly()(func(c echo.Context) error {
		p, ok := appctx.Participant(c.Request().Context())
		require.True(t, ok)

		return c.String(http.StatusOK, p.ID)
	}))

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()

		require.NoError(t, h(e.NewContext(req, rec)))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, user.ID.String(), rec.Body.String())
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()

		require.NoError(t, h(e.NewContext(req, rec)))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()

		require.NoError(t, h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("customer is not admin", func(t *testing.T) {
		customer := models.NewUser()
		customer.Username = "bob"

		customerToken, err := users.GenerateJWT(customer)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/?token="+customerToken, nil)
		rec := httptest.NewRecorder()

		require.NoError(t, h(e.NewContext(req, rec)))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}
