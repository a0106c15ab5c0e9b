package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/GoldLink/internal/application/config"
	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/infra/appctx"
	"github.com/qrave1/GoldLink/internal/infra/ports/http/dto"
	"github.com/qrave1/GoldLink/internal/infra/ports/http/middleware"
	"github.com/qrave1/GoldLink/internal/usecase"
)

const cookieTTL = 72 * time.Hour

type AuthHandler struct {
	cfg *config.Config

	userUsecase usecase.UserUsecase
}

func NewAuthHandler(cfg *config.Config, userUsecase usecase.UserUsecase) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		userUsecase: userUsecase,
	}
}

// Register создаёт аккаунт клиента. Аккаунты поддержки заводятся через cli.
func (h *AuthHandler) Register(c echo.Context) error {
	req, err := bind[dto.RegisterRequest](c)
	if err != nil {
		return errorJSON(c, err)
	}

	user, err := h.userUsecase.CreateUser(
		c.Request().Context(),
		req.Username,
		req.Password,
		req.DisplayName,
		models.RoleCustomer,
	)
	if err != nil {
		slog.Error("create user failed", slog.String(constant.UserName, req.Username), slog.Any(constant.Error, err))
		return errorJSON(c, err)
	}

	return h.issueToken(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	req, err := bind[dto.LoginRequest](c)
	if err != nil {
		return errorJSON(c, err)
	}

	user, err := h.userUsecase.ValidateCredentials(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		slog.Warn("validate credentials failed", slog.String(constant.UserName, req.Username), slog.Any(constant.Error, err))
		return errorJSON(c, err)
	}

	return h.issueToken(c, http.StatusOK, user)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.cookie("", time.Unix(0, 0)))

	return c.NoContent(http.StatusOK)
}

func (h *AuthHandler) GetMe(c echo.Context) error {
	p, ok := appctx.Participant(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user in context"})
	}

	userID, err := uuid.Parse(p.ID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user in context"})
	}

	user, err := h.userUsecase.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, meResponse(user))
}

func (h *AuthHandler) issueToken(c echo.Context, status int, user *models.User) error {
	token, err := h.userUsecase.GenerateJWT(user)
	if err != nil {
		slog.Error("generate JWT failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create token"})
	}

	c.SetCookie(h.cookie(token, time.Now().Add(cookieTTL)))

	return c.JSON(status, dto.AuthResponse{
		User:  meResponse(user),
		Token: token,
	})
}

func (h *AuthHandler) cookie(value string, expires time.Time) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if h.cfg.Debug {
		sameSite = http.SameSiteLaxMode
	}

	return &http.Cookie{
		Name:     middleware.CookieName,
		Value:    value,
		Expires:  expires,
		Domain:   middleware.BuildCookieDomain(h.cfg.Domain),
		Path:     "/",
		Secure:   !h.cfg.Debug,
		HttpOnly: true,
		SameSite: sameSite,
	}
}

func meResponse(user *models.User) dto.GetMeResponse {
	return dto.GetMeResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.Participant().DisplayName,
		Role:        string(user.Role),
	}
}
