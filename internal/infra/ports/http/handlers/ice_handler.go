package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/turn/v4"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/GoldLink/internal/application/config"
	"github.com/qrave1/GoldLink/internal/application/constant"
)

const turnCredentialTTL = time.Hour

type IceHandler struct {
	cfg *config.Config
}

func NewIceHandler(cfg *config.Config) *IceHandler {
	return &IceHandler{cfg: cfg}
}

// IceServers выдаёт TURN сервера. С COTURN_SECRET креды временные (REST схема coturn), иначе статические из конфига.
func (h *IceHandler) IceServers(c echo.Context) error {
	servers := h.cfg.ICEServers()
	if len(servers) == 0 {
		return c.JSON(http.StatusOK, []webrtc.ICEServer{})
	}

	if h.cfg.CoturnServer.Secret == "" {
		return c.JSON(http.StatusOK, servers)
	}

	// username - время истечения, пароль - HMAC-SHA1 от него на static-auth-secret
	username, password, err := turn.GenerateLongTermCredentials(h.cfg.CoturnServer.Secret, turnCredentialTTL)
	if err != nil {
		slog.Error("generate turn credentials", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create turn credentials"})
	}

	response := webrtc.ICEServer{
		URLs: []string{
			h.cfg.TurnUDPServer.URLs[0],
			h.cfg.TurnTCPServer.URLs[0],
		},
		Username:   username,
		Credential: password,
	}

	return c.JSON(http.StatusOK, []webrtc.ICEServer{response})
}
