package server

import (
	"github.com/labstack/echo/v4"

	"github.com/qrave1/GoldLink/internal/infra/ports/http/handlers"
	"github.com/qrave1/GoldLink/internal/infra/ports/http/middleware"
	"github.com/qrave1/GoldLink/internal/usecase"
)

func New(
	identityUsecase usecase.IdentityUsecase,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	iceHandler *handlers.IceHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	// Гости подключаются без токена, поэтому ws и ice открыты
	e.GET("/ws", wsHandler.Handle)

	api := e.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
		}

		api.GET("/ice", iceHandler.IceServers)

		v1 := api.Group("/v1")
		v1.Use(middleware.JWTAuthMiddleware(identityUsecase))
		{
			v1.GET("/me", authHandler.GetMe)

			v1.GET("/sessions/:id/messages", sessionHandler.ListMessages)

			admin := v1.Group("", middleware.AdminOnly())
			{
				admin.GET("/sessions", sessionHandler.ListSessions)
				admin.POST("/sessions/:id/close", sessionHandler.CloseSession)

				admin.GET("/presence/online", sessionHandler.OnlineParticipants)
			}
		}
	}

	e.Static("/", "web")

	return e
}
