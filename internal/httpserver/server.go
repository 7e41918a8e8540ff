package httpserver

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/rtc"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/scenario"
	"github.com/Chevalier-dev/ten-days-of-voice-agents-2025/internal/telephony"
)

// Server wires the echo router to the call handler and the Twilio webhooks.
type Server struct {
	Echo *echo.Echo
}

// New builds the router. telephonySvc may be nil when Twilio is not configured.
func New(h *rtc.Handler, telephonySvc *telephony.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/scenarios", func(c echo.Context) error {
		return c.JSON(http.StatusOK, scenario.Names())
	})

	e.POST("/call/:scenario", func(c echo.Context) error {
		name := c.Param("scenario")
		var offer rtc.SessionDescription
		if err := c.Bind(&offer); err != nil {
			log.Printf("invalid offer: %v", err)
			return c.String(http.StatusBadRequest, "invalid offer")
		}
		answer, err := h.HandleOffer(c.Request().Context(), name, offer)
		if err != nil {
			log.Printf("webrtc handle offer failed: %v", err)
			return c.String(http.StatusInternalServerError, "offer failed")
		}
		return c.JSON(http.StatusOK, answer)
	})

	if telephonySvc != nil {
		telephonySvc.RegisterHandlers(e)
	}

	return &Server{Echo: e}
}
