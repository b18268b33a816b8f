package server

import (
	"html/template"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/itish2003/therapybot/controller"
	"github.com/itish2003/therapybot/templates"
)

const sessionCookieName = "therapybot_session"

type RouterConfig struct {
	Controller *controller.RAGController
	SecretKey  string
	// SecureCookies marks the session cookie Secure; only set it when served over TLS.
	SecureCookies bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()

	r.Use(controller.RequestID())
	r.Use(controller.AccessLog())
	r.Use(controller.Recovery())

	store := cookie.NewStore([]byte(cfg.SecretKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionCookieName, store))

	r.SetHTMLTemplate(template.Must(template.ParseFS(templates.FS, "*.html")))

	r.GET("/", cfg.Controller.Index)
	r.POST("/chat", cfg.Controller.Chat)
	r.GET("/history", cfg.Controller.History)
	r.GET("/health", cfg.Controller.Health)

	return r
}
