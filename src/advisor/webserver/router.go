package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/campus-stack/faculty-advisor/src/advisor/auth"
)

func attachRoutes(r *gin.Engine, deps Deps) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	authH := NewAuth(deps.Tokens, deps.Users, deps.Sessions)
	sessH := NewSession(deps.Sessions)
	advH := NewAdvisory(deps.Agents)

	r.GET("/healthz", healthz(deps))

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/login", authH.Login)

		secured := v1.Group("")
		secured.Use(AuthRequired(deps.Tokens))
		{
			secured.POST("/auth/logout", authH.Logout)
			secured.POST("/auth/refresh", authH.Refresh)
			secured.GET("/auth/me", authH.Me)

			secured.GET("/session/status", sessH.Status)
			secured.DELETE("/session/clear", sessH.Clear)

			secured.POST("/advisory/ask", advH.Ask)
			secured.GET("/agents", advH.List)
			secured.POST("/agents/:type/ask", advH.AskAgent)
		}

		admin := v1.Group("/admin")
		admin.Use(AuthRequired(deps.Tokens), RequireRole(auth.RoleAdmin))
		{
			admin.GET("/agents", advH.List)
		}
	}
}
