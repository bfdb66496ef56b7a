package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumos-api/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas de la API.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	authH *AuthHandler,
	userH *UserHandler,
	contentH *ContentHandler,
) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.RedirectTrailingSlash = true

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/health/", Health)

	requireAuth := JWTAuthMiddleware(jwtSvc)
	api := r.Group("/api/v1")

	users := api.Group("/users")
	users.GET("/profile/", requireAuth, userH.GetProfile)
	users.PUT("/profile/", requireAuth, userH.UpdateProfile)
	users.PATCH("/profile/", requireAuth, userH.UpdateProfile)
	users.GET("/sessions/", requireAuth, userH.ListSessions)

	auth := users.Group("/auth")
	auth.POST("/magic-link/request/", authH.RequestMagicLink)
	auth.POST("/magic-link/verify/", authH.VerifyMagicLink)
	auth.POST("/google/", authH.GoogleAuth)
	auth.POST("/login/", authH.PasswordLogin)
	auth.POST("/password/", requireAuth, authH.SetPassword)
	auth.POST("/logout/", requireAuth, authH.Logout)

	token := api.Group("/auth/token")
	token.POST("/refresh/", authH.RefreshToken)
	token.POST("/verify/", authH.VerifyToken)

	api.GET("/tags/", contentH.ListTags)
	api.GET("/technologies/", contentH.ListTechnologies)
	api.GET("/projects/", contentH.ListProjects)
	api.POST("/projects/create/", requireAuth, contentH.CreateProject)
	api.GET("/projects/:id/", contentH.GetProject)
	api.POST("/projects/:id/images/", requireAuth, contentH.UploadProjectImage)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
