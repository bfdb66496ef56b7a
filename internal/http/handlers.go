package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumos-api/internal/service"
)

// Health maneja GET /health/.
func Health(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, "OK")
}

// respondContent escribe el envelope {success, message, data} de los endpoints de contenido.
func respondContent(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondContentError(c *gin.Context, status int, message string, fields map[string][]string) {
	body := gin.H{
		"success": false,
		"message": message,
	}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	c.JSON(status, body)
}

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
