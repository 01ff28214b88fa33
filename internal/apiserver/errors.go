package apiserver

import "github.com/gin-gonic/gin"

// writeError renders the closed error envelope every route uses for a
// non-2xx response.
func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}
