package http

import "github.com/gin-gonic/gin"

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// ErrorCodeResponse adds a machine-readable code next to the message.
func ErrorCodeResponse(c *gin.Context, code int, errCode, message string) {
	c.JSON(code, gin.H{"error": message, "code": errCode})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}
