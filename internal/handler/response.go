package handler

import (
	"github.com/gin-gonic/gin"
)

// OkResponse 成功响应
func OkResponse(c *gin.Context, statusCode int, payload gin.H) {
	body := gin.H{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(statusCode, body)
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"ok":    false,
		"error": message,
	})
}
