package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// CodeSuccess 成功响应的业务码
const CodeSuccess = 20000

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"code":    CodeSuccess,
		"message": "success",
		"data":    data,
	})
}

// pagination 解析 offset/limit，limit 超出范围时使用默认值
func pagination(c *gin.Context, defaultLimit int) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	return offset, limit
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func respondError(c *gin.Context, status, code int, message string, err error) {
	resp := ErrorResponse{Code: code, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(status, resp)
}
