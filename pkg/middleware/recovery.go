package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/authhub/pkg/result"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にログを出力し、共通エンベロープのシステムエラーを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, result.Error(result.CodeSystemError))
			}
		}()
		c.Next()
	}
}
