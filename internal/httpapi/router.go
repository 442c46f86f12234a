// Package httpapi serves the Create and Delete stages over HTTP for local runs.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mahirjain10/object-pipeline/internal/lambda"
	"github.com/mahirjain10/object-pipeline/internal/types"
	"github.com/mahirjain10/object-pipeline/pkg/logger"
)

type Stages struct {
	Create lambda.Creator
	Delete lambda.Purger
}

func NewRouter(stages Stages) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	objects := router.Group("/objects")
	{
		if stages.Create != nil {
			objects.POST("", createObject(stages.Create))
		}
		if stages.Delete != nil {
			objects.DELETE("", deleteObjects(stages.Delete))
		}
	}
	return router
}

func createObject(stage lambda.Creator) gin.HandlerFunc {
	return func(c *gin.Context) {
		headers := make(map[string]string, len(c.Request.Header))
		for name := range c.Request.Header {
			headers[name] = c.GetHeader(name)
		}
		resp := stage.Handle(c.Request.Context(), types.Request{
			RequestID: c.GetHeader("X-Request-Id"),
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Headers:   headers,
		})
		for name, value := range resp.Headers {
			c.Header(name, value)
		}
		c.String(resp.StatusCode, "%s", resp.Body)
	}
}

func deleteObjects(stage lambda.Purger) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome := stage.Handle(c.Request.Context())
		if !outcome.Success {
			c.JSON(http.StatusInternalServerError, gin.H{"error": outcome.Err.Error(), "kind": outcome.ErrorKind})
			return
		}
		c.JSON(http.StatusOK, gin.H{"bucket": outcome.Bucket, "requestId": outcome.RequestID})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("ip", c.ClientIP()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request processed")
	}
}
