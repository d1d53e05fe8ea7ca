// Package router provides document QA service routing.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/anaya/internal/docqa/handler"
)

// Register registers the document QA routes.
func Register(engine *gin.Engine, docqaHandler *handler.DocQAHandler) {
	logger.Info("Registering document QA routes...")

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	{
		docqa := v1.Group("/docqa")
		{
			docqa.POST("/documents", docqaHandler.Upload)
			docqa.GET("/documents", docqaHandler.ListDocuments)
			docqa.GET("/documents/:id", docqaHandler.GetDocument)
			docqa.DELETE("/documents/:id", docqaHandler.DeleteDocument)

			docqa.POST("/query", docqaHandler.Query)

			docqa.GET("/stats", docqaHandler.Stats)
		}
	}

	logger.Info("HTTP routes registered")
}
