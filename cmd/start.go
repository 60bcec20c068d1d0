/*
Copyright © 2025 bookbrain-ai
*/
package cmd

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/bookbrain-ai/bookbrain-be/handler"
	"github.com/bookbrain-ai/bookbrain-be/service"
)

// startServerCmd represents the startServer command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the knowledge base server",
	Long:  `Starts the HTTP server serving ingestion, search and chat endpoints`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := buildApp(cfgFile)
		if err != nil {
			log.Fatalf("Failed to build application: %v", err)
		}
		if err := a.buildChat(); err != nil {
			log.Fatalf("Failed to initialize chat model: %v", err)
		}

		wsService := service.NewWebSocketService(a.chat)

		// Initialize handlers
		corsHandler := handler.NewCorsHandler()
		ingestHandler := handler.NewIngestHandler(a.ingest)
		documentHandler := handler.NewDocumentHandler(a.ingest, a.documents, a.inclusions, a.cfg.UploadDir)
		searchHandler := handler.NewSearchHandler(a.retrieval)
		chatHandler := handler.NewChatHandler(a.chat, wsService)

		// Setup Gin router
		router := gin.Default()

		// Apply global middleware
		router.Use(corsHandler.CorsMiddleware)

		apiV1 := router.Group("/api/v1")
		{
			apiV1.GET("/documents", documentHandler.ListDocumentsHandler)
			apiV1.GET("/documents/:id", documentHandler.GetDocumentHandler)
			apiV1.POST("/documents/:id/inclusion", documentHandler.SetInclusionHandler)
			apiV1.GET("/documents/:id/file", documentHandler.ServeFileHandler)
			apiV1.GET("/knowledge/stats", documentHandler.StatsHandler)
			apiV1.GET("/search", searchHandler.SearchHandler)
			apiV1.POST("/chat", chatHandler.ChatHandler)
		}

		adminRoutes := router.Group("/admin/api/v1")
		{
			adminRoutes.POST("/ingest", ingestHandler.IngestDocumentHandler)
			adminRoutes.DELETE("/documents/:id", documentHandler.DeleteDocumentHandler)
		}

		router.GET("/ws/chat", chatHandler.WebSocketChatHandler)
		router.GET("/health", gin.WrapH(wsService.Health()))

		log.Printf("Starting server on port %s...\n", a.cfg.Port)
		if err := router.Run(":" + a.cfg.Port); err != nil {
			log.Fatal("Server error:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}
