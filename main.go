package main

import (
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"watermark-backend/handlers"
)

func main() {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"http://localhost:3000"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	config.ExposeHeaders = []string{
		"X-Job-ID", "X-Watermark-Level", "X-Watermark-Signature", "X-Watermark-PSNR",
		"X-Watermark-Timestamp", "X-Watermark-Content-Hash", "X-Degradation-Avg",
		"X-Watermark-Frames", "X-Watermark-Skipped-Bands", "Content-Disposition",
	}
	config.AllowCredentials = true
	router.Use(cors.New(config))

	watermarkHandler := handlers.NewWatermarkHandler()

	// API Routes
	api := router.Group("/api/v1")
	{
		api.GET("/health", watermarkHandler.HealthCheck)
		api.GET("/protection-info", watermarkHandler.ProtectionInfo)

		wm := api.Group("/watermark")
		{
			wm.POST("/protect", watermarkHandler.ProtectAudio)
			wm.POST("/verify", watermarkHandler.VerifyAudio)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	log.Printf("API endpoints:")
	log.Printf("  POST /api/v1/watermark/protect - Embed adversarial watermark (returns protected audio)")
	log.Printf("  POST /api/v1/watermark/verify  - Verify watermark signature (returns report)")
	log.Printf("  GET  /api/v1/protection-info   - Protection level table")
	log.Printf("  GET  /api/v1/health            - Health check")
	log.Printf("")
	log.Printf("Features:")
	log.Printf("  • Psychoacoustically masked spread-spectrum watermarking")
	log.Printf("  • MFCC disruption targeting voice/timbre model features")
	log.Printf("  • Drift-corrected temporal jitter")
	log.Printf("  • High-frequency adversarial patterns")
	log.Printf("  • ID3v2 AI-training opt-out declarations")

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
