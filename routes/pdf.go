package routes

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pdf-chat-platform/internal/auth"
	"pdf-chat-platform/internal/config"
	"pdf-chat-platform/middleware"
	"pdf-chat-platform/models"
	"pdf-chat-platform/services"
	"pdf-chat-platform/utils"
)

func SetupPDFRoutes(router *gin.Engine, cfg *config.Config, tm *auth.TokenManager, pdfService *services.PDFService) {
	pdfs := router.Group("/pdfs", middleware.RequireAuth(tm))

	// Upload a PDF. Small files are indexed before the response; large
	// files are answered with 202 and indexed by the worker.
	pdfs.POST("", func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A 'file' form field is required", nil)
			return
		}
		defer file.Close()

		filename := filepath.Base(header.Filename)
		if filename == "" || filename == "." || !strings.EqualFold(filepath.Ext(filename), ".pdf") {
			utils.RespondWithBadRequest(c, "Only .pdf files are accepted", nil)
			return
		}
		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				"File exceeds the upload limit", gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, cfg.MaxFileSize+1))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}
		if int64(len(data)) > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				"File exceeds the upload limit", gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}

		rebuild := c.Query("rebuild") == "true"
		record, reused, err := pdfService.Upload(c.Request.Context(), middleware.GetUsername(c), filename, data, rebuild)
		if err != nil {
			utils.RespondWithBadRequest(c, "Failed to process PDF", gin.H{"error": err.Error()})
			return
		}

		outcome := "indexed"
		status := http.StatusOK
		switch {
		case record.Status == models.StatusPending:
			outcome = "queued"
			status = http.StatusAccepted
		case reused:
			outcome = "reused"
		}
		c.JSON(status, gin.H{"pdf": record, "outcome": outcome})
	})

	pdfs.GET("", func(c *gin.Context) {
		records, err := pdfService.List(c.Request.Context(), middleware.GetUsername(c))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list PDFs", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"pdfs": records, "count": len(records)})
	})

	pdfs.GET("/:filename", func(c *gin.Context) {
		record, err := pdfService.Get(c.Request.Context(), middleware.GetUsername(c), c.Param("filename"))
		if err != nil {
			utils.RespondWithNotFound(c, "PDF not found")
			return
		}
		c.JSON(http.StatusOK, record)
	})

	pdfs.GET("/:filename/download", func(c *gin.Context) {
		url, err := pdfService.DownloadURL(c.Request.Context(), middleware.GetUsername(c), c.Param("filename"), 15*time.Minute)
		if err != nil {
			utils.RespondWithNotFound(c, "PDF not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int((15 * time.Minute).Seconds())})
	})

	pdfs.DELETE("/:filename", func(c *gin.Context) {
		if err := pdfService.Delete(c.Request.Context(), middleware.GetUsername(c), c.Param("filename")); err != nil {
			utils.RespondWithNotFound(c, "PDF not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "PDF deleted"})
	})
}
