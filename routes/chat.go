package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pdf-chat-platform/internal/auth"
	"pdf-chat-platform/middleware"
	"pdf-chat-platform/models"
	"pdf-chat-platform/services"
	"pdf-chat-platform/utils"
)

func SetupChatRoutes(router *gin.Engine, tm *auth.TokenManager, answerer *services.Answerer, pdfService *services.PDFService, history services.HistoryStore, exporter *services.ExportService) {
	chat := router.Group("/chat", middleware.RequireAuth(tm))

	chat.POST("", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		username := middleware.GetUsername(c)
		record, err := pdfService.Get(c.Request.Context(), username, req.PDF)
		if err != nil {
			utils.RespondWithNotFound(c, "PDF not found, upload it first")
			return
		}
		if record.Status != models.StatusCompleted {
			utils.RespondWithError(c, http.StatusConflict, "pdf_not_ready",
				"PDF is not ready for questions", gin.H{"status": record.Status})
			return
		}

		resp, err := answerer.Answer(c.Request.Context(), username, req.PDF, req.Message)
		if err != nil {
			utils.RespondWithBadRequest(c, "Could not answer question", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	chat.GET("/:pdf/history", func(c *gin.Context) {
		doc, err := history.Load(c.Request.Context(), middleware.GetUsername(c))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load chat history", nil)
			return
		}
		turns := doc.PDFChats[c.Param("pdf")]
		if turns == nil {
			turns = []models.ChatTurn{}
		}
		c.JSON(http.StatusOK, gin.H{"pdf": c.Param("pdf"), "turns": turns, "count": len(turns)})
	})

	chat.DELETE("/:pdf/history", func(c *gin.Context) {
		if err := history.ClearChat(c.Request.Context(), middleware.GetUsername(c), c.Param("pdf")); err != nil {
			utils.RespondWithInternalError(c, "Failed to clear chat history", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Chat history cleared"})
	})

	// Export chat history as an Excel workbook. An optional ?pdf= filter
	// narrows the export to one document.
	chat.GET("/export", func(c *gin.Context) {
		username := middleware.GetUsername(c)
		data, err := exporter.ExportChats(c.Request.Context(), username, c.Query("pdf"))
		if err != nil {
			utils.RespondWithNotFound(c, err.Error())
			return
		}

		filename := fmt.Sprintf("chat-history-%s-%s.xlsx", username, time.Now().Format("20060102-150405"))
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	})
}
