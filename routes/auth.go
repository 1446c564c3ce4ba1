package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pdf-chat-platform/internal/auth"
	"pdf-chat-platform/internal/config"
	"pdf-chat-platform/internal/logger"
	"pdf-chat-platform/middleware"
	"pdf-chat-platform/models"
	"pdf-chat-platform/services"
	"pdf-chat-platform/utils"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, db *mongo.Database, tm *auth.TokenManager, pdfService *services.PDFService) {
	authGroup := router.Group("/auth")
	usersCollection := db.Collection("users")

	authGroup.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		var existing models.User
		err := usersCollection.FindOne(c.Request.Context(), bson.M{
			"$or": []bson.M{{"username": req.Username}, {"email": req.Email}},
		}).Decode(&existing)
		if err == nil {
			utils.RespondWithConflict(c, "Username or email already registered")
			return
		}
		if err != mongo.ErrNoDocuments {
			utils.RespondWithInternalError(c, "Failed to check existing users", nil)
			return
		}

		hashed, err := utils.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to process password", nil)
			return
		}

		user := models.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hashed,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		result, err := usersCollection.InsertOne(c.Request.Context(), user)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				utils.RespondWithConflict(c, "Username or email already registered")
				return
			}
			utils.RespondWithInternalError(c, "Failed to create user", nil)
			return
		}

		logger.Info("user registered", "username", req.Username)
		c.JSON(http.StatusCreated, gin.H{
			"message": "Account created successfully",
			"user": models.UserInfo{
				ID:       objectIDHex(result.InsertedID),
				Username: user.Username,
				Email:    user.Email,
			},
		})
	})

	authGroup.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		var user models.User
		err := usersCollection.FindOne(c.Request.Context(), bson.M{
			"$or": []bson.M{{"username": req.Identifier}, {"email": req.Identifier}},
		}).Decode(&user)
		if err != nil || !utils.CheckPassword(req.Password, user.PasswordHash) {
			// Same response for unknown user and wrong password
			utils.RespondWithUnauthorized(c, "Invalid credentials")
			return
		}

		pair, err := tm.IssueTokenPair(user.ID.Hex(), user.Username)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		c.JSON(http.StatusOK, models.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			AccessExp:    pair.AccessExp,
			RefreshExp:   pair.RefreshExp,
			User: models.UserInfo{
				ID:       user.ID.Hex(),
				Username: user.Username,
				Email:    user.Email,
			},
		})
	})

	authGroup.POST("/refresh", func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		claims, err := tm.ValidateRefreshToken(req.RefreshToken)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired refresh token")
			return
		}

		// Rotate: old refresh token is dead once a new pair exists
		if err := tm.RevokeToken(claims.ID, true); err != nil {
			logger.Warn("failed to revoke rotated refresh token", "error", err)
		}
		pair, err := tm.IssueTokenPair(claims.UserID, claims.Username)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}
		c.JSON(http.StatusOK, pair)
	})

	authGroup.POST("/logout", middleware.RequireAuth(tm), func(c *gin.Context) {
		if err := tm.RevokeAllUserTokens(middleware.GetUserID(c)); err != nil {
			utils.RespondWithInternalError(c, "Failed to revoke tokens", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})

	authGroup.GET("/me", middleware.RequireAuth(tm), func(c *gin.Context) {
		var user models.User
		err := usersCollection.FindOne(c.Request.Context(), bson.M{"username": middleware.GetUsername(c)}).Decode(&user)
		if err != nil {
			utils.RespondWithNotFound(c, "User not found")
			return
		}
		c.JSON(http.StatusOK, models.UserInfo{
			ID:       user.ID.Hex(),
			Username: user.Username,
			Email:    user.Email,
		})
	})

	// Account deletion removes the user's uploads, collections, history,
	// and live tokens. Other users' data is untouched.
	authGroup.DELETE("/me", middleware.RequireAuth(tm), func(c *gin.Context) {
		username := middleware.GetUsername(c)
		userID := middleware.GetUserID(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()

		if err := pdfService.DeleteOwner(ctx, username); err != nil {
			logger.Error("account cleanup incomplete", "username", username, "error", err)
			utils.RespondWithInternalError(c, "Failed to delete account data", nil)
			return
		}
		if _, err := usersCollection.DeleteOne(ctx, bson.M{"username": username}); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete account", nil)
			return
		}
		if err := tm.RevokeAllUserTokens(userID); err != nil {
			logger.Warn("failed to revoke tokens on account deletion", "username", username, "error", err)
		}

		logger.Info("account deleted", "username", username)
		c.JSON(http.StatusOK, gin.H{"message": "Account deleted permanently"})
	})
}

func objectIDHex(id interface{}) string {
	type hexer interface{ Hex() string }
	if h, ok := id.(hexer); ok {
		return h.Hex()
	}
	return ""
}
