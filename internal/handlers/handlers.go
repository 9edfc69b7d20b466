package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/wikicomments/backend/internal/comments"
	"github.com/emilythestrangee/wikicomments/backend/internal/models"
)

// UserStore is the user persistence the handlers need. Lookups return
// database.ErrNotFound when nothing matches.
type UserStore interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, username, email string) (bool, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// Handler combines all handler types
type Handler struct {
	Auth    *AuthHandler
	Comment *CommentHandler
}

type Config struct {
	JWTSecret []byte
	TokenTTL  time.Duration
	// SecureCookies marks the token cookie Secure.
	SecureCookies bool
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(svc *comments.Service, users UserStore, conf Config, logger *slog.Logger) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(users, conf),
		Comment: NewCommentHandler(svc, users, logger),
	}
}

func extractUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case uint:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
