package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/wikicomments/backend/internal/comments"
	"github.com/emilythestrangee/wikicomments/backend/internal/database"
	"github.com/emilythestrangee/wikicomments/backend/internal/flash"
	"github.com/emilythestrangee/wikicomments/backend/internal/templates"
)

type CommentHandler struct {
	svc    *comments.Service
	users  UserStore
	logger *slog.Logger
}

func NewCommentHandler(svc *comments.Service, users UserStore, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{svc: svc, users: users, logger: logger}
}

type commentOp func(context.Context, comments.Request) (*comments.Outcome, error)

// PostComment creates a comment and redirects back to the commented page.
func (h *CommentHandler) PostComment(c *gin.Context) {
	h.serve(c, h.svc.PostComment)
}

// EditComment replaces the text of the caller's comment and returns the
// re-rendered fragment.
func (h *CommentHandler) EditComment(c *gin.Context) {
	h.serve(c, h.svc.EditComment)
}

// DeleteComment soft-deletes the caller's comment and returns the fragment.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	h.serve(c, h.svc.DeleteComment)
}

// FetchComment renders a public comment for anyone.
func (h *CommentHandler) FetchComment(c *gin.Context) {
	h.serve(c, h.svc.FetchComment)
}

// SecurityData returns the hidden fields needed to post on a target.
func (h *CommentHandler) SecurityData(c *gin.Context) {
	data, err := h.svc.SecurityData(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *CommentHandler) serve(c *gin.Context, op commentOp) {
	req, err := h.request(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	out, err := op(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	flash.Attach(c, out.Messages)

	if out.Redirect != "" {
		c.Redirect(http.StatusFound, out.Redirect)
		return
	}

	format := out.Format
	if format == "" {
		format = "pretty"
	}
	c.HTML(http.StatusOK, templates.CommentBody, gin.H{
		"Comment": out.Comment,
		"Format":  format,
	})
}

func (h *CommentHandler) request(c *gin.Context) (comments.Request, error) {
	req := comments.Request{
		Query:      c.Request.URL.Query(),
		RemoteAddr: c.ClientIP(),
		AJAX:       c.GetHeader("X-Requested-With") == "XMLHttpRequest",
	}

	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err != nil {
			return req, &comments.RequestError{Kind: comments.BadRequest, Message: "Malformed form body."}
		}
		req.Form = c.Request.PostForm
	}

	// A token for a user that no longer exists counts as anonymous; the
	// operations that need a user reject it themselves.
	if userID, ok := extractUserID(c); ok {
		user, err := h.users.GetUser(c.Request.Context(), userID)
		switch {
		case err == nil:
			req.User = user
		case !errors.Is(err, database.ErrNotFound):
			return req, err
		}
	}
	return req, nil
}

func (h *CommentHandler) fail(c *gin.Context, err error) {
	var rerr *comments.RequestError
	if !errors.As(err, &rerr) {
		c.Error(err)
		h.logger.ErrorContext(c.Request.Context(), "comment request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	switch rerr.Kind {
	case comments.NotFound:
		c.String(http.StatusNotFound, rerr.Message)
	case comments.Unauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": rerr.Message})
	default:
		c.String(http.StatusBadRequest, rerr.Message)
	}
}

