package listeners

import (
	"context"
	"log/slog"

	"github.com/emilythestrangee/wikicomments/backend/internal/signals"
)

// AuditLog returns a post-save receiver that logs every saved comment.
func AuditLog(logger *slog.Logger) signals.PostSaveFunc {
	return func(ctx context.Context, ev *signals.Event) {
		logger.InfoContext(ctx, "comment saved",
			"comment_id", ev.Comment.ID,
			"user_id", ev.UserID,
			"target", ev.Comment.ContentType+":"+ev.Comment.ObjectPK,
			"removed", ev.Comment.IsRemoved,
			"ip", ev.RemoteAddr,
		)
	}
}
