package comments

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/emilythestrangee/wikicomments/backend/internal/models"
)

// ownComment loads the comment named by the comment_pk form field and checks
// that the requester may change it.
func (s *Service) ownComment(ctx context.Context, req Request) (*models.Comment, error) {
	if req.User == nil {
		return nil, &RequestError{Kind: Unauthorized, Message: "User not authenticated"}
	}
	if !req.AJAX {
		return nil, badRequest("Request is not AJAX.")
	}

	raw := req.Form.Get("comment_pk")
	comment, err := s.commentByPK(ctx, raw)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, badRequest("No object matching comment_pk %q could be found.", raw)
	}

	if !comment.OwnedBy(req.User.ID) {
		return nil, badRequest("User did not post this comment!")
	}
	if !comment.IsActive() {
		return nil, badRequest("Comment is no longer public.")
	}
	return comment, nil
}

// commentByPK returns nil, nil when raw is not a key of any comment.
func (s *Service) commentByPK(ctx context.Context, raw string) (*models.Comment, error) {
	pk, err := strconv.Atoi(raw)
	if err != nil {
		return nil, nil
	}
	return s.lookup(ctx, pk)
}

// EditComment replaces the body of one of the requester's comments and
// returns it for rendering.
func (s *Service) EditComment(ctx context.Context, req Request) (*Outcome, error) {
	comment, err := s.ownComment(ctx, req)
	if err != nil {
		return nil, err
	}

	body := req.Form.Get("comment")
	if n := utf8.RuneCountInString(body); n == 0 || n > models.MaxCommentLength {
		return nil, badRequest("Comment must be between 1 and %d characters.", models.MaxCommentLength)
	}
	comment.Body = body

	note := fmt.Sprintf("Comment of %s edited: %s", comment.Submitted(), excerpt(comment.Body))
	if err := s.save(ctx, req, comment, note); err != nil {
		return nil, err
	}

	out := &Outcome{Comment: comment}
	out.Messages.Info(fmt.Sprintf("You have successfully edited your comment of %s.", comment.Submitted()))
	return out, nil
}

// DeleteComment flags one of the requester's comments as removed. The row
// is kept.
func (s *Service) DeleteComment(ctx context.Context, req Request) (*Outcome, error) {
	comment, err := s.ownComment(ctx, req)
	if err != nil {
		return nil, err
	}

	comment.IsRemoved = true

	if err := s.save(ctx, req, comment, fmt.Sprintf("Comment of %s deleted", comment.Submitted())); err != nil {
		return nil, err
	}

	out := &Outcome{Comment: comment}
	out.Messages.Info(fmt.Sprintf("Your comment of %s has been deleted.", comment.Submitted()))
	return out, nil
}
