package comments

import (
	"context"
	"fmt"
)

// FetchComment returns an active comment for read-only rendering. It needs
// no authenticated user.
func (s *Service) FetchComment(ctx context.Context, req Request) (*Outcome, error) {
	raw := req.Query.Get("comment_pk")
	format := req.Query.Get("format")
	if format == "" {
		format = "pretty"
	}

	comment, err := s.commentByPK(ctx, raw)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, &RequestError{Kind: NotFound, Message: fmt.Sprintf("No comment matches comment_pk %q.", raw)}
	}
	if !comment.IsActive() {
		return nil, badRequest("Comment is no longer public.")
	}

	return &Outcome{Comment: comment, Format: format}, nil
}
