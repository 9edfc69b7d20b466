package comments

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PostComment creates a comment from a form submission and redirects back to
// the page it was posted from. Validation problems are reported through flash
// messages on the redirect; everything else that is wrong with the request is
// a BadRequest.
func (s *Service) PostComment(ctx context.Context, req Request) (*Outcome, error) {
	if req.User == nil {
		return nil, &RequestError{Kind: Unauthorized, Message: "User not authenticated"}
	}

	// Identity always comes from the session, never the client.
	data := cloneValues(req.Form)
	data.Set("name", req.User.DisplayName())
	data.Set("email", req.User.Email)

	next := s.redirectTarget(data.Get("next"), req.Next)
	out := &Outcome{Redirect: next}

	target, err := s.resolveTarget(ctx, data)
	if err != nil {
		return nil, err
	}

	form := s.signer.New(target, data, s.now())

	if errs := form.SecurityErrors(); errs != nil {
		return nil, badRequest("The comment form failed security verification: %s", errs)
	}

	if errs := form.Errors(); errs != nil {
		out.Messages.Error("Your comment could not be submitted! " + errs.String())
		return out, nil
	}

	comment, err := form.CommentObject(ctx, req.User.ID, s.lookup)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		out.Messages.Error("Your edit could not be saved, as the original comment could not be found!")
		return out, nil
	}

	comment.IPAddress = req.RemoteAddr
	comment.UserID = req.User.ID
	comment.User = *req.User

	if err := s.save(ctx, req, comment, "Comment posted: "+excerpt(comment.Body)); err != nil {
		return nil, err
	}

	if _, edited := form.EditPK(); edited {
		out.Messages.Info(fmt.Sprintf("You have successfully edited your comment of %s.", comment.Submitted()))
	} else {
		out.Messages.Info(fmt.Sprintf("Thank you for your comment, %s!", comment.UserName))
	}

	// Change the URL so the browser does not show a cached page.
	if comment.ID != 0 {
		out.Redirect = AppendCommentPK(next, comment.ID)
	}
	return out, nil
}

// redirectTarget picks the form's next field, then the caller's default, then
// the front page. Anything that is not a local path is ignored.
func (s *Service) redirectTarget(candidates ...string) string {
	candidates = append(candidates, s.frontPage)
	for _, next := range candidates {
		if isLocalURL(next) {
			return next
		}
	}
	return "/"
}

func isLocalURL(raw string) bool {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// AppendCommentPK adds c=<pk> to next, keeping any #fragment at the end.
func AppendCommentPK(next string, pk int) string {
	anchor := ""
	if i := strings.LastIndex(next, "#"); i >= 0 {
		next, anchor = next[:i], next[i:]
	}

	joiner := "?"
	if strings.Contains(next, "?") {
		joiner = "&"
	}
	return next + joiner + url.Values{"c": {strconv.Itoa(pk)}}.Encode() + anchor
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

