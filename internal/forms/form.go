// Package forms validates comment submissions and their anti-forgery fields.
package forms

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/emilythestrangee/wikicomments/backend/internal/models"
	"github.com/emilythestrangee/wikicomments/backend/internal/targets"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldErrors maps a form field to its error messages.
type FieldErrors map[string][]string

func (fe FieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// String renders errors as "field: msg; field: msg" in field order.
func (fe FieldErrors) String() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(fe[f], " "))
	}
	return strings.Join(parts, "; ")
}

type details struct {
	Name    string `validate:"required,max=50"`
	Email   string `validate:"required,email,max=254"`
	URL     string `validate:"omitempty,url"`
	Comment string `validate:"required,max=3000"`
}

// CommentForm is a bound comment submission against a resolved target.
type CommentForm struct {
	Target targets.Target
	data   url.Values
	now    time.Time

	security FieldErrors
	errors   FieldErrors
	details  details
}

// New binds and validates data. The caller is expected to have overwritten
// name and email from the authenticated user.
func (s *Signer) New(target targets.Target, data url.Values, now time.Time) *CommentForm {
	f := &CommentForm{
		Target:   target,
		data:     data,
		now:      now,
		security: FieldErrors{},
		errors:   FieldErrors{},
		details: details{
			Name:    strings.TrimSpace(data.Get("name")),
			Email:   strings.TrimSpace(data.Get("email")),
			URL:     strings.TrimSpace(data.Get("url")),
			Comment: data.Get("comment"),
		},
	}
	f.checkSecurity(s)
	f.checkDetails()
	return f
}

func (f *CommentForm) checkSecurity(s *Signer) {
	ctype, pk := f.data.Get("content_type"), f.data.Get("object_pk")
	if !strings.EqualFold(ctype, f.Target.ContentType()) || pk != f.Target.PK() {
		f.security.add("content_type", "Form does not match the commented object.")
	}

	ts := f.data.Get("timestamp")
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		f.security.add("timestamp", "Timestamp check failed")
	} else if f.now.Sub(time.Unix(sec, 0)) > MaxFormAge {
		f.security.add("timestamp", "Timestamp check failed")
	}

	hash := f.data.Get("security_hash")
	if hash == "" || !s.valid(f.Target.ContentType(), f.Target.PK(), ts, hash) {
		f.security.add("security_hash", "Security hash check failed.")
	}

	if f.data.Get("honeypot") != "" {
		f.security.add("honeypot", "If you enter anything in this field your comment will be treated as spam")
	}
}

func (f *CommentForm) checkDetails() {
	err := validate.Struct(f.details)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		f.errors.add("__all__", err.Error())
		return
	}
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			f.errors.add(field, "This field is required.")
		case "max":
			f.errors.add(field, fmt.Sprintf("Ensure this value has at most %s characters (it has %d).",
				fe.Param(), len([]rune(fmt.Sprint(fe.Value())))))
		case "email":
			f.errors.add(field, "Enter a valid email address.")
		case "url":
			f.errors.add(field, "Enter a valid URL.")
		default:
			f.errors.add(field, "Enter a valid value.")
		}
	}
}

// SecurityErrors returns failures of the anti-forgery fields.
func (f *CommentForm) SecurityErrors() FieldErrors {
	if len(f.security) == 0 {
		return nil
	}
	return f.security
}

// Errors returns validation failures of the user-editable fields.
func (f *CommentForm) Errors() FieldErrors {
	if len(f.errors) == 0 {
		return nil
	}
	return f.errors
}

// EditPK returns the comment_pk field, if present.
func (f *CommentForm) EditPK() (string, bool) {
	_, ok := f.data["comment_pk"]
	return f.data.Get("comment_pk"), ok
}

// Lookup fetches an existing comment; it returns nil, nil when none exists.
type Lookup func(ctx context.Context, pk int) (*models.Comment, error)

// CommentObject materialises the comment to save. For an edit-via-post
// submission it returns the stored comment with its body replaced, or nil
// when that comment is missing, no longer active, or not owned by userID.
func (f *CommentForm) CommentObject(ctx context.Context, userID int, lookup Lookup) (*models.Comment, error) {
	if raw, ok := f.EditPK(); ok {
		pk, err := strconv.Atoi(raw)
		if err != nil {
			return nil, nil
		}
		existing, err := lookup(ctx, pk)
		if err != nil {
			return nil, err
		}
		if existing == nil || !existing.OwnedBy(userID) || !existing.IsActive() {
			return nil, nil
		}
		existing.Body = f.details.Comment
		return existing, nil
	}

	return &models.Comment{
		ContentType: f.Target.ContentType(),
		ObjectPK:    f.Target.PK(),
		UserName:    f.details.Name,
		UserEmail:   f.details.Email,
		UserURL:     f.details.URL,
		Body:        f.details.Comment,
		SubmitDate:  f.now,
		IsPublic:    true,
	}, nil
}
