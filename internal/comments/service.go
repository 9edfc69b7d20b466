// Package comments implements posting, editing, soft deletion and fetching of
// wiki comments on behalf of an HTTP layer.
package comments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/emilythestrangee/wikicomments/backend/internal/database"
	"github.com/emilythestrangee/wikicomments/backend/internal/flash"
	"github.com/emilythestrangee/wikicomments/backend/internal/forms"
	"github.com/emilythestrangee/wikicomments/backend/internal/models"
	"github.com/emilythestrangee/wikicomments/backend/internal/signals"
	"github.com/emilythestrangee/wikicomments/backend/internal/targets"
)

// Store is the persistence the service needs. GetComment returns
// database.ErrNotFound when no comment has the key.
type Store interface {
	GetComment(ctx context.Context, pk int) (*models.Comment, error)
	SaveComment(ctx context.Context, comment *models.Comment, editorID int, note string) error
}

type Resolver interface {
	Resolve(ctx context.Context, ctype, pk string) (targets.Target, error)
}

// Request is the part of an HTTP request the operations look at.
type Request struct {
	User       *models.User
	Form       url.Values
	Query      url.Values
	RemoteAddr string
	AJAX       bool
	// Next is the caller's default redirect target.
	Next string
}

// Outcome is what the HTTP layer should send back. Exactly one of Redirect
// and Comment is set.
type Outcome struct {
	Redirect string
	Comment  *models.Comment
	Format   string
	Messages flash.Messages
}

type Kind int

const (
	BadRequest Kind = iota
	NotFound
	Unauthorized
)

// RequestError is a user-facing failure. Anything else returned by the
// service is a fault.
type RequestError struct {
	Kind    Kind
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func badRequest(format string, args ...any) error {
	return &RequestError{Kind: BadRequest, Message: fmt.Sprintf(format, args...)}
}

type Options struct {
	// FrontPage is the URL of the named front page route; "/" is used when empty.
	FrontPage string
	Now       func() time.Time
}

type Service struct {
	store     Store
	targets   Resolver
	signer    *forms.Signer
	bus       *signals.Bus
	frontPage string
	now       func() time.Time
}

func NewService(store Store, resolver Resolver, signer *forms.Signer, bus *signals.Bus, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		targets:   resolver,
		signer:    signer,
		bus:       bus,
		frontPage: opts.FrontPage,
		now:       opts.Now,
	}
}

// save runs the pre-save receivers, persists, then runs the post-save receivers.
func (s *Service) save(ctx context.Context, req Request, comment *models.Comment, note string) error {
	ev := &signals.Event{Comment: comment, UserID: req.User.ID, RemoteAddr: req.RemoteAddr}

	if err := s.bus.WillBePosted(ctx, ev); err != nil {
		var veto *signals.VetoError
		if errors.As(err, &veto) {
			return badRequest("%s", veto.Error())
		}
		return err
	}

	if err := s.store.SaveComment(ctx, comment, req.User.ID, note); err != nil {
		return err
	}

	s.bus.WasPosted(ctx, ev)
	return nil
}

// excerpt is the first 50 characters of body, with "..." when cut.
func excerpt(body string) string {
	const max = 50
	r := []rune(body)
	if len(r) <= max {
		return body
	}
	return string(r[:max]) + "..."
}

// resolveTarget maps registry failures to the diagnostics clients see.
func (s *Service) resolveTarget(ctx context.Context, data url.Values) (targets.Target, error) {
	_, hasType := data["content_type"]
	_, hasPK := data["object_pk"]
	if !hasType || !hasPK {
		return nil, badRequest("Missing content_type or object_pk field.")
	}
	ctype, pk := data.Get("content_type"), data.Get("object_pk")

	target, err := s.targets.Resolve(ctx, ctype, pk)
	switch {
	case err == nil:
		return target, nil
	case errors.Is(err, targets.ErrMalformedType):
		return nil, badRequest("Invalid content_type value: %q", ctype)
	case errors.Is(err, targets.ErrUnknownType):
		return nil, badRequest("The given content-type %q does not resolve to a valid model.", ctype)
	case errors.Is(err, targets.ErrNotFound):
		return nil, badRequest("No object matching content-type %q and object PK %q exists.", ctype, pk)
	case errors.Is(err, targets.ErrInvalidKey):
		return nil, badRequest("Attempting to get content-type %q and object PK %q raised an invalid key error.", ctype, pk)
	default:
		return nil, err
	}
}

// SecurityData issues the hidden form fields for commenting on a target.
func (s *Service) SecurityData(ctx context.Context, query url.Values) (forms.SecurityData, error) {
	target, err := s.resolveTarget(ctx, query)
	if err != nil {
		return forms.SecurityData{}, err
	}
	return s.signer.SecurityData(target, s.now()), nil
}

func (s *Service) lookup(ctx context.Context, pk int) (*models.Comment, error) {
	comment, err := s.store.GetComment(ctx, pk)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return comment, err
}
