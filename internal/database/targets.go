package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/emilythestrangee/wikicomments/backend/internal/models"
	"github.com/emilythestrangee/wikicomments/backend/internal/targets"
)

// RegisterTargets registers a loader for every commentable model.
func RegisterTargets(reg *targets.Registry, db *gorm.DB) error {
	if err := reg.Register("pages.page", loader[models.Page](db)); err != nil {
		return err
	}
	if err := reg.Register("maps.mapdata", loader[models.MapData](db)); err != nil {
		return err
	}
	return reg.Validate()
}

type target[T any] interface {
	*T
	targets.Target
}

func loader[T any, PT target[T]](db *gorm.DB) targets.Loader {
	return func(ctx context.Context, pk string) (targets.Target, error) {
		id, err := strconv.Atoi(pk)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", targets.ErrInvalidKey, pk)
		}
		obj := PT(new(T))
		err = db.WithContext(ctx).First(obj, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, targets.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return obj, nil
	}
}
