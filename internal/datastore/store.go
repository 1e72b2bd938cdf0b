// Package datastore talks to the identity and data service: it resolves bearer
// tokens to users and reads or writes single rows of the project tables.
package datastore

import (
	"context"
	"errors"

	"github.com/projecthub/invited/pkg/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("record conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// Filter is a set of column equality conditions.
type Filter map[string]string

type Store interface {
	// ResolveUser returns the user the bearer token belongs to.
	ResolveUser(ctx context.Context, token string) (*model.User, error)
	// QueryOne loads exactly one row of table into dest. No rows and several rows both give ErrNotFound.
	QueryOne(ctx context.Context, token string, table string, filter Filter, dest any) error
	// Exists reports whether table has at least one row matching filter. Row contents are never decoded.
	Exists(ctx context.Context, token string, table string, filter Filter) (bool, error)
	// Insert adds record to table. A unique constraint violation gives ErrConflict.
	Insert(ctx context.Context, token string, table string, record any) error
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
