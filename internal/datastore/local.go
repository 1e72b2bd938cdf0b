package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/projecthub/invited/internal/database"
	"github.com/projecthub/invited/pkg/model"
)

var _ Store = &LocalStore{}

var knownTables = map[string]bool{
	model.MembershipsTable: true,
	model.InvitationsTable: true,
}

// Claims are the claims of a token issued by the identity service.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// LocalStore keeps the tables in a local database and verifies HS256 tokens
// signed with the shared secret.
type LocalStore struct {
	dbm    *database.DatabaseManager
	secret []byte
	logger *slog.Logger
}

func NewLocalStore(dbm *database.DatabaseManager, secret string) *LocalStore {
	return &LocalStore{
		dbm:    dbm,
		secret: []byte(secret),
		logger: slog.With("logger", "local_store"),
	}
}

func (s *LocalStore) ResolveUser(_ context.Context, token string) (*model.User, error) {
	if token == "" || len(s.secret) == 0 {
		return nil, ErrUnauthorized
	}

	claims := new(Claims)

	_, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, err.Error())
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrUnauthorized)
	}

	return &model.User{ID: claims.Subject, Email: claims.Email}, nil
}

func (s *LocalStore) QueryOne(_ context.Context, _ string, table string, filter Filter, dest any) error {
	if !knownTables[table] {
		return fmt.Errorf("unknown table %s", table)
	}

	err := s.dbm.FindOne(table, toColumns(filter), dest)

	if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrMultiple) {
		return fmt.Errorf("%w: %s", ErrNotFound, err.Error())
	}

	return err
}

func (s *LocalStore) Exists(_ context.Context, _ string, table string, filter Filter) (bool, error) {
	if !knownTables[table] {
		return false, fmt.Errorf("unknown table %s", table)
	}

	return s.dbm.Exists(table, toColumns(filter))
}

func (s *LocalStore) Insert(_ context.Context, _ string, table string, record any) error {
	if !knownTables[table] {
		return fmt.Errorf("unknown table %s", table)
	}

	err := s.dbm.CreateIn(table, record)

	if errors.Is(err, database.ErrDuplicate) {
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	}

	return err
}

// IssueToken signs a token for user that LocalStore accepts.
func IssueToken(secret string, user *model.User, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: user.Email,
		Role:  "authenticated",
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func toColumns(filter Filter) map[string]any {
	res := make(map[string]any, len(filter))

	for k, v := range filter {
		res[k] = v
	}

	return res
}
