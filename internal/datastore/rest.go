package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/projecthub/invited/internal/config"
	"github.com/projecthub/invited/pkg/model"
	"github.com/projecthub/invited/pkg/request"
)

const (
	userPath = "/auth/v1/user"
	restPath = "/rest/v1/"

	singleObject = "application/vnd.pgrst.object+json"
)

var _ Store = &RestStore{}

// RestStore is a client of a PostgREST/GoTrue compatible service. The caller's
// token is forwarded on every call so row level security applies.
type RestStore struct {
	url    string
	key    string
	client *http.Client
	logger *slog.Logger
}

func NewRestStore(s config.DataSettings, client *http.Client) *RestStore {
	if client == nil {
		client = &http.Client{Timeout: s.Timeout}
	}

	return &RestStore{
		url:    s.URL,
		key:    s.Key,
		client: client,
		logger: slog.With("logger", "rest_store"),
	}
}

func (s *RestStore) req(token string) *request.Request {
	return request.New(s.client, s.logger).Token(token).Header("apikey", s.key)
}

func (s *RestStore) ResolveUser(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	user := new(model.User)

	if err := s.req(token).URL(s.url+userPath).GetJSON(ctx, user); err != nil {
		switch request.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, err.Error())
		}

		return nil, fmt.Errorf("resolve user: %w", err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrUnauthorized)
	}

	return user, nil
}

func (s *RestStore) QueryOne(ctx context.Context, token string, table string, filter Filter, dest any) error {
	args := map[string]string{"select": "*"}

	for k, v := range filter {
		args[k] = "eq." + v
	}

	err := s.req(token).URL(s.url+restPath+table).
		Header("Accept", singleObject).
		Args(args).
		GetJSON(ctx, dest)

	if err != nil {
		// 406: the result is not exactly one row
		switch request.StatusCode(err) {
		case http.StatusNotAcceptable, http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, err.Error())
		}

		return fmt.Errorf("select from %s: %w", table, err)
	}

	return nil
}

func (s *RestStore) Exists(ctx context.Context, token string, table string, filter Filter) (bool, error) {
	args := map[string]string{"select": "id", "limit": "1"}

	for k, v := range filter {
		args[k] = "eq." + v
	}

	var rows []json.RawMessage

	err := s.req(token).URL(s.url+restPath+table).
		Header("Accept", "application/json").
		Args(args).
		GetJSON(ctx, &rows)

	if err != nil {
		return false, fmt.Errorf("select from %s: %w", table, err)
	}

	return len(rows) > 0, nil
}

func (s *RestStore) Insert(ctx context.Context, token string, table string, record any) error {
	err := s.req(token).URL(s.url+restPath+table).
		Post().
		Header("Prefer", "return=minimal").
		JSON(record).
		Exec(ctx)

	if err != nil {
		if request.StatusCode(err) == http.StatusConflict {
			return fmt.Errorf("%w: %s", ErrConflict, err.Error())
		}

		return fmt.Errorf("insert into %s: %w", table, err)
	}

	return nil
}
