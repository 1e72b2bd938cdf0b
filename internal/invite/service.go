// Package invite records project invitations and sends the invitation email.
package invite

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/projecthub/invited/internal/datastore"
	"github.com/projecthub/invited/internal/mailer"
	"github.com/projecthub/invited/pkg/model"
)

type Settings struct {
	From      string
	Subject   string
	AcceptURL string
}

type Service struct {
	store  datastore.Store
	sender mailer.Sender
	conf   Settings
	logger *slog.Logger

	now      func() time.Time
	newToken func() (uuid.UUID, error)
}

// New creates the service. sender may be nil when no email credential is configured;
// every invitation then fails before anything is stored.
func New(store datastore.Store, sender mailer.Sender, conf Settings) *Service {
	return &Service{
		store:    store,
		sender:   sender,
		conf:     conf,
		logger:   slog.With("logger", "invite"),
		now:      time.Now,
		newToken: uuid.NewRandom,
	}
}

// Invite validates req, checks that the bearer of token may invite to the project,
// stores a pending invitation and mails it. It returns the invitation token.
func (s *Service) Invite(ctx context.Context, token string, req *model.InviteRequest) (string, error) {
	res, err := s.invite(ctx, token, req)
	countResult(err)

	return res, err
}

func (s *Service) invite(ctx context.Context, token string, req *model.InviteRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", BadRequest(err.Error())
	}

	projectID := strings.TrimSpace(req.ProjectID)
	email := strings.TrimSpace(req.Email)

	if token == "" {
		return "", Unauthorized(MsgMissingAuth, nil)
	}

	user, err := s.store.ResolveUser(ctx, token)
	if err != nil {
		s.logger.Debug("token rejected", slog.Any("error", err))
		return "", Unauthorized(MsgInvalidToken, err)
	}

	setCaller(ctx, user.ID)

	logger := s.logger.With(slog.String("user", user.ID), slog.String("project", projectID))

	var membership model.Membership

	err = s.store.QueryOne(ctx, token, model.MembershipsTable, datastore.Filter{
		"project_id": projectID,
		"user_id":    user.ID,
	}, &membership)

	if err != nil {
		if !datastore.IsNotFound(err) {
			logger.Error("membership lookup error", slog.Any("error", err))
		}

		return "", Forbidden(MsgAccessDenied, err)
	}

	if !membership.Role.CanInvite() {
		return "", Forbidden(MsgInsufficient, nil)
	}

	pending, err := s.store.Exists(ctx, token, model.InvitationsTable, datastore.Filter{
		"project_id": projectID,
		"email":      email,
		"status":     string(model.StatusPending),
	})

	switch {
	case err != nil:
		// the pending index still rejects a duplicate on insert
		logger.Warn("pending invitation lookup error", slog.Any("error", err))
	case pending:
		return "", Conflict(MsgAlreadySent, nil)
	}

	if s.sender == nil {
		logger.Error("email api key is not set")
		return "", Internal(MsgEmailNotConfigured, mailer.ErrNotConfigured)
	}

	id, err := s.newToken()
	if err != nil {
		return "", Internal(MsgInternal, err)
	}

	inv := model.NewPendingInvitation(projectID, email, req.Role, user.ID, id.String(), s.now())

	if err := s.store.Insert(ctx, token, model.InvitationsTable, inv); err != nil {
		if errors.Is(err, datastore.ErrConflict) {
			return "", Conflict(MsgAlreadySent, err)
		}

		logger.Error("insert error", slog.Any("error", err))

		return "", Internal(MsgCreateFailed, err)
	}

	logger.Info("invitation created", slog.String("role", req.Role.String()))

	s.notify(ctx, logger, inv)

	return inv.Token, nil
}

// notify mails the invitation. Failures are logged only.
func (s *Service) notify(ctx context.Context, logger *slog.Logger, inv *model.Invitation) {
	link, err := mailer.AcceptURL(s.conf.AcceptURL, inv.Token)
	if err != nil {
		logger.Error("bad accept url", slog.Any("error", err))
		emailsMetric.WithLabelValues("failed").Inc()

		return
	}

	msg, err := (&mailer.Invitation{
		From:      s.conf.From,
		To:        inv.Email,
		Subject:   s.conf.Subject,
		Role:      inv.Role.String(),
		AcceptURL: link,
	}).Message()

	if err != nil {
		logger.Error("can't build email", slog.Any("error", err))
		emailsMetric.WithLabelValues("failed").Inc()

		return
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		logger.Error("email send failed", slog.Any("error", err))
		emailsMetric.WithLabelValues("failed").Inc()

		return
	}

	emailsMetric.WithLabelValues("sent").Inc()
}

type callerKey struct{}

// WithCaller returns a context in which Invite records the id of the user its
// token resolves to. The id stays empty when authentication fails.
func WithCaller(ctx context.Context) (context.Context, *string) {
	id := new(string)

	return context.WithValue(ctx, callerKey{}, id), id
}

func setCaller(ctx context.Context, id string) {
	if p, ok := ctx.Value(callerKey{}).(*string); ok {
		*p = id
	}
}
