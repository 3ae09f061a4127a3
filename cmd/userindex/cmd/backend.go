package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/Aman-CERP/userindex/internal/config"
	"github.com/Aman-CERP/userindex/internal/daemon"
	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/store"
)

// backend answers the read commands. *daemon.Client satisfies it; when no
// daemon is running localBackend serves from the configured store.
type backend interface {
	Search(ctx context.Context, query string, limit int) (*daemon.SearchResult, error)
	GetUser(ctx context.Context, id int64) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	Status(ctx context.Context) (*daemon.StatusResult, error)
}

// openBackend prefers the running daemon unless local is set.
func openBackend(ctx context.Context, cfg *config.Config, local bool) (backend, func(), error) {
	if !local {
		client := daemonClient(cfg)
		if client.IsRunning() {
			return client, func() {}, nil
		}
		slog.Debug("daemon_not_running", slog.String("socket", cfg.Server.SocketPath))
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	lb := &localBackend{svc: daemon.NewService(a.engine, a.runner)}
	return lb, func() { _ = a.Close() }, nil
}

// localBackend runs requests through the same Service the daemon uses,
// with the same parameter validation.
type localBackend struct {
	svc *daemon.Service
}

func (b *localBackend) Search(ctx context.Context, query string, limit int) (*daemon.SearchResult, error) {
	params := daemon.SearchParams{Query: query, Limit: limit}
	if err := params.Validate(); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeQueryEmpty, err.Error(), nil)
	}
	return b.svc.Search(ctx, params)
}

func (b *localBackend) GetUser(ctx context.Context, id int64) (*store.User, error) {
	params := daemon.GetUserParams{ID: id}
	if err := params.Validate(); err != nil {
		return nil, apperrors.ValidationError(err.Error(), nil)
	}
	return b.svc.GetUser(ctx, params)
}

func (b *localBackend) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	params := daemon.GetUserByEmailParams{Email: email}
	if err := params.Validate(); err != nil {
		return nil, apperrors.ValidationError(err.Error(), nil)
	}
	return b.svc.GetUserByEmail(ctx, params)
}

func (b *localBackend) Status(context.Context) (*daemon.StatusResult, error) {
	status := b.svc.Status()
	status.PID = os.Getpid()
	return &status, nil
}
