package auth

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
)

type TokenValidator interface {
	Validate(token string) (int64, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// Resolver turns a handshake credential into an Identity. Any failure yields anonymous.
type Resolver struct {
	tokens    TokenValidator
	users     UserLookup
	mediaBase string
	log       *zap.SugaredLogger
}

func NewResolver(tokens TokenValidator, users UserLookup, mediaBaseURL string, log *zap.SugaredLogger) *Resolver {
	return &Resolver{tokens: tokens, users: users, mediaBase: mediaBaseURL, log: log}
}

// Resolve never fails: ok is false for a missing, malformed, expired or badly signed token
// and for a token naming a user that does not exist.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*domain.Identity, bool) {
	if credential == "" {
		return nil, false
	}
	uid, err := r.tokens.Validate(credential)
	if err != nil {
		r.log.Debugw("token rejected", "error", err)
		return nil, false
	}
	u, err := r.users.GetUser(ctx, uid)
	if err != nil {
		r.log.Debugw("token user lookup failed", "user_id", uid, "error", err)
		return nil, false
	}
	return r.IdentityOf(u), true
}

// IdentityOf resolves presentation data for a stored user.
func (r *Resolver) IdentityOf(u *domain.User) *domain.Identity {
	return &domain.Identity{
		ID:          u.ID,
		DisplayName: u.DisplayName(),
		AvatarURL:   r.AvatarURL(u.AvatarPath),
	}
}

// AvatarURL makes a stored media path absolute against the media base url.
func (r *Resolver) AvatarURL(path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if r.mediaBase == "" {
		return path
	}
	return strings.TrimRight(r.mediaBase, "/") + "/" + strings.TrimLeft(path, "/")
}
