package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"recruithub/internal/common/logger"
	"recruithub/internal/models"
)

// sessionRecord is the JSON document stored under session:<token>.
type sessionRecord struct {
	Email  string `json:"email"`
	UserID string `json:"userId"`
}

// SessionResolver turns a bearer token into a Principal using the session
// store and the role policy.
type SessionResolver struct {
	redis  *redis.Client
	policy *Policy
	prefix string
	logger logger.Logger
}

func NewSessionResolver(client *redis.Client, policy *Policy, prefix string, log logger.Logger) *SessionResolver {
	if prefix == "" {
		prefix = "session:"
	}
	return &SessionResolver{
		redis:  client,
		policy: policy,
		prefix: prefix,
		logger: log,
	}
}

// Resolve returns the principal for token, or nil when no session exists.
// A nil principal is not an error: anonymous callers are legal for the
// handshake register/receive endpoints.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*models.Principal, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := r.redis.Get(ctx, r.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		r.logger.Warn("malformed session record", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}
	if rec.Email == "" {
		return nil, nil
	}

	return &models.Principal{
		Email:  rec.Email,
		UserID: rec.UserID,
		Roles:  r.policy.RolesFor(rec.Email),
	}, nil
}
