package actuator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// ChatClient is what the actuator needs from the chat platform.
type ChatClient interface {
	CreateInviteLink(ctx context.Context, groupID int64, expireAt time.Time) (string, error)
	SendMessage(ctx context.Context, userID int64, text string) error
	// RemoveMember performs a soft removal: the user loses membership but
	// may rejoin through a fresh invite later.
	RemoveMember(ctx context.Context, groupID, userID int64) error
}

// LinkCache remembers issued invite links per correlation key so the
// reuse policy can resend instead of reissuing.
type LinkCache interface {
	GetInvite(key string) (string, bool)
	SetInvite(key, link string, ttl time.Duration)
}

// Actuator grants and revokes chat-group membership. Grant issues a
// single-use, time-bounded invite link and delivers it privately; Revoke
// soft-removes. Repeated calls of either are safe: whether Grant reuses or
// reissues a still-valid link is configuration, not hidden behavior.
type Actuator struct {
	chat       ChatClient
	cache      LinkCache
	groupID    int64
	reuseLinks bool
	inviteTTL  time.Duration
}

// New wires an actuator. cache may be nil, which forces reissue on every
// Grant.
func New(chat ChatClient, cache LinkCache, groupID int64, reuseLinks bool, inviteTTL time.Duration) *Actuator {
	if inviteTTL <= 0 {
		inviteTTL = 24 * time.Hour
	}
	return &Actuator{
		chat:       chat,
		cache:      cache,
		groupID:    groupID,
		reuseLinks: reuseLinks,
		inviteTTL:  inviteTTL,
	}
}

func (a *Actuator) Grant(ctx context.Context, key string) error {
	userID, err := parseKey(key)
	if err != nil {
		return err
	}

	link := ""
	if a.reuseLinks && a.cache != nil {
		if cached, ok := a.cache.GetInvite(key); ok {
			link = cached
			log.Debugf("[Actuator] Reusing invite link for key %s", key)
		}
	}
	if link == "" {
		link, err = a.chat.CreateInviteLink(ctx, a.groupID, time.Now().Add(a.inviteTTL))
		if err != nil {
			return fmt.Errorf("actuator: create invite for key %s: %w", key, err)
		}
		if a.cache != nil {
			a.cache.SetInvite(key, link, a.inviteTTL)
		}
	}

	text := fmt.Sprintf("Join the group: %s (single use, do not share)", link)
	if err := a.chat.SendMessage(ctx, userID, text); err != nil {
		return fmt.Errorf("actuator: deliver invite to key %s: %w", key, err)
	}
	log.Infof("[Actuator] Sent invite link for key %s", key)
	return nil
}

func (a *Actuator) Revoke(ctx context.Context, key string) error {
	userID, err := parseKey(key)
	if err != nil {
		return err
	}
	if err := a.chat.RemoveMember(ctx, a.groupID, userID); err != nil {
		return fmt.Errorf("actuator: remove key %s from group: %w", key, err)
	}
	log.Infof("[Actuator] Removed key %s from group %d", key, a.groupID)
	return nil
}

func parseKey(key string) (int64, error) {
	userID, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("actuator: correlation key %q is not a chat user id: %w", key, err)
	}
	return userID, nil
}
