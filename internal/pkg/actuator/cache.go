package actuator

import (
	"time"

	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/cache"
)

const inviteKeyPrefix = "invite:"

// redisLinkCache stores issued invite links in the shared Redis cache.
type redisLinkCache struct{}

// NewRedisLinkCache returns a LinkCache backed by the shared cache client.
func NewRedisLinkCache() LinkCache {
	return redisLinkCache{}
}

func (redisLinkCache) GetInvite(key string) (string, bool) {
	link, err := cache.Get(inviteKeyPrefix + key)
	if err != nil || link == "" {
		return "", false
	}
	return link, true
}

func (redisLinkCache) SetInvite(key, link string, ttl time.Duration) {
	_ = cache.Set(inviteKeyPrefix+key, link, ttl)
}
