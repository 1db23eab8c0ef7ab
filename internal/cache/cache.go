package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from a namespace and the parts identifying an entry
func CacheKey(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte("afep:v1:" + namespace + "\x00" + strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:])
}
