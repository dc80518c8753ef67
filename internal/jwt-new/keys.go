package security

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"golang.org/x/sync/singleflight"
)

var ErrKeyNotFound = errors.New("signing key not found")

type KeyCacheConfig struct {
	URL string
	// TTL: сколько живёт загруженный набор ключей.
	TTL time.Duration
	// MinRefreshInterval ограничивает частоту запросов к JWKS при неизвестных kid.
	MinRefreshInterval time.Duration
	HTTPClient         *http.Client
	Now                func() time.Time
}

// KeyCache хранит публичные ключи пула из JWKS в хранилище jwkset.
// Get отдаёт свежий ключ из кэша; при промахе или устаревании перечитывает JWKS,
// но не чаще MinRefreshInterval. Пока перечитывать рано или JWKS недоступен,
// отдаётся последний известный ключ.
type KeyCache struct {
	cfg   KeyCacheConfig
	group singleflight.Group

	mu          sync.Mutex
	keys        jwkset.Storage
	fetchedAt   time.Time
	lastAttempt time.Time
}

func NewKeyCache(cfg KeyCacheConfig) *KeyCache {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &KeyCache{cfg: cfg}
}

func (c *KeyCache) Get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	keys, fresh := c.snapshot()

	key, err := readKey(ctx, keys, kid)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}
	known := err == nil
	if known && fresh {
		return key, nil
	}
	if !c.takeAttempt() {
		if known {
			return key, nil
		}
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	// запрос к JWKS идёт без c.mu: попадания в кэш его не ждут
	refreshed, err := c.refresh(ctx)
	if err != nil {
		// JWKS недоступен: устаревший ключ лучше отказа
		if known {
			return key, nil
		}
		return nil, err
	}
	return readKey(ctx, refreshed, kid)
}

// Invalidate сбрасывает ключи; следующий Get сходит в JWKS без ожидания интервала.
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
	c.fetchedAt = time.Time{}
	c.lastAttempt = time.Time{}
}

func (c *KeyCache) snapshot() (jwkset.Storage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys, c.keys != nil && c.cfg.Now().Sub(c.fetchedAt) < c.cfg.TTL
}

// takeAttempt занимает попытку обновления, если с прошлой прошло не меньше MinRefreshInterval.
func (c *KeyCache) takeAttempt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	if !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.cfg.MinRefreshInterval {
		return false
	}
	c.lastAttempt = now
	return true
}

// refresh загружает JWKS; одновременные промахи делят один запрос.
func (c *KeyCache) refresh(ctx context.Context) (jwkset.Storage, error) {
	const op = "security.KeyCache.refresh"

	v, err, _ := c.group.Do("jwks", func() (any, error) {
		u, err := url.Parse(c.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to fetch jwks: %w", op, err)
		}
		keys, err := jwkset.NewStorageFromHTTP(u, jwkset.HTTPClientStorageOptions{
			Client: c.cfg.HTTPClient,
			Ctx:    context.WithoutCancel(ctx),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: failed to fetch jwks: %w", op, err)
		}

		c.mu.Lock()
		c.keys = keys
		c.fetchedAt = c.cfg.Now()
		c.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(jwkset.Storage), nil
}

func readKey(ctx context.Context, keys jwkset.Storage, kid string) (*rsa.PublicKey, error) {
	if keys == nil {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}
	jwk, err := keys.KeyRead(ctx, kid)
	if err != nil {
		if errors.Is(err, jwkset.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
		}
		return nil, err
	}
	pub, ok := jwk.Key().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q is not an RSA public key", ErrKeyNotFound, kid)
	}
	return pub, nil
}
