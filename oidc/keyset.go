package oidc

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const maxKeySetBytes = 1 << 20

// KeyResolver resolves a key id to a verification key
type KeyResolver interface {
	Resolve(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// KeySetConfig holds configuration for KeySet
type KeySetConfig struct {
	URL         string
	HTTPTimeout time.Duration
	HTTPClient  *http.Client
}

// KeySet caches the issuer's public signing keys by key id.
// Keys are fetched lazily and refreshed whenever an unknown key id is requested.
type KeySet struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger

	mu         sync.RWMutex
	keys       map[string]crypto.PublicKey
	generation uint64

	group   singleflight.Group
	fetches atomic.Int64
}

// NewKeySet creates a new key set for the given JWKS endpoint
func NewKeySet(cfg KeySetConfig, logger *zap.Logger) *KeySet {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &KeySet{
		url:        cfg.URL,
		timeout:    cfg.HTTPTimeout,
		httpClient: client,
		logger:     logger,
		keys:       make(map[string]crypto.PublicKey),
	}
}

// Resolve returns the key for kid, refreshing the set once if it is unknown
func (s *KeySet) Resolve(ctx context.Context, kid string) (crypto.PublicKey, error) {
	key, seen, ok := s.lookup(kid)
	if ok {
		return key, nil
	}

	if err := s.refresh(ctx, seen); err != nil {
		return nil, err
	}

	key, _, ok = s.lookup(kid)
	if !ok {
		return nil, fmt.Errorf("kid %q: %w", kid, ErrKeyNotFound)
	}
	return key, nil
}

// Refresh forces a download of the key set
func (s *KeySet) Refresh(ctx context.Context) error {
	s.mu.RLock()
	seen := s.generation
	s.mu.RUnlock()

	return s.refresh(ctx, seen)
}

// FetchCount returns how many downloads have been attempted
func (s *KeySet) FetchCount() int64 {
	return s.fetches.Load()
}

// Len returns the number of cached keys
func (s *KeySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

func (s *KeySet) lookup(kid string) (crypto.PublicKey, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[kid]
	return key, s.generation, ok
}

// refresh downloads the key set unless it has already been replaced since
// generation seen. Callers that observed the same generation share one download.
func (s *KeySet) refresh(ctx context.Context, seen uint64) error {
	ch := s.group.DoChan(strconv.FormatUint(seen, 10), func() (interface{}, error) {
		s.mu.RLock()
		current := s.generation
		s.mu.RUnlock()
		if current != seen {
			return nil, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return nil, s.fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *KeySet) fetch(ctx context.Context) error {
	s.fetches.Add(1)

	keys, err := s.download(ctx)
	if err != nil {
		s.logger.Warn("key set refresh failed",
			zap.String("url", s.url),
			zap.Error(err))
		return &KeyFetchError{URL: s.url, Err: err}
	}

	s.mu.Lock()
	s.keys = keys
	s.generation++
	s.mu.Unlock()

	s.logger.Info("key set refreshed",
		zap.String("url", s.url),
		zap.Int("keys", len(keys)))
	return nil
}

func (s *KeySet) download(ctx context.Context) (map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key set: %w", err)
	}

	keys := make(map[string]crypto.PublicKey, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok || key.KeyID() == "" {
			continue
		}
		if use := key.KeyUsage(); use != "" && use != string(jwk.ForSignature) {
			continue
		}
		pub, err := publicKeyOf(key)
		if err != nil {
			s.logger.Debug("skipping key",
				zap.String("kid", key.KeyID()),
				zap.Error(err))
			continue
		}
		keys[key.KeyID()] = pub
	}

	if len(keys) == 0 {
		return nil, errors.New("key set has no usable signing keys")
	}
	return keys, nil
}

func publicKeyOf(key jwk.Key) (crypto.PublicKey, error) {
	pubKey, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, err
	}

	var raw interface{}
	if err := pubKey.Raw(&raw); err != nil {
		return nil, err
	}

	switch k := raw.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return k, nil
	default:
		return nil, fmt.Errorf("unsupported key type %T", raw)
	}
}
