package idtoken

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/moneybookapp/moneybook/internal/apperrors"
)

const defaultFetchTimeout = 5 * time.Second

// KeySource resolves a provider public signing key by its key id
type KeySource interface {
	// Key returns the RSA public key for the given key id
	// If the key set can't be fetched must return apperrors.ErrKeySourceUnavailable
	// If no key matches must return apperrors.ErrSigningKeyNotFound
	Key(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

// jwk is a single entry of a JSON Web Key Set document
type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// RemoteKeySource fetches the provider JWKS endpoint and caches parsed RSA
// keys by kid for the process lifetime. The set is refetched only when a
// requested kid is not in the cache, so provider key rotation is picked up
// without a restart.
type RemoteKeySource struct {
	url    string
	client *http.Client

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

func NewRemoteKeySource(jwksURL string, client *http.Client) *RemoteKeySource {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	return &RemoteKeySource{
		url:    jwksURL,
		client: client,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

func (s *RemoteKeySource) Key(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	key, ok := s.keys[keyID]
	s.mu.RUnlock()
	if ok {
		return key, nil
	}

	// Cache miss: refetch the whole set. Concurrent misses may fetch twice,
	// that's fine. Cached kids are still served while the fetch is in flight.
	fetched, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrKeySourceUnavailable, err)
	}

	s.mu.Lock()
	s.keys = fetched
	key, ok = s.keys[keyID]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: kid=%q", apperrors.ErrSigningKeyNotFound, keyID)
	}

	return key, nil
}

func (s *RemoteKeySource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error while building jwks request. Err: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while fetching jwks. Err: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected jwks response status: %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("error while decoding jwks document. Err: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}

		key, err := k.rsaPublicKey()
		if err != nil {
			return nil, fmt.Errorf("error while parsing jwk kid=%q. Err: %w", k.Kid, err)
		}
		keys[k.Kid] = key
	}

	return keys, nil
}

// rsaPublicKey decodes the base64url modulus and exponent of an RSA jwk
func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("bad modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("bad exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, fmt.Errorf("exponent out of range")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}
