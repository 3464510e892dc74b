package mistral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"curiosity/internal/domain"
)

// StaticKey is an API key read once from the environment.
type StaticKey string

func (k StaticKey) APIKey(_ context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" {
		return "", fmt.Errorf("mistral: %w", domain.ErrMissingCredential)
	}
	return key, nil
}

// tokenPayload is the JSON shape accepted for keys stored in SSM.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ParamStoreKey reads the API key from a parameter store on first use. A
// successful lookup is reused for the lifetime of the process; a failed one
// is retried on the next call.
type ParamStoreKey struct {
	getter Getter
	name   string

	mu  sync.Mutex
	key string
}

func NewParamStoreKey(getter Getter, name string) (*ParamStoreKey, error) {
	if getter == nil {
		return nil, errors.New("mistral: paramstore getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("mistral: key parameter name must not be empty")
	}
	return &ParamStoreKey{getter: getter, name: name}, nil
}

func (p *ParamStoreKey) APIKey(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != "" {
		return p.key, nil
	}

	raw, err := p.getter.GetParameter(ctx, p.name)
	if err != nil {
		return "", fmt.Errorf("mistral: fetch key from paramstore: %w", err)
	}
	key, err := parseKeyValue(raw)
	if err != nil {
		return "", err
	}
	p.key = key
	return key, nil
}

// parseKeyValue accepts either the bare key or {"token": "<key>"}.
func parseKeyValue(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("mistral: unmarshal paramstore key value as JSON: %w", err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", fmt.Errorf("mistral: paramstore key is empty: %w", domain.ErrMissingCredential)
	}
	return raw, nil
}
