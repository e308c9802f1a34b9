package accounts

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"zamanyonet-admin/internal/resource"
)

const apiKeyPrefix = "zy_"

// APIKey is stored as a prefix and a sha256 hash. The plaintext exists only
// in the create response.
type APIKey struct {
	resource.Base

	Name       string     `json:"name" binding:"required"`
	Prefix     string     `json:"prefix"`
	KeyHash    string     `json:"keyHash"`
	Scopes     []string   `json:"scopes,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`

	Plain string `json:"-"`
}

type APIKeyView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	Scopes     []string   `json:"scopes,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type createdAPIKey struct {
	APIKeyView
	Key string `json:"key"`
}

func presentAPIKey(k *APIKey) APIKeyView {
	return APIKeyView{
		ID:         k.ID,
		Name:       k.Name,
		Prefix:     k.Prefix,
		Scopes:     k.Scopes,
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
		UpdatedAt:  k.UpdatedAt,
	}
}

func APIKeys() *resource.Definition[APIKey] {
	return &resource.Definition[APIKey]{
		Kind:       "api-keys",
		Table:      "api_keys",
		EntityType: "ApiKey",
		Label:      "API key",
		Prepare:    prepareAPIKey,
		Present:    func(k *APIKey) any { return presentAPIKey(k) },
		PresentCreated: func(k *APIKey) any {
			return createdAPIKey{APIKeyView: presentAPIKey(k), Key: k.Plain}
		},
		UniqueKey: func(k *APIKey) string { return k.Prefix },
	}
}

func prepareAPIKey(old, next *APIKey, now time.Time) error {
	next.Name = strings.TrimSpace(next.Name)
	if next.Name == "" {
		return resource.Invalid("name", "must not be blank")
	}
	if next.ExpiresAt != nil && !next.ExpiresAt.After(now) {
		return resource.Invalid("expiresAt", "must be in the future")
	}

	if old != nil {
		next.Prefix = old.Prefix
		next.KeyHash = old.KeyHash
		next.LastUsedAt = old.LastUsedAt
		next.Plain = ""
		return nil
	}

	plain := GenerateAPIKey()
	next.Plain = plain
	next.Prefix = plain[:len(apiKeyPrefix)+8]
	next.KeyHash = HashAPIKey(plain)
	next.LastUsedAt = nil
	return nil
}

// GenerateAPIKey returns zy_ followed by 64 hex characters drawn from two
// random UUIDs.
func GenerateAPIKey() string {
	a, b := uuid.New(), uuid.New()
	return apiKeyPrefix + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}

func HashAPIKey(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
