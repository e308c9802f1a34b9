package accounts

import (
	"net/url"
	"strings"
	"time"

	"zamanyonet-admin/internal/resource"
)

type SSOProvider string

const (
	SSOGoogle      SSOProvider = "GOOGLE"
	SSOAzureAD     SSOProvider = "AZURE_AD"
	SSOOkta        SSOProvider = "OKTA"
	SSOGenericOIDC SSOProvider = "GENERIC_OIDC"
)

// SSOConfig stores OAuth/OIDC client settings. Login through these providers
// is handled outside this service.
type SSOConfig struct {
	resource.Base

	Provider       SSOProvider `json:"provider" binding:"required,oneof=GOOGLE AZURE_AD OKTA GENERIC_OIDC"`
	ClientID       string      `json:"clientId" binding:"required"`
	ClientSecret   string      `json:"clientSecret"`
	IssuerURL      string      `json:"issuerUrl" binding:"required"`
	AllowedDomains []string    `json:"allowedDomains,omitempty"`
	Enabled        bool        `json:"enabled"`
}

func presentSSO(c *SSOConfig) any {
	out := *c
	out.ClientSecret = resource.MaskSecret(c.ClientSecret)
	return out
}

func SSOConfigs() *resource.Definition[SSOConfig] {
	return &resource.Definition[SSOConfig]{
		Kind:       "sso-configs",
		Table:      "sso_configs",
		EntityType: "SsoConfig",
		Label:      "SSO config",
		Filters:    map[string]string{"provider": "provider", "enabled": "enabled"},
		Prepare:    prepareSSO,
		Present:    presentSSO,
	}
}

func prepareSSO(old, next *SSOConfig, _ time.Time) error {
	if old != nil {
		next.ClientSecret = resource.KeepSecret(next.ClientSecret, old.ClientSecret)
	}
	if next.ClientSecret == "" {
		return resource.Invalid("clientSecret", "is required")
	}

	u, err := url.Parse(strings.TrimSpace(next.IssuerURL))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return resource.Invalid("issuerUrl", "must be an https URL")
	}
	next.IssuerURL = u.String()

	domains := next.AllowedDomains[:0]
	for _, d := range next.AllowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if strings.ContainsAny(d, "@/ ") || !strings.Contains(d, ".") {
			return resource.Invalid("allowedDomains", "%q is not a domain", d)
		}
		domains = append(domains, d)
	}
	next.AllowedDomains = domains
	return nil
}
