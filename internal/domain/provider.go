package domain

import (
	"fmt"
	"strings"
)

// Provider identifies the cloud vendor a billing export came from.
type Provider string

const (
	ProviderAWS       Provider = "aws"
	ProviderAzure     Provider = "azure"
	ProviderGCP       Provider = "gcp"
	ProviderRackspace Provider = "rackspace"

	// ProviderUnified is the virtual provider that merges every real provider.
	ProviderUnified Provider = "unified"
)

// Providers lists the real providers in detection order.
var Providers = []Provider{ProviderAWS, ProviderAzure, ProviderGCP, ProviderRackspace}

// ParseProvider resolves a provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderAWS, ProviderAzure, ProviderGCP, ProviderRackspace, ProviderUnified:
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// IsReal reports whether p is a concrete billing source (not the unified view).
func (p Provider) IsReal() bool {
	switch p {
	case ProviderAWS, ProviderAzure, ProviderGCP, ProviderRackspace:
		return true
	}
	return false
}

// Label returns the display name used in reports and messages.
func (p Provider) Label() string {
	switch p {
	case ProviderAWS:
		return "AWS"
	case ProviderAzure:
		return "Azure"
	case ProviderGCP:
		return "GCP"
	case ProviderRackspace:
		return "Rackspace"
	case ProviderUnified:
		return "Unified"
	}
	return string(p)
}
