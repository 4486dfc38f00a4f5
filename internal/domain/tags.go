package domain

import (
	"strings"
)

// TagEntry is a user assignment of a product/app and free-form tags.
type TagEntry struct {
	ProductApp string   `json:"product_app,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Normalize trims the product/app, drops blank tags and removes tags that
// repeat case-insensitively, keeping the first spelling.
func (e TagEntry) Normalize() TagEntry {
	out := TagEntry{ProductApp: strings.TrimSpace(e.ProductApp)}
	seen := make(map[string]bool, len(e.Tags))
	for _, t := range e.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Tags = append(out.Tags, t)
	}
	return out
}

// IsEmpty reports whether the entry carries no assignment at all.
func (e TagEntry) IsEmpty() bool {
	return strings.TrimSpace(e.ProductApp) == "" && len(e.Normalize().Tags) == 0
}

// HasProductApp reports whether the entry assigns a product/app.
func (e TagEntry) HasProductApp() bool {
	return strings.TrimSpace(e.ProductApp) != ""
}

// MatchesProductApp compares the assigned product/app case-insensitively.
func (e TagEntry) MatchesProductApp(productApp string) bool {
	return e.HasProductApp() && strings.EqualFold(strings.TrimSpace(e.ProductApp), strings.TrimSpace(productApp))
}
