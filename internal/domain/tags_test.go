package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagEntry_Normalize(t *testing.T) {
	tests := []struct {
		name  string
		entry TagEntry
		want  TagEntry
	}{
		{
			name:  "dedupes case-insensitively keeping first spelling",
			entry: TagEntry{ProductApp: " Checkout ", Tags: []string{"Prod", "prod", " team-a ", "", "PROD"}},
			want:  TagEntry{ProductApp: "Checkout", Tags: []string{"Prod", "team-a"}},
		},
		{
			name:  "blank entry",
			entry: TagEntry{Tags: []string{" ", ""}},
			want:  TagEntry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Normalize())
		})
	}
}

func TestTagEntry_IsEmpty(t *testing.T) {
	assert.True(t, TagEntry{}.IsEmpty())
	assert.True(t, TagEntry{ProductApp: "  ", Tags: []string{""}}.IsEmpty())
	assert.False(t, TagEntry{Tags: []string{"x"}}.IsEmpty())
	assert.False(t, TagEntry{ProductApp: "Search"}.IsEmpty())
}

func TestTagEntry_MatchesProductApp(t *testing.T) {
	e := TagEntry{ProductApp: "Checkout"}
	assert.True(t, e.MatchesProductApp("checkout"))
	assert.False(t, e.MatchesProductApp("Search"))
	assert.False(t, TagEntry{}.MatchesProductApp(""))
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" AWS ")
	assert.NoError(t, err)
	assert.Equal(t, ProviderAWS, p)
	assert.True(t, p.IsReal())

	p, err = ParseProvider("unified")
	assert.NoError(t, err)
	assert.False(t, p.IsReal())

	_, err = ParseProvider("oracle")
	assert.Error(t, err)
}
