package tags

import (
	"testing"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ServiceEntries(t *testing.T) {
	s := NewStore()

	s.SetService(domain.ProviderAWS, "AmazonEC2", domain.TagEntry{ProductApp: " Checkout ", Tags: []string{"prod", "PROD"}})
	got, ok := s.Service(domain.ProviderAWS, "AmazonEC2")
	require.True(t, ok)
	assert.Equal(t, domain.TagEntry{ProductApp: "Checkout", Tags: []string{"prod"}}, got)

	_, ok = s.Service(domain.ProviderAzure, "AmazonEC2")
	assert.False(t, ok)

	s.SetService(domain.ProviderAWS, "AmazonEC2", domain.TagEntry{Tags: []string{" "}})
	_, ok = s.Service(domain.ProviderAWS, "AmazonEC2")
	assert.False(t, ok, "empty entry deletes the key")

	services, _ := s.Snapshot()
	assert.Empty(t, services)
}

func TestStore_DetailEntries(t *testing.T) {
	s := NewStore()

	s.SetDetail(domain.ProviderGCP, "Compute Engine", "N1 Core", domain.TagEntry{Tags: []string{"batch", "ml"}})
	got, ok := s.Detail(domain.ProviderGCP, "Compute Engine", "N1 Core")
	require.True(t, ok)
	assert.Equal(t, []string{"batch", "ml"}, got.Tags)

	s.SetDetail(domain.ProviderGCP, "Compute Engine", "N1 Core", domain.TagEntry{})
	_, ok = s.Detail(domain.ProviderGCP, "Compute Engine", "N1 Core")
	assert.False(t, ok)

	_, details := s.Snapshot()
	assert.Empty(t, details)
}

func TestStore_ApplyAndClearSelection(t *testing.T) {
	s := NewStore()
	sel := NewSelection(
		Key{Service: "AmazonEC2"},
		Key{Service: "AmazonS3", Detail: "TimedStorage-ByteHrs"},
		Key{Service: "AmazonS3", Detail: "Requests-Tier1"},
	)

	n := s.ApplySelection(domain.ProviderAWS, sel, domain.TagEntry{ProductApp: "Search", Tags: []string{"team-b"}})
	assert.Equal(t, 3, n)

	e, ok := s.Service(domain.ProviderAWS, "AmazonEC2")
	require.True(t, ok)
	assert.Equal(t, "Search", e.ProductApp)
	_, ok = s.Detail(domain.ProviderAWS, "AmazonS3", "Requests-Tier1")
	assert.True(t, ok)
	_, ok = s.Service(domain.ProviderAWS, "AmazonS3")
	assert.False(t, ok)

	assert.Equal(t, []string{"Search"}, s.ProductApps(domain.ProviderAWS))
	assert.Equal(t, []string{"Search"}, s.ProductApps(domain.ProviderUnified))
	assert.Empty(t, s.ProductApps(domain.ProviderGCP))

	sel.Remove(Key{Service: "AmazonEC2"})
	s.ClearSelection(domain.ProviderAWS, sel)

	_, ok = s.Service(domain.ProviderAWS, "AmazonEC2")
	assert.True(t, ok)
	_, ok = s.Detail(domain.ProviderAWS, "AmazonS3", "TimedStorage-ByteHrs")
	assert.False(t, ok)
}

func TestSelection(t *testing.T) {
	sel := NewSelection()
	k := Key{Service: "b", Detail: "x"}

	sel.Add(k)
	assert.True(t, sel.Has(k))
	sel.Remove(k)
	assert.False(t, sel.Has(k))
	assert.Equal(t, 0, sel.Len())

	sel.Add(Key{Service: "b"})
	sel.Add(Key{Service: "a", Detail: "z"})
	assert.Equal(t, []Key{{Service: "a", Detail: "z"}, {Service: "b"}}, sel.Keys())
}

func TestStore_SnapshotRestore(t *testing.T) {
	s := NewStore()
	s.SetService(domain.ProviderAWS, "AmazonEC2", domain.TagEntry{ProductApp: "Checkout"})
	s.SetDetail(domain.ProviderAWS, "AmazonS3", "Storage", domain.TagEntry{Tags: []string{"a"}})

	services, details := s.Snapshot()
	services[domain.ProviderAWS]["AmazonEC2"] = domain.TagEntry{ProductApp: "Mutated"}

	e, _ := s.Service(domain.ProviderAWS, "AmazonEC2")
	assert.Equal(t, "Checkout", e.ProductApp, "snapshot is a copy")

	details[domain.ProviderAWS]["AmazonS3"]["Empty"] = domain.TagEntry{}
	restored := NewStore()
	restored.Restore(services, details)

	e, ok := restored.Service(domain.ProviderAWS, "AmazonEC2")
	require.True(t, ok)
	assert.Equal(t, "Mutated", e.ProductApp)
	_, ok = restored.Detail(domain.ProviderAWS, "AmazonS3", "Empty")
	assert.False(t, ok)

	restored.ClearProvider(domain.ProviderAWS)
	_, ok = restored.Detail(domain.ProviderAWS, "AmazonS3", "Storage")
	assert.False(t, ok)
}
