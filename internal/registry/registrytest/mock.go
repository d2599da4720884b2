// Package registrytest provides a testify mock of registry.Remote.
package registrytest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/thoreinstein/marketsync/internal/inventory"
	"github.com/thoreinstein/marketsync/internal/registry"
)

// MockRemote is a registry.Remote whose calls are scripted with testify.
type MockRemote struct {
	mock.Mock
}

var _ registry.Remote = (*MockRemote)(nil)

// ListEntries implements registry.Remote.
func (m *MockRemote) ListEntries(ctx context.Context) (*registry.Listing, error) {
	args := m.Called(ctx)
	listing, _ := args.Get(0).(*registry.Listing)
	return listing, args.Error(1)
}

// Upsert implements registry.Remote. Expectations receive the entries as a
// single []inventory.Entry argument.
func (m *MockRemote) Upsert(ctx context.Context, entries ...inventory.Entry) ([]registry.UpsertResult, error) {
	args := m.Called(ctx, entries)
	results, _ := args.Get(0).([]registry.UpsertResult)
	return results, args.Error(1)
}

// Created returns an UpsertResult per entry with the created outcome.
func Created(entries ...inventory.Entry) []registry.UpsertResult {
	out := make([]registry.UpsertResult, len(entries))
	for i, e := range entries {
		out[i] = registry.UpsertResult{Entry: e, Outcome: registry.OutcomeCreated}
	}
	return out
}

// Listed builds a listing of remote entries for the given triples.
func Listed(triples ...inventory.Triple) *registry.Listing {
	l := &registry.Listing{}
	for _, t := range triples {
		l.Entries = append(l.Entries, registry.Entry{Key: registry.RemoteKey(t), Source: registry.SourceRemote, Triple: t})
	}
	return l
}
