package registry

import (
	"context"
	"log/slog"
	"strings"

	"github.com/thoreinstein/marketsync/internal/config"
	"github.com/thoreinstein/marketsync/internal/inventory"
)

// Listing is the content of a remote registry.
type Listing struct {
	Entries   []Entry
	Anomalies []Anomaly
}

// Outcome says what an upsert did to a record.
type Outcome string

// Upsert outcomes.
const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)

// UpsertResult pairs an entry with what happened to it.
type UpsertResult struct {
	Entry   inventory.Entry
	Outcome Outcome
}

// Remote is a registry reachable over the network. Implementations mark
// every transport, auth and server failure with errors.ErrRemoteUnavailable.
// A triple absent from ListEntries is simply not found; that is not an error.
type Remote interface {
	// ListEntries returns every triple the registry knows.
	ListEntries(ctx context.Context) (*Listing, error)
	// Upsert creates or updates one record per entry. It is idempotent.
	Upsert(ctx context.Context, entries ...inventory.Entry) ([]UpsertResult, error)
}

// Skip reasons reported when no remote can be opened.
const (
	SkipDisabled      = "disabled"
	SkipNoCredentials = "no credentials"
	SkipNoBase        = "no base configured"
)

// OpenRemote builds the Airtable registry described by cfg. When the remote
// cannot be used it returns nil and the reason.
func OpenRemote(cfg config.RemoteConfig, logger *slog.Logger) (Remote, string) {
	switch {
	case !cfg.Enabled:
		return nil, SkipDisabled
	case strings.TrimSpace(cfg.Token) == "":
		return nil, SkipNoCredentials
	case strings.TrimSpace(cfg.BaseID) == "":
		return nil, SkipNoBase
	}
	return NewAirtable(AirtableConfig{
		BaseURL: cfg.BaseURL,
		BaseID:  cfg.BaseID,
		Table:   cfg.Table,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
	}, WithAirtableLogger(logger)), ""
}
