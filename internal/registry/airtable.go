package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/inventory"
	"github.com/thoreinstein/marketsync/internal/logging"
)

// Airtable field names.
const (
	FieldPlugin      = "Plugin"
	FieldType        = "Type"
	FieldName        = "Name"
	FieldDescription = "Description"
)

const (
	airtablePageSize  = 100
	airtableBatchSize = 10
	maxErrorBody      = 4096
)

// AirtableConfig locates the table holding component records.
type AirtableConfig struct {
	BaseURL string
	BaseID  string
	Table   string
	Token   string
	Timeout time.Duration
}

// Airtable is a Remote backed by the Airtable REST API.
type Airtable struct {
	cfg    AirtableConfig
	client *http.Client
	logger *slog.Logger
}

// AirtableOption configures an Airtable client.
type AirtableOption func(*Airtable)

// WithHTTPClient replaces the HTTP client. Its Timeout is left as given.
func WithHTTPClient(c *http.Client) AirtableOption {
	return func(a *Airtable) {
		a.client = c
	}
}

// WithAirtableLogger sets the client's logger.
func WithAirtableLogger(logger *slog.Logger) AirtableOption {
	return func(a *Airtable) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAirtable creates a client. The configured timeout bounds every request.
func NewAirtable(cfg AirtableConfig, opts ...AirtableOption) *Airtable {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	a := &Airtable{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewDiscard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type airtableFields struct {
	Plugin      string `json:"Plugin"`
	Type        string `json:"Type"`
	Name        string `json:"Name"`
	Description string `json:"Description,omitempty"`
}

type airtableRecord struct {
	ID     string         `json:"id,omitempty"`
	Fields airtableFields `json:"fields"`
}

type listResponse struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset"`
}

type upsertRequest struct {
	PerformUpsert struct {
		FieldsToMergeOn []string `json:"fieldsToMergeOn"`
	} `json:"performUpsert"`
	Records  []airtableRecord `json:"records"`
	Typecast bool             `json:"typecast"`
}

type upsertResponse struct {
	Records        []airtableRecord `json:"records"`
	CreatedRecords []string         `json:"createdRecords"`
	UpdatedRecords []string         `json:"updatedRecords"`
}

type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

// ListEntries pages through the table. Records whose Type is not a known
// kind, or that lack a plugin or name, are returned as anomalies.
func (a *Airtable) ListEntries(ctx context.Context) (*Listing, error) {
	listing := &Listing{}
	offset := ""
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(airtablePageSize))
		if offset != "" {
			q.Set("offset", offset)
		}

		var resp listResponse
		if err := a.do(ctx, http.MethodGet, a.tableURL()+"?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		a.logger.Debug("listed remote records", "page", page, "records", len(resp.Records))

		for _, rec := range resp.Records {
			entry, anomaly, ok := recordEntry(rec)
			if !ok {
				listing.Anomalies = append(listing.Anomalies, anomaly)
				continue
			}
			listing.Entries = append(listing.Entries, entry)
		}

		if resp.Offset == "" {
			return listing, nil
		}
		offset = resp.Offset
	}
}

func recordEntry(rec airtableRecord) (Entry, Anomaly, bool) {
	f := rec.Fields
	value := rec.ID
	if value == "" {
		value = f.Type + ":" + f.Plugin + ":" + f.Name
	}
	kind, err := inventory.ParseKind(f.Type)
	if err != nil {
		return Entry{}, Anomaly{Source: SourceRemote, Value: value, Reason: "unknown type " + strings.TrimSpace(f.Type)}, false
	}
	plugin, name := strings.TrimSpace(f.Plugin), strings.TrimSpace(f.Name)
	if plugin == "" || name == "" {
		return Entry{}, Anomaly{Source: SourceRemote, Value: value, Reason: "empty plugin or name"}, false
	}
	t := inventory.Triple{Plugin: plugin, Kind: kind, Name: name}
	return Entry{Key: RemoteKey(t), Source: SourceRemote, Triple: t}, Anomaly{}, true
}

// Upsert merges records on (Plugin, Type, Name), ten per request. On error
// the results for batches already sent are returned with it.
func (a *Airtable) Upsert(ctx context.Context, entries ...inventory.Entry) ([]UpsertResult, error) {
	results := make([]UpsertResult, 0, len(entries))
	for batch := range slices.Chunk(entries, airtableBatchSize) {
		var req upsertRequest
		req.PerformUpsert.FieldsToMergeOn = []string{FieldPlugin, FieldType, FieldName}
		req.Typecast = true
		for _, e := range batch {
			req.Records = append(req.Records, airtableRecord{Fields: airtableFields{
				Plugin:      e.Plugin,
				Type:        string(e.Kind),
				Name:        e.Name,
				Description: e.Description,
			}})
		}

		var resp upsertResponse
		if err := a.do(ctx, http.MethodPatch, a.tableURL(), req, &resp); err != nil {
			return results, err
		}
		if len(resp.Records) != len(batch) {
			return results, unavailable(errors.Newf("upsert returned %d records for %d entries", len(resp.Records), len(batch)))
		}

		for i, rec := range resp.Records {
			outcome := OutcomeUpdated
			if slices.Contains(resp.CreatedRecords, rec.ID) {
				outcome = OutcomeCreated
			}
			results = append(results, UpsertResult{Entry: batch[i], Outcome: outcome})
		}
		a.logger.Debug("upserted remote records",
			"created", len(resp.CreatedRecords),
			"updated", len(resp.UpdatedRecords))
	}
	return results, nil
}

func (a *Airtable) tableURL() string {
	return a.cfg.BaseURL + "/" + url.PathEscape(a.cfg.BaseID) + "/" + url.PathEscape(a.cfg.Table)
}

// do sends one request. The body is JSON-encoded when non-nil and the
// response decoded into out. Every failure is marked ErrRemoteUnavailable.
func (a *Airtable) do(ctx context.Context, method, rawURL string, body, out any) error {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return unavailable(errors.Wrap(err, "building request"))
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return unavailable(errors.Wrapf(err, "%s %s", method, logging.MaskURL(a.cfg.BaseURL)))
	}
	defer resp.Body.Close()

	a.logger.Debug("remote request",
		"method", method,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return unavailable(statusError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return unavailable(errors.Wrap(err, "decoding response"))
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := ""
	var er errorResponse
	if json.Unmarshal(data, &er) == nil && len(er.Error) > 0 {
		detail = string(er.Error)
		var typed struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if json.Unmarshal(er.Error, &typed) == nil && typed.Type != "" {
			detail = typed.Type
			if typed.Message != "" {
				detail += ": " + typed.Message
			}
		} else {
			var s string
			if json.Unmarshal(er.Error, &s) == nil {
				detail = s
			}
		}
	}

	var msg string
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		msg = "authentication failed"
	case http.StatusNotFound:
		msg = "base or table not found"
	case http.StatusTooManyRequests:
		msg = "rate limited"
	default:
		msg = "unexpected response"
	}
	if detail != "" {
		return errors.Newf("%s (HTTP %d): %s", msg, resp.StatusCode, detail)
	}
	return errors.Newf("%s (HTTP %d)", msg, resp.StatusCode)
}

func unavailable(err error) error {
	return errors.Mark(err, mserrors.ErrRemoteUnavailable)
}
