package eventstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

// DefaultIndex is the OpenSearch index holding security events.
const DefaultIndex = "sentinel-security-events"

// OpenSearchConfig holds OpenSearch connection settings.
type OpenSearchConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Insecure bool   `mapstructure:"insecure"`
	Index    string `mapstructure:"index"`
	// Refresh makes inserted documents visible to search immediately.
	Refresh bool `mapstructure:"refresh"`
}

// OpenSearchStore implements Store on an OpenSearch index.
type OpenSearchStore struct {
	client *opensearch.Client
	index  string
	cfg    OpenSearchConfig
	logger *slog.Logger
}

// NewOpenSearchStore builds a client. It does not contact the cluster; use
// Ping to verify connectivity.
func NewOpenSearchStore(cfg OpenSearchConfig, logger *slog.Logger) (*OpenSearchStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure}, //nolint:gosec // opt-in for dev clusters
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	index := cfg.Index
	if index == "" {
		index = DefaultIndex
	}
	return &OpenSearchStore{client: client, index: index, cfg: cfg, logger: logger}, nil
}

func (s *OpenSearchStore) Ping(ctx context.Context) error {
	res, err := s.client.Info(s.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("opensearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch returned %s", res.Status())
	}
	return nil
}

// Close is a no-op; the HTTP transport holds no long-lived resources.
func (s *OpenSearchStore) Close() {}

func indexMappings() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"timestamp":  map[string]any{"type": "date"},
				"hostname":   map[string]any{"type": "keyword"},
				"event_type": map[string]any{"type": "keyword"},
				"details":    map[string]any{"type": "text"},
			},
		},
	}
}

// EnsureIndex creates the index with explicit mappings when it is missing.
func (s *OpenSearchStore) EnsureIndex(ctx context.Context) error {
	exists, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(indexMappings())
	if err != nil {
		return err
	}
	res, err := s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index %s: %s - %s", s.index, res.Status(), string(msg))
	}
	s.logger.Info("opensearch index created", slog.String("index", s.index))
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *OpenSearchStore) Latest(ctx context.Context, limit int) ([]models.StoredEvent, error) {
	query := map[string]any{
		"size":  limit,
		"sort":  []any{map[string]any{"timestamp": map[string]any{"order": "desc"}}},
		"query": map[string]any{"match_all": map[string]any{}},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search latest events: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search latest events: %s - %s", res.Status(), string(msg))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	events := make([]models.StoredEvent, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ev, err := eventFromSource(hit.Source)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *OpenSearchStore) Insert(ctx context.Context, event models.StoredEvent) error {
	doc := map[string]string{
		"timestamp":  event.Timestamp.UTC().Format(time.RFC3339),
		"hostname":   event.Hostname,
		"event_type": event.EventType,
		"details":    event.Details,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := s.client.Index(s.index, bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithRefresh(strconv.FormatBool(s.cfg.Refresh)),
	)
	if err != nil {
		return fmt.Errorf("index event: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index event: %s - %s", res.Status(), string(msg))
	}
	return nil
}

var sourceColumns = []string{"timestamp", "hostname", "event_type", "details"}

// eventFromSource applies the same arity and type rules as the SQL mapping.
func eventFromSource(src map[string]any) (models.StoredEvent, error) {
	if len(src) != len(sourceColumns) {
		return models.StoredEvent{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRow, len(sourceColumns), len(src))
	}
	values := make([]any, len(sourceColumns))
	for i, col := range sourceColumns {
		v, ok := src[col]
		if !ok {
			return models.StoredEvent{}, fmt.Errorf("%w: missing field %q", ErrMalformedRow, col)
		}
		values[i] = v
	}
	raw, ok := values[0].(string)
	if !ok {
		return models.StoredEvent{}, fmt.Errorf("%w: timestamp field has type %T", ErrMalformedRow, values[0])
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return models.StoredEvent{}, fmt.Errorf("%w: timestamp %q: %v", ErrMalformedRow, raw, err)
	}
	values[0] = ts
	return eventFromValues(values)
}
