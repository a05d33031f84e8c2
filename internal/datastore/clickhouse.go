package datastore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseStore persists Log batches to a `log` table in ClickHouse. It is
// the durable datastore collaborator spec §4.10 treats as an external
// interface; this is the concrete implementation this repository ships.
type ClickHouseStore struct {
	conn driver.Conn
}

// ClickHouseConfig configures the connection.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// NewClickHouseStore opens a connection pool to ClickHouse.
func NewClickHouseStore(cfg ClickHouseConfig) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: open: %w", err)
	}
	return &ClickHouseStore{conn: conn}, nil
}

// InsertBatch implements Datastore.
func (s *ClickHouseStore) InsertBatch(ctx context.Context, logs []Log) error {
	if len(logs) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO log")
	if err != nil {
		return fmt.Errorf("clickhouse: prepare batch: %w", err)
	}
	for _, l := range logs {
		headers, err := json.Marshal(l.CustomHeaders)
		if err != nil {
			headers = []byte("{}")
		}
		if err := batch.Append(
			l.ID, l.RequestID, l.OrgID, l.ProjectID, l.APIKeyID,
			l.RequestedModel, l.UsedModel, l.RequestedProvider, l.UsedProvider, l.FinishReason,
			l.PromptTokens, l.CompletionTokens, l.ReasoningTokens, l.CachedTokens,
			l.InputCost, l.OutputCost, l.CachedInputCost, l.RequestCost, l.TotalCost, l.EstimatedCost,
			l.DurationMs, l.ResponseSize,
			l.Streamed, l.Canceled, l.Cached, l.HasError,
			l.ErrorMessage, l.ErrorType,
			l.Messages, l.Content, l.ToolCalls, string(headers),
			l.Temperature, l.MaxTokens, l.TopP, l.FrequencyPenalty, l.PresencePenalty,
			l.CreatedAt,
		); err != nil {
			return fmt.Errorf("clickhouse: append row %s: %w", l.RequestID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("clickhouse: send batch: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
