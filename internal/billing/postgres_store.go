package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is the usage ledger.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ReportUsage(ctx context.Context, rec *UsageRecord) error {
	query := `
		INSERT INTO llm_usage (tenant_id, org_id, request_id, api_key_id, provider, model, operation,
			sku_id, sku_name, millicredits, cost_usd, total_tokens, status, latency_ms)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		rec.TenantID, rec.OrgID, rec.RequestID, rec.APIKeyID, rec.Provider, rec.Model, rec.Operation,
		rec.SkuID, rec.SkuName, rec.Millicredits, rec.CostUSD, rec.TotalTokens, rec.Status, rec.LatencyMs,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUsageByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]*UsageRecord, error) {
	query := `
		SELECT id, tenant_id, org_id, request_id, COALESCE(api_key_id::text, ''), provider, model, operation,
			sku_id, sku_name, millicredits, cost_usd, total_tokens, status, latency_ms, created_at
		FROM llm_usage
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var records []*UsageRecord
	for rows.Next() {
		var r UsageRecord
		err := rows.Scan(
			&r.ID, &r.TenantID, &r.OrgID, &r.RequestID, &r.APIKeyID, &r.Provider, &r.Model, &r.Operation,
			&r.SkuID, &r.SkuName, &r.Millicredits, &r.CostUSD, &r.TotalTokens, &r.Status, &r.LatencyMs, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) GetTotalsByTenant(ctx context.Context, tenantID string, from, to time.Time) (*Totals, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(cost_usd), 0), COALESCE(SUM(millicredits), 0)
		FROM llm_usage
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3
	`
	var t Totals
	err := s.db.QueryRow(ctx, query, tenantID, from, to).Scan(&t.Requests, &t.CostUSD, &t.Millicredits)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage totals: %w", err)
	}
	return &t, nil
}
