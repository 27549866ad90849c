package database

import (
	"context"
	"strings"

	"github.com/irfndi/gutsense-go/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
)

// TracedPool wraps a DatabasePool and emits one span per call. Query spans
// cover sending the statement, not reading the rows.
type TracedPool struct {
	pool DatabasePool
}

// NewTracedPool creates a traced wrapper around pool.
func NewTracedPool(pool DatabasePool) *TracedPool {
	return &TracedPool{pool: pool}
}

func statementAttrs(sql string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", strings.Join(strings.Fields(sql), " ")),
	}
}

func (p *TracedPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := telemetry.StartSpan(ctx, "db.Query", statementAttrs(sql)...)
	rows, err := p.pool.Query(ctx, sql, args...)
	telemetry.FinishSpan(span, err)
	return rows, err
}

func (p *TracedPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := telemetry.StartSpan(ctx, "db.QueryRow", statementAttrs(sql)...)
	defer span.End()
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *TracedPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := telemetry.StartSpan(ctx, "db.Exec", statementAttrs(sql)...)
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	}
	telemetry.FinishSpan(span, err)
	return tag, err
}

func (p *TracedPool) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := telemetry.StartSpan(ctx, "db.Begin", attribute.String("db.system", "postgresql"))
	tx, err := p.pool.Begin(ctx)
	telemetry.FinishSpan(span, err)
	return tx, err
}
