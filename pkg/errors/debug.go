package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const maxChainDepth = 8

// ErrorDump is the log view of an error chain. It never reaches clients.
type ErrorDump struct {
	Message   string
	Code      Code
	Retryable bool
	Chain     []string
	Postgres  *PostgresDetail
}

// PostgresDetail carries the server diagnostics of a failed statement.
type PostgresDetail struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{Message: err.Error(), Code: CodeOf(err)}
	d.Retryable = MetadataFor(d.Code).Retryable

	for e := err; e != nil && len(d.Chain) < maxChainDepth; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		d.Postgres = &PostgresDetail{
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}
	return d
}

// Fields flattens the dump for structured logging. Empty values are omitted.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":      d.Message,
		"error_code": string(d.Code),
		"retryable":  d.Retryable,
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if pg := d.Postgres; pg != nil {
		for key, value := range map[string]string{
			"pg_code":       pg.Code,
			"pg_constraint": pg.Constraint,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_detail":     pg.Detail,
			"pg_message":    pg.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
