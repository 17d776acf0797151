package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// DriverDetail is what the database driver said about a failed statement,
// normalized across the three supported backends.
type DriverDetail struct {
	Driver     string `json:"driver"`
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump is a log-friendly breakdown of an error chain.
type ErrorDump struct {
	TopMessage string        `json:"top_message"`
	Code       Code          `json:"code,omitempty"`
	Chain      []string      `json:"chain,omitempty"`
	Driver     *DriverDetail `json:"driver,omitempty"`
}

// Fields flattens the dump for structured logging.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if d.Driver != nil {
		fields["db_driver"] = d.Driver.Driver
		fields["db_code"] = d.Driver.Code
		fields["db_message"] = d.Driver.Message
		if d.Driver.Constraint != "" {
			fields["db_constraint"] = d.Driver.Constraint
		}
		if d.Driver.Table != "" {
			fields["db_table"] = d.Driver.Table
		}
		if d.Driver.Column != "" {
			fields["db_column"] = d.Driver.Column
		}
		if d.Driver.Detail != "" {
			fields["db_detail"] = d.Driver.Detail
		}
	}
	return fields
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Driver: driverDetail(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

func driverDetail(err error) *DriverDetail {
	var (
		pgErr   *pgconn.PgError
		pqErr   *pq.Error
		myErr   *mysql.MySQLError
		liteErr sqlite3.Error
	)
	switch {
	case errors.As(err, &pgErr):
		return &DriverDetail{
			Driver:     "postgres",
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	case errors.As(err, &pqErr):
		return &DriverDetail{
			Driver:     "postgres",
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	case errors.As(err, &myErr):
		return &DriverDetail{
			Driver:  "mysql",
			Code:    strconv.Itoa(int(myErr.Number)),
			Message: myErr.Message,
		}
	case errors.As(err, &liteErr):
		return &DriverDetail{
			Driver:  "sqlite",
			Code:    strconv.Itoa(int(liteErr.ExtendedCode)),
			Message: liteErr.Error(),
		}
	}
	return nil
}
