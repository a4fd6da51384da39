package reports

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CompanyRepository answers whether a company exists before its report is
// rendered.
type CompanyRepository interface {
	CompanyExists(ctx context.Context, companyID string) (bool, error)
}

// SQLCompanyRepository implements CompanyRepository against the reporting
// database. Works with both the mysql and postgres drivers.
type SQLCompanyRepository struct {
	db    *sqlx.DB
	query string
}

const companyExistsQuery = `SELECT COUNT(1) FROM empresa WHERE idempresa = ?`

// NewSQLCompanyRepository creates a new company repository
func NewSQLCompanyRepository(db *sqlx.DB) *SQLCompanyRepository {
	return &SQLCompanyRepository{
		db:    db,
		query: db.Rebind(companyExistsQuery),
	}
}

// CompanyExists reports whether a company row with the given id exists
func (r *SQLCompanyRepository) CompanyExists(ctx context.Context, companyID string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.query, companyID); err != nil {
		return false, fmt.Errorf("failed to look up company %s: %w", companyID, err)
	}
	return count > 0, nil
}

// Connect opens the reporting database and verifies the connection
func Connect(ctx context.Context, driverName, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	return db, nil
}
