package directory

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schemaSchools = `
	CREATE TABLE IF NOT EXISTS schools (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		address    TEXT NOT NULL,
		city       TEXT NOT NULL,
		state      TEXT NOT NULL,
		contact    TEXT NOT NULL,
		email_id   TEXT NOT NULL,
		image      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects with lib/pq and creates the table if needed.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSchools); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schools: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Create(ctx context.Context, school School) (School, error) {
	const q = `
		INSERT INTO schools (name, address, city, state, contact, email_id, image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	image := sql.NullString{String: school.Image, Valid: school.Image != ""}
	err := s.db.QueryRowContext(ctx, q,
		school.Name, school.Address, school.City, school.State,
		school.Contact, school.EmailID, image, school.CreatedAt,
	).Scan(&school.ID)
	if err != nil {
		return School{}, fmt.Errorf("create school: %w", err)
	}
	return school, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]School, error) {
	const q = `
		SELECT id, name, address, city, state, contact, email_id, image, created_at
		FROM schools
		ORDER BY lower(name) ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	defer rows.Close()

	var out []School
	for rows.Next() {
		var school School
		var image sql.NullString
		if err := rows.Scan(&school.ID, &school.Name, &school.Address, &school.City,
			&school.State, &school.Contact, &school.EmailID, &image, &school.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan school: %w", err)
		}
		school.Image = image.String
		out = append(out, school)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
