package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// Meta mirrors a row of the metas table. Data is the YYYY-MM-DD text form.
type Meta struct {
	ID         int64
	Nome       string
	MetaMensal int64
	Realizado  int64
	Data       string
}

const createMeta = `INSERT INTO metas (nome, meta_mensal, realizado, data)
VALUES (?, ?, ?, ?)
RETURNING id`

type CreateMetaParams struct {
	Nome       string
	MetaMensal int64
	Realizado  int64
	Data       string
}

func (q *Queries) CreateMeta(ctx context.Context, arg CreateMetaParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createMeta, arg.Nome, arg.MetaMensal, arg.Realizado, arg.Data)
	var id int64
	err := row.Scan(&id)
	return id, err
}

// strftime keeps the DATE column out of the driver's time conversion.
const listMetas = `SELECT id, nome, meta_mensal, realizado, strftime('%Y-%m-%d', data) AS data
FROM metas
ORDER BY id`

func (q *Queries) ListMetas(ctx context.Context) ([]Meta, error) {
	rows, err := q.db.QueryContext(ctx, listMetas)
	if err != nil {
		return nil, err
	}
	return scanMetas(rows)
}

const listMetasBetween = `SELECT id, nome, meta_mensal, realizado, strftime('%Y-%m-%d', data) AS data
FROM metas
WHERE data BETWEEN ? AND ?
ORDER BY id`

type ListMetasBetweenParams struct {
	Start string
	End   string
}

func (q *Queries) ListMetasBetween(ctx context.Context, arg ListMetasBetweenParams) ([]Meta, error) {
	rows, err := q.db.QueryContext(ctx, listMetasBetween, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	return scanMetas(rows)
}

func scanMetas(rows *sql.Rows) ([]Meta, error) {
	defer rows.Close()
	items := []Meta{}
	for rows.Next() {
		var i Meta
		if err := rows.Scan(&i.ID, &i.Nome, &i.MetaMensal, &i.Realizado, &i.Data); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTotalsByCategoryTarget = `SELECT nome, meta_mensal, SUM(realizado) AS total_realizado
FROM metas
WHERE data BETWEEN ? AND ?
GROUP BY nome, meta_mensal`

type GetTotalsByCategoryTargetRow struct {
	Nome           string
	MetaMensal     int64
	TotalRealizado int64
}

func (q *Queries) GetTotalsByCategoryTarget(ctx context.Context, arg ListMetasBetweenParams) ([]GetTotalsByCategoryTargetRow, error) {
	rows, err := q.db.QueryContext(ctx, getTotalsByCategoryTarget, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetTotalsByCategoryTargetRow{}
	for rows.Next() {
		var i GetTotalsByCategoryTargetRow
		if err := rows.Scan(&i.Nome, &i.MetaMensal, &i.TotalRealizado); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMonthlyTotalsByCategory = `SELECT nome, CAST(strftime('%m', data) AS INTEGER) AS mes, SUM(realizado) AS total
FROM metas
WHERE strftime('%Y', data) = ?
GROUP BY nome, mes
ORDER BY nome, mes`

type GetMonthlyTotalsByCategoryRow struct {
	Nome  string
	Mes   int64
	Total int64
}

func (q *Queries) GetMonthlyTotalsByCategory(ctx context.Context, year string) ([]GetMonthlyTotalsByCategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, getMonthlyTotalsByCategory, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetMonthlyTotalsByCategoryRow{}
	for rows.Next() {
		var i GetMonthlyTotalsByCategoryRow
		if err := rows.Scan(&i.Nome, &i.Mes, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countMetas = `SELECT COUNT(*) FROM metas`

func (q *Queries) CountMetas(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countMetas)
	var count int64
	err := row.Scan(&count)
	return count, err
}
