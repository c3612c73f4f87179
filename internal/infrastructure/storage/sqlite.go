package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/crypto_trend_taker/internal/domain"
)

// SQLiteArchive stores closed-investment results in an append-only table.
type SQLiteArchive struct {
	db *sql.DB
}

func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	archive := &SQLiteArchive{db: db}
	if err := archive.initSchema(); err != nil {
		return nil, err
	}

	return archive, nil
}

func (a *SQLiteArchive) initSchema() error {
	query := `CREATE TABLE IF NOT EXISTS closed_investments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		amount_as_base REAL NOT NULL,
		buy_price REAL NOT NULL,
		buy_fee REAL NOT NULL,
		buy_timestamp INTEGER NOT NULL,
		sell_price REAL NOT NULL,
		sell_fee REAL NOT NULL,
		sell_timestamp INTEGER NOT NULL,
		fee_as_quote REAL NOT NULL,
		hours REAL NOT NULL,
		profit_as_percent REAL NOT NULL,
		profit_as_quote REAL NOT NULL
	);`
	if _, err := a.db.Exec(query); err != nil {
		return fmt.Errorf("failed to exec query %s: %w", query, err)
	}
	return nil
}

func (a *SQLiteArchive) SaveResult(ctx context.Context, r *domain.CloseResult) error {
	query := `INSERT INTO closed_investments
		(symbol, amount_as_base, buy_price, buy_fee, buy_timestamp,
		 sell_price, sell_fee, sell_timestamp, fee_as_quote, hours,
		 profit_as_percent, profit_as_quote)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := a.db.ExecContext(ctx, query,
		r.Symbol, r.AmountAsBase, r.Buy.Price, r.Buy.FeeAsQuote, r.Buy.Timestamp,
		r.Sell.Price, r.Sell.FeeAsQuote, r.Sell.Timestamp, r.FeeAsQuote, r.Hours,
		r.ProfitAsPercent, r.ProfitAsQuote)
	return err
}

func (a *SQLiteArchive) ListResults(ctx context.Context, limit int) ([]*domain.CloseResult, error) {
	query := `SELECT symbol, amount_as_base, buy_price, buy_fee, buy_timestamp,
		sell_price, sell_fee, sell_timestamp, fee_as_quote, hours,
		profit_as_percent, profit_as_quote
		FROM closed_investments ORDER BY sell_timestamp DESC LIMIT ?`
	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.CloseResult
	for rows.Next() {
		r := &domain.CloseResult{}
		err := rows.Scan(&r.Symbol, &r.AmountAsBase,
			&r.Buy.Price, &r.Buy.FeeAsQuote, &r.Buy.Timestamp,
			&r.Sell.Price, &r.Sell.FeeAsQuote, &r.Sell.Timestamp,
			&r.FeeAsQuote, &r.Hours, &r.ProfitAsPercent, &r.ProfitAsQuote)
		if err != nil {
			return nil, err
		}
		r.Buy.Symbol, r.Sell.Symbol = r.Symbol, r.Symbol
		r.Buy.Side, r.Sell.Side = domain.SideBuy, domain.SideSell
		results = append(results, r)
	}
	return results, rows.Err()
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
