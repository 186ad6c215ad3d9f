package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) SaveAuction(ctx context.Context, record *domain.AuctionRecord) error {
	query := `
        INSERT INTO auctions (id, sale_id, sale_date, open_price, min_price, increment,
            min_increment, status, auctioneer, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE sale_id = VALUES(sale_id), sale_date = VALUES(sale_date),
            open_price = VALUES(open_price), min_price = VALUES(min_price),
            increment = VALUES(increment), min_increment = VALUES(min_increment),
            status = VALUES(status), auctioneer = VALUES(auctioneer), updated_at = VALUES(updated_at)
    `
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.SaleID, record.SaleDate, record.OpenPrice, record.MinPrice,
		record.Increment, record.MinIncrement, string(record.Status), record.Auctioneer,
		record.CreatedAt, record.UpdatedAt)
	return err
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.AuctionRecord, error) {
	query := `
        SELECT id, sale_id, sale_date, open_price, min_price, increment,
            min_increment, status, auctioneer, created_at, updated_at
        FROM auctions WHERE id = ?
    `

	record, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *MySQLAuctionRepository) MarkAuctionStarted(ctx context.Context, auctionID, auctioneer string, openPrice float64) error {
	query := `UPDATE auctions SET status = ?, auctioneer = ?, open_price = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		string(domain.StatusStarted), auctioneer, openPrice, time.Now(), auctionID)
	return err
}

func (r *MySQLAuctionRepository) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	query := `UPDATE auctions SET status = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, string(status), time.Now(), auctionID)
	return err
}

func (r *MySQLAuctionRepository) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.AuctionRecord, error) {
	query := `
        SELECT id, sale_id, sale_date, open_price, min_price, increment,
            min_increment, status, auctioneer, created_at, updated_at
        FROM auctions WHERE status = ?
    `

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.AuctionRecord
	for rows.Next() {
		record, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.AuctionRecord, error) {
	var record domain.AuctionRecord
	var status string
	var saleDate sql.NullTime

	err := row.Scan(&record.ID, &record.SaleID, &saleDate, &record.OpenPrice,
		&record.MinPrice, &record.Increment, &record.MinIncrement,
		&status, &record.Auctioneer, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}

	record.Status = domain.AuctionStatus(status)
	if saleDate.Valid {
		record.SaleDate = &saleDate.Time
	}
	return &record, nil
}
