package mysql

import (
	"context"
	"database/sql"
	"time"

	"auction-engine/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) SaveBid(ctx context.Context, bid *domain.BidData) error {
	query := `
        INSERT INTO bids (id, auction_id, sale_id, agent_id, price, placed, status, placed_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.SaleID, bid.AgentID, bid.Price,
		bid.Placed, string(bid.Status), bid.Timestamp, time.Now())
	return err
}

func (r *MySQLBidRepository) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.BidData, error) {
	query := `
        SELECT id, auction_id, sale_id, agent_id, price, placed, status, placed_at
        FROM bids
        WHERE auction_id = ?
        ORDER BY placed_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.BidData
	for rows.Next() {
		var bid domain.BidData
		var status string
		var placedAt sql.NullTime

		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.SaleID, &bid.AgentID,
			&bid.Price, &bid.Placed, &status, &placedAt)
		if err != nil {
			return nil, err
		}

		bid.Status = domain.BidStatus(status)
		if placedAt.Valid {
			bid.Timestamp = placedAt.Time
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}
