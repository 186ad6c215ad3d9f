package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"encoding/json"
)

type MySQLAuditRepository struct {
	db *sql.DB
}

func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{db: db}
}

func (r *MySQLAuditRepository) RecordEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	var snapshot []byte
	if event.Auction != nil {
		data, err := json.Marshal(event.Auction)
		if err != nil {
			return err
		}
		snapshot = data
	}

	query := `
        INSERT INTO auction_audit_log (auction_id, event, agent_id, message, snapshot, occurred_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		event.AuctionID, string(event.Event), event.AgentID, event.Message,
		snapshot, event.Timestamp)
	return err
}

func (r *MySQLAuditRepository) ListEvents(ctx context.Context, auctionID string) ([]*domain.LifecycleEvent, error) {
	query := `
        SELECT auction_id, event, agent_id, message, snapshot, occurred_at
        FROM auction_audit_log
        WHERE auction_id = ?
        ORDER BY occurred_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.LifecycleEvent
	for rows.Next() {
		var event domain.LifecycleEvent
		var eventName string
		var snapshot []byte

		err := rows.Scan(&event.AuctionID, &eventName, &event.AgentID,
			&event.Message, &snapshot, &event.Timestamp)
		if err != nil {
			return nil, err
		}

		event.Event = domain.Event(eventName)
		if len(snapshot) > 0 {
			var data domain.AuctionData
			if err := json.Unmarshal(snapshot, &data); err != nil {
				return nil, err
			}
			event.Auction = &data
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}
