package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
)

type MySQLAgentRepository struct {
	db *sql.DB
}

func NewMySQLAgentRepository(db *sql.DB) *MySQLAgentRepository {
	return &MySQLAgentRepository{db: db}
}

func (r *MySQLAgentRepository) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	query := `SELECT id, name, role, created_at FROM agents WHERE id = ?`

	var agent domain.Agent
	var role string

	err := r.db.QueryRowContext(ctx, query, agentID).Scan(
		&agent.ID, &agent.Name, &role, &agent.CreatedAt)
	if err != nil {
		return nil, err
	}

	agent.Role = domain.AgentRole(role)
	return &agent, nil
}

func (r *MySQLAgentRepository) SaveAgent(ctx context.Context, agent *domain.Agent) error {
	query := `
        INSERT INTO agents (id, name, role, created_at)
        VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE name = VALUES(name), role = VALUES(role)
    `
	_, err := r.db.ExecContext(ctx, query,
		agent.ID, agent.Name, string(agent.Role), agent.CreatedAt)
	return err
}
