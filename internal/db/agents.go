package db

import (
	"database/sql"
	"errors"

	"github.com/RichardoC/agent-platform/internal/models"
)

func (db *Database) CreateAgent(name, systemPrompt, description string) (*models.Agent, error) {
	query := `
        INSERT INTO agents (name, system_prompt, description, created_at, updated_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
        RETURNING id, created_at, updated_at`

	agent := &models.Agent{Name: name, SystemPrompt: systemPrompt, Description: description}
	err := db.db.QueryRow(query, name, systemPrompt, description).
		Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)
	return agent, err
}

func (db *Database) GetAgent(id int64) (*models.Agent, error) {
	query := `
        SELECT id, name, system_prompt, description, created_at, updated_at
        FROM agents
        WHERE id = ?`

	var agent models.Agent
	err := db.db.QueryRow(query, id).Scan(
		&agent.ID, &agent.Name, &agent.SystemPrompt, &agent.Description,
		&agent.CreatedAt, &agent.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (db *Database) GetAgents() ([]models.Agent, error) {
	query := `
        SELECT id, name, system_prompt, description, created_at, updated_at
        FROM agents
        ORDER BY created_at DESC`

	rows, err := db.db.Query(query)
	if err != nil {
		return []models.Agent{}, err
	}
	defer rows.Close()

	agents := make([]models.Agent, 0)
	for rows.Next() {
		var agent models.Agent
		err := rows.Scan(&agent.ID, &agent.Name, &agent.SystemPrompt,
			&agent.Description, &agent.CreatedAt, &agent.UpdatedAt)
		if err != nil {
			return []models.Agent{}, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// UpdateAgent applies a partial update; nil fields keep their current value.
func (db *Database) UpdateAgent(id int64, name, systemPrompt, description *string) (*models.Agent, error) {
	agent, err := db.GetAgent(id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		agent.Name = *name
	}
	if systemPrompt != nil {
		agent.SystemPrompt = *systemPrompt
	}
	if description != nil {
		agent.Description = *description
	}

	query := `
        UPDATE agents
        SET name = ?, system_prompt = ?, description = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?
        RETURNING updated_at`

	err = db.db.QueryRow(query, agent.Name, agent.SystemPrompt, agent.Description, id).
		Scan(&agent.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// DeleteAgent removes an agent and everything hanging off it. Child rows
// are deleted explicitly inside one transaction so no orphaned
// conversation, message or token usage row survives.
func (db *Database) DeleteAgent(id int64) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
        DELETE FROM token_usage
        WHERE conversation_id IN (SELECT id FROM conversations WHERE agent_id = ?)`, id); err != nil {
		return err
	}

	if _, err := tx.Exec(`
        DELETE FROM messages
        WHERE conversation_id IN (SELECT id FROM conversations WHERE agent_id = ?)`, id); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM conversations WHERE agent_id = ?", id); err != nil {
		return err
	}

	res, err := tx.Exec("DELETE FROM agents WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}
