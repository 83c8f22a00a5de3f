package db

import (
	"database/sql"
	"errors"

	"github.com/RichardoC/agent-platform/internal/models"
)

func (db *Database) CreateConversation(agentID int64, title string) (*models.Conversation, error) {
	query := `
        INSERT INTO conversations (agent_id, title, created_at, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
        RETURNING id, created_at, updated_at`

	conv := &models.Conversation{AgentID: agentID, Title: title}
	err := db.db.QueryRow(query, agentID, title).
		Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	return conv, err
}

func (db *Database) GetConversation(id int64) (*models.Conversation, error) {
	query := `
        SELECT id, agent_id, title, created_at, updated_at
        FROM conversations
        WHERE id = ?`

	var conv models.Conversation
	err := db.db.QueryRow(query, id).Scan(
		&conv.ID, &conv.AgentID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversationsByAgent lists an agent's conversations, newest first,
// each with its message count.
func (db *Database) GetConversationsByAgent(agentID int64) ([]models.ConversationSummary, error) {
	query := `
        SELECT c.id, c.agent_id, c.title, c.created_at, c.updated_at,
               COUNT(m.id)
        FROM conversations c
        LEFT JOIN messages m ON m.conversation_id = c.id
        WHERE c.agent_id = ?
        GROUP BY c.id
        ORDER BY c.created_at DESC`

	rows, err := db.db.Query(query, agentID)
	if err != nil {
		return []models.ConversationSummary{}, err
	}
	defer rows.Close()

	conversations := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var conv models.ConversationSummary
		err := rows.Scan(&conv.ID, &conv.AgentID, &conv.Title,
			&conv.CreatedAt, &conv.UpdatedAt, &conv.MessageCount)
		if err != nil {
			return []models.ConversationSummary{}, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (db *Database) DeleteConversation(id int64) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM token_usage WHERE conversation_id = ?", id); err != nil {
		return err
	}

	res, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id)
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

func (db *Database) UpdateConversationTitle(id int64, title string) error {
	res, err := db.db.Exec(`
        UPDATE conversations
        SET title = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?`, title, id)
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
	return nil
}
