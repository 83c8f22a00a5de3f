package db

import (
	"github.com/RichardoC/agent-platform/internal/models"
)

func (db *Database) SaveMessage(msg *models.Message) error {
	query := `
        INSERT INTO messages (conversation_id, role, content, created_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	return db.db.QueryRow(query, msg.ConvID, msg.Role, msg.Content).Scan(&msg.ID, &msg.CreatedAt)
}

// GetMessages returns a conversation's messages in chronological order.
// The id tiebreak keeps insertion order for rows created within the same
// CURRENT_TIMESTAMP second.
func (db *Database) GetMessages(conversationID int64) ([]models.Message, error) {
	query := `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY created_at ASC, id ASC`

	rows, err := db.db.Query(query, conversationID)
	if err != nil {
		return []models.Message{}, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content, &msg.CreatedAt)
		if err != nil {
			return []models.Message{}, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (db *Database) CountMessages(conversationID int64) (int64, error) {
	var n int64
	err := db.db.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ?",
		conversationID).Scan(&n)
	return n, err
}

// SaveReply persists the assistant message and its token usage record in
// one transaction and bumps the conversation's updated_at. The user
// message is committed separately before the LLM call, so a failure here
// never touches it.
func (db *Database) SaveReply(msg *models.Message, usage *models.TokenUsage) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
        INSERT INTO messages (conversation_id, role, content, created_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`,
		msg.ConvID, msg.Role, msg.Content).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return err
	}

	err = tx.QueryRow(`
        INSERT INTO token_usage (conversation_id, model, prompt_tokens, completion_tokens, total_tokens, created_at)
        VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`,
		usage.ConvID, usage.Model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens).
		Scan(&usage.ID, &usage.CreatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		"UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		msg.ConvID); err != nil {
		return err
	}

	return tx.Commit()
}
