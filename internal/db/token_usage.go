package db

import (
	"github.com/RichardoC/agent-platform/internal/models"
)

func (db *Database) GetTokenUsageByConversation(conversationID int64) ([]models.TokenUsage, error) {
	query := `
        SELECT id, conversation_id, model, prompt_tokens, completion_tokens, total_tokens, created_at
        FROM token_usage
        WHERE conversation_id = ?
        ORDER BY created_at ASC, id ASC`

	rows, err := db.db.Query(query, conversationID)
	if err != nil {
		return []models.TokenUsage{}, err
	}
	defer rows.Close()

	records := make([]models.TokenUsage, 0)
	for rows.Next() {
		var u models.TokenUsage
		err := rows.Scan(&u.ID, &u.ConvID, &u.Model, &u.PromptTokens,
			&u.CompletionTokens, &u.TotalTokens, &u.CreatedAt)
		if err != nil {
			return []models.TokenUsage{}, err
		}
		records = append(records, u)
	}
	return records, rows.Err()
}

func (db *Database) TotalTokensByConversation(conversationID int64) (int64, error) {
	var total int64
	err := db.db.QueryRow(`
        SELECT COALESCE(SUM(total_tokens), 0)
        FROM token_usage
        WHERE conversation_id = ?`, conversationID).Scan(&total)
	return total, err
}

func (db *Database) TotalTokensByAgent(agentID int64) (int64, error) {
	var total int64
	err := db.db.QueryRow(`
        SELECT COALESCE(SUM(u.total_tokens), 0)
        FROM token_usage u
        JOIN conversations c ON u.conversation_id = c.id
        WHERE c.agent_id = ?`, agentID).Scan(&total)
	return total, err
}
