package sqlstore

// Queries use '?' placeholders and are rebound for the active driver.
const (
	qAppend = `INSERT INTO media_items (category, content_ref) VALUES (?, ?)
RETURNING id, category, content_ref, created_at`

	qList = `SELECT id, category, content_ref, created_at FROM media_items
WHERE category = ? ORDER BY id DESC`

	qExists = `SELECT EXISTS (SELECT 1 FROM media_items WHERE category = ? AND content_ref = ?)`

	qDeleteByID = `DELETE FROM media_items WHERE id = ?
RETURNING id, category, content_ref, created_at`

	// The position is resolved by the sub-select of the same statement.
	qDeleteByPosition = `DELETE FROM media_items WHERE id = (
	SELECT id FROM media_items WHERE category = ? ORDER BY id DESC LIMIT 1 OFFSET ?
)
RETURNING id, category, content_ref, created_at`

	qCount = `SELECT COUNT(*) FROM media_items WHERE category = ?`

	qCountAll = `SELECT COUNT(*) FROM media_items`

	qCategories = `SELECT category, COUNT(*) AS items FROM media_items
GROUP BY category ORDER BY category`

	qEnsureUser = `INSERT INTO users (id, first_name) VALUES (?, ?)
ON CONFLICT (id) DO NOTHING`

	qUser = `SELECT id, first_name, age_confirmed, created_at FROM users WHERE id = ?`

	qSetAgeConfirmed = `INSERT INTO users (id, age_confirmed) VALUES (?, TRUE)
ON CONFLICT (id) DO UPDATE SET age_confirmed = TRUE`

	qTotalUsers = `SELECT COUNT(*) FROM users`

	qGateConfig = `SELECT invite_link, channel, require_age, updated_at FROM gate_config WHERE id = 1`

	qReplaceGateConfig = `INSERT INTO gate_config (id, invite_link, channel, require_age, updated_at)
VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (id) DO UPDATE SET
	invite_link = excluded.invite_link,
	channel = excluded.channel,
	require_age = excluded.require_age,
	updated_at = excluded.updated_at`

	qJoinStatus = `SELECT status FROM pending_joins WHERE user_id = ?`

	qSetJoinStatus = `INSERT INTO pending_joins (user_id, status, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (user_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`
)
