package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vpsBack/internal/models"
)

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int) (models.User, error) {
	var user models.User
	query := `
        SELECT id, email, vip_time, created_at
        FROM users
        WHERE id = ?
    `
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.VIPTime, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	return user, err
}

// CreditTime adds seconds of account time inside tx. The expiry moves forward from
// now or from the current expiry, whichever is later. The user row stays locked
// until tx ends; a zero credit only checks the user exists.
func (r *UserRepository) CreditTime(ctx context.Context, tx *sql.Tx, userID int, seconds int) error {
	var id int
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ? FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user %d: %w", userID, err)
	}
	if seconds <= 0 {
		return nil
	}
	// Rows affected counts changed rows under the mysql driver, so the lock above
	// is the existence check.
	if _, err := tx.ExecContext(ctx, `
        UPDATE users
        SET vip_time = vip_time + ?,
            vip_expire_at = DATE_ADD(GREATEST(COALESCE(vip_expire_at, NOW()), NOW()), INTERVAL ? SECOND)
        WHERE id = ?
    `, seconds, seconds, userID); err != nil {
		return fmt.Errorf("credit user %d: %w", userID, err)
	}
	return nil
}
