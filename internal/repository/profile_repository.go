package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/model"
	"github.com/Freeeeeet/askgrandpa/internal/repository/base"
)

type profileRow struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Email          string    `db:"email"`
	TelegramChatID int64     `db:"telegram_chat_id"`
	Address        []byte    `db:"address"`
	CreatedAt      time.Time `db:"created_at"`
}

// ProfileRepository читает профили, которые ведёт внешняя система регистрации
type ProfileRepository struct {
	*base.Repository
}

func NewProfileRepository(b *base.Repository) *ProfileRepository {
	return &ProfileRepository{Repository: b}
}

// Upsert создаёт или обновляет профиль (используется при импорте и в тестовых стендах)
func (r *ProfileRepository) Upsert(ctx context.Context, profile *model.Profile) error {
	address, err := json.Marshal(profile.Address)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}

	query := `
		INSERT INTO profiles (id, name, email, telegram_chat_id, address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    telegram_chat_id = EXCLUDED.telegram_chat_id,
		    address = EXCLUDED.address
	`

	_, err = r.ExecAffected(ctx, query,
		profile.ID,
		profile.Name,
		profile.Email,
		profile.TelegramChatID,
		address,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	return nil
}

// GetByID получает профиль по ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	query := `
		SELECT id, name, email, telegram_chat_id, address, created_at
		FROM profiles
		WHERE id = $1
	`

	var row profileRow
	if err := r.Get(ctx, &row, query, id); err != nil {
		if base.IsNotFound(err) {
			return nil, &model.NotFoundError{Kind: "profile", ID: id}
		}
		return nil, fmt.Errorf("get profile by id: %w", err)
	}

	profile := &model.Profile{
		ID:             row.ID,
		Name:           row.Name,
		Email:          row.Email,
		TelegramChatID: row.TelegramChatID,
		CreatedAt:      row.CreatedAt,
	}
	if len(row.Address) > 0 {
		if err := json.Unmarshal(row.Address, &profile.Address); err != nil {
			return nil, fmt.Errorf("decode address: %w", err)
		}
	}

	return profile, nil
}

// AddressOf возвращает сохранённый адрес пользователя
func (r *ProfileRepository) AddressOf(ctx context.Context, userID string) (model.Address, error) {
	profile, err := r.GetByID(ctx, userID)
	if err != nil {
		return model.Address{}, err
	}
	return profile.Address, nil
}
