package model

import "time"

// Profile профиль пользователя, ведётся внешней системой регистрации.
// Ядро только читает адрес ученика при принятии заявки.
type Profile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	Address        Address   `json:"address"`
	CreatedAt      time.Time `json:"created_at"`
}
