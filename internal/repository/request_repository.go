package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/model"
	"github.com/Freeeeeet/askgrandpa/internal/repository/base"
)

const requestColumns = `
	id, apprentice, grandpa, subject, skill, message, apprentice_offer,
	grandpa_response, grandpa_offer, proposed_time, confirmation_message,
	address, session_start, status, declined_by, decline_reason,
	created_at, responded_at, confirmed_at, declined_at, completed_at
`

// requestRow строка таблицы requests; JSONB-колонки читаются как сырые байты
type requestRow struct {
	ID                  string     `db:"id"`
	Apprentice          []byte     `db:"apprentice"`
	Grandpa             []byte     `db:"grandpa"`
	Subject             string     `db:"subject"`
	Skill               string     `db:"skill"`
	Message             string     `db:"message"`
	ApprenticeOffer     []byte     `db:"apprentice_offer"`
	GrandpaResponse     string     `db:"grandpa_response"`
	GrandpaOffer        []byte     `db:"grandpa_offer"`
	ProposedTime        string     `db:"proposed_time"`
	ConfirmationMessage string     `db:"confirmation_message"`
	Address             []byte     `db:"address"`
	SessionStart        *time.Time `db:"session_start"`
	Status              string     `db:"status"`
	DeclinedBy          string     `db:"declined_by"`
	DeclineReason       string     `db:"decline_reason"`
	CreatedAt           time.Time  `db:"created_at"`
	RespondedAt         *time.Time `db:"responded_at"`
	ConfirmedAt         *time.Time `db:"confirmed_at"`
	DeclinedAt          *time.Time `db:"declined_at"`
	CompletedAt         *time.Time `db:"completed_at"`
}

func (row *requestRow) toModel() (*model.Request, error) {
	req := &model.Request{
		ID:                  row.ID,
		Subject:             row.Subject,
		Skill:               row.Skill,
		Message:             row.Message,
		GrandpaResponse:     row.GrandpaResponse,
		ProposedTime:        row.ProposedTime,
		ConfirmationMessage: row.ConfirmationMessage,
		SessionStart:        row.SessionStart,
		Status:              model.RequestStatus(row.Status),
		DeclinedBy:          model.Role(row.DeclinedBy),
		DeclineReason:       row.DeclineReason,
		CreatedAt:           row.CreatedAt,
		RespondedAt:         row.RespondedAt,
		ConfirmedAt:         row.ConfirmedAt,
		DeclinedAt:          row.DeclinedAt,
		CompletedAt:         row.CompletedAt,
	}

	if err := json.Unmarshal(row.Apprentice, &req.Apprentice); err != nil {
		return nil, fmt.Errorf("decode apprentice: %w", err)
	}
	if err := json.Unmarshal(row.Grandpa, &req.Grandpa); err != nil {
		return nil, fmt.Errorf("decode grandpa: %w", err)
	}
	if err := json.Unmarshal(row.ApprenticeOffer, &req.ApprenticeOffer); err != nil {
		return nil, fmt.Errorf("decode apprentice offer: %w", err)
	}
	if len(row.GrandpaOffer) > 0 {
		if err := json.Unmarshal(row.GrandpaOffer, &req.GrandpaOffer); err != nil {
			return nil, fmt.Errorf("decode grandpa offer: %w", err)
		}
	}
	if len(row.Address) > 0 {
		var addr model.Address
		if err := json.Unmarshal(row.Address, &addr); err != nil {
			return nil, fmt.Errorf("decode address: %w", err)
		}
		req.Address = &addr
	}

	return req, nil
}

type RequestRepository struct {
	*base.Repository
}

func NewRequestRepository(b *base.Repository) *RequestRepository {
	return &RequestRepository{Repository: b}
}

// Create сохраняет новую заявку
func (r *RequestRepository) Create(ctx context.Context, req *model.Request) error {
	apprentice, err := json.Marshal(req.Apprentice)
	if err != nil {
		return fmt.Errorf("encode apprentice: %w", err)
	}
	grandpa, err := json.Marshal(req.Grandpa)
	if err != nil {
		return fmt.Errorf("encode grandpa: %w", err)
	}
	offer, err := json.Marshal(req.ApprenticeOffer)
	if err != nil {
		return fmt.Errorf("encode apprentice offer: %w", err)
	}

	query := `
		INSERT INTO requests (
			id, apprentice_id, apprentice, grandpa_id, grandpa,
			subject, skill, message, apprentice_offer, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.ExecAffected(ctx, query,
		req.ID,
		req.Apprentice.ID,
		apprentice,
		req.Grandpa.ID,
		grandpa,
		req.Subject,
		req.Skill,
		req.Message,
		offer,
		req.Status,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	var row requestRow
	if err := r.Get(ctx, &row, query, id); err != nil {
		if base.IsNotFound(err) {
			return nil, &model.NotFoundError{Kind: "request", ID: id}
		}
		return nil, fmt.Errorf("get request by id: %w", err)
	}

	return row.toModel()
}

// Transition записывает заявку после перехода, только если текущий статус
// всё ещё равен expected. Временные метки журнала не перезаписываются.
func (r *RequestRepository) Transition(ctx context.Context, req *model.Request, expected model.RequestStatus) error {
	var grandpaOffer, address []byte
	var err error

	if req.GrandpaOffer != nil {
		if grandpaOffer, err = json.Marshal(req.GrandpaOffer); err != nil {
			return fmt.Errorf("encode grandpa offer: %w", err)
		}
	}
	if req.Address != nil {
		if address, err = json.Marshal(req.Address); err != nil {
			return fmt.Errorf("encode address: %w", err)
		}
	}

	query := `
		UPDATE requests
		SET grandpa_response = $3,
		    grandpa_offer = $4,
		    proposed_time = $5,
		    confirmation_message = $6,
		    address = $7,
		    session_start = $8,
		    status = $9,
		    declined_by = $10,
		    decline_reason = $11,
		    responded_at = COALESCE(responded_at, $12),
		    confirmed_at = COALESCE(confirmed_at, $13),
		    declined_at = COALESCE(declined_at, $14),
		    completed_at = COALESCE(completed_at, $15)
		WHERE id = $1 AND status = $2
	`

	affected, err := r.ExecAffected(ctx, query,
		req.ID,
		expected,
		req.GrandpaResponse,
		grandpaOffer,
		req.ProposedTime,
		req.ConfirmationMessage,
		address,
		req.SessionStart,
		req.Status,
		req.DeclinedBy,
		req.DeclineReason,
		req.RespondedAt,
		req.ConfirmedAt,
		req.DeclinedAt,
		req.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("transition request: %w", err)
	}

	if affected == 0 {
		return r.transitionConflict(ctx, req.ID, expected)
	}

	return nil
}

// transitionConflict различает отсутствующую заявку и изменившийся статус
func (r *RequestRepository) transitionConflict(ctx context.Context, id string, expected model.RequestStatus) error {
	var current string
	if err := r.QueryRow(ctx, `SELECT status FROM requests WHERE id = $1`, []any{id}, &current); err != nil {
		if base.IsNotFound(err) {
			return &model.NotFoundError{Kind: "request", ID: id}
		}
		return fmt.Errorf("check request status: %w", err)
	}
	return model.NewValidationError("transition", "request is %s, expected %s", current, expected)
}

// ListForParty получает заявки стороны, новые первыми
func (r *RequestRepository) ListForParty(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error) {
	var where string
	switch filter.Role {
	case model.RoleApprentice:
		where = `apprentice_id = $1`
	case model.RoleGrandpa:
		where = `grandpa_id = $1`
	default:
		where = `(apprentice_id = $1 OR grandpa_id = $1)`
	}

	query := `SELECT ` + requestColumns + ` FROM requests WHERE ` + where + `
		AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`

	var rows []*requestRow
	if err := r.Select(ctx, &rows, query, filter.PartyID, string(filter.Status)); err != nil {
		return nil, fmt.Errorf("list requests for party: %w", err)
	}

	return toModels(rows)
}

// ListByStatus получает все заявки в статусе
func (r *RequestRepository) ListByStatus(ctx context.Context, status model.RequestStatus) ([]*model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE status = $1 ORDER BY created_at ASC`

	var rows []*requestRow
	if err := r.Select(ctx, &rows, query, status); err != nil {
		return nil, fmt.Errorf("list requests by status: %w", err)
	}

	return toModels(rows)
}

// ClaimReminder атомарно создаёт запись о напоминании.
// Возвращает false, если напоминание по заявке уже было отправлено.
func (r *RequestRepository) ClaimReminder(ctx context.Context, requestID string, at time.Time) (bool, error) {
	query := `
		INSERT INTO reminder_records (request_id, sent_at)
		VALUES ($1, $2)
		ON CONFLICT (request_id) DO NOTHING
	`

	affected, err := r.ExecAffected(ctx, query, requestID, at)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}

	return affected == 1, nil
}

// ReminderSentAt возвращает время отправки напоминания, nil если не отправлялось
func (r *RequestRepository) ReminderSentAt(ctx context.Context, requestID string) (*time.Time, error) {
	var sentAt time.Time
	err := r.QueryRow(ctx, `SELECT sent_at FROM reminder_records WHERE request_id = $1`, []any{requestID}, &sentAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reminder record: %w", err)
	}
	return &sentAt, nil
}

func toModels(rows []*requestRow) ([]*model.Request, error) {
	requests := make([]*model.Request, 0, len(rows))
	for _, row := range rows {
		req, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("scan request %s: %w", row.ID, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}
