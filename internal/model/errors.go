package model

import (
	"errors"
	"fmt"
)

// ErrResolutionAmbiguous время сессии нельзя вычислить: есть только текстовое предложение
var ErrResolutionAmbiguous = errors.New("session start cannot be resolved to a timestamp")

// ValidationError переход запрошен из неподходящего статуса или без обязательных полей
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Op == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// NewValidationError создаёт ошибку валидации
func NewValidationError(op, format string, args ...any) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation проверяет, является ли ошибка ошибкой валидации
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// NotFoundError запрошенная сущность не существует
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsNotFound проверяет, является ли ошибка "не найдено"
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// NotificationDeliveryError транспорт не смог доставить сообщение
type NotificationDeliveryError struct {
	Template  string
	Recipient string
	Err       error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %v", e.Template, e.Recipient, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error {
	return e.Err
}
