package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPConfig параметры почтового сервера
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// UseTLS неявный TLS (порт 465); иначе STARTTLS, если сервер его предлагает
	UseTLS bool
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport отправляет уведомления письмами
type SMTPTransport struct {
	from   string
	dialer mailDialer
	logger *zap.Logger
}

func NewSMTPTransport(cfg SMTPConfig, logger *zap.Logger) *SMTPTransport {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.UseTLS
	return &SMTPTransport{from: cfg.From, dialer: d, logger: logger}
}

// Send рендерит шаблон и отправляет письмо адресату.
// Стороны без email пропускаются.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if msg.To.Party.Email == "" {
		t.logger.Debug("Skipping email for party without address",
			zap.String("party_id", msg.To.Party.ID),
			zap.String("template", string(msg.Template)),
		)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetAddressHeader("To", msg.To.Party.Email, msg.To.Party.Name)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := t.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// LogTransport пишет уведомления в лог. Используется, когда доставка не настроена.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	subject, _, err := Render(msg)
	if err != nil {
		return err
	}
	t.logger.Info("Notification",
		zap.String("template", string(msg.Template)),
		zap.String("to", msg.To.Party.ID),
		zap.String("role", string(msg.To.Role)),
		zap.String("subject", subject),
	)
	return nil
}

// MultiTransport отправляет сообщение через все транспорты и объединяет ошибки
type MultiTransport []Transport

func (m MultiTransport) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
