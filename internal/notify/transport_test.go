package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/Freeeeeet/askgrandpa/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestSMTPTransport(t *testing.T) {
	dialer := &fakeDialer{}
	transport := &SMTPTransport{from: "noreply@askgrandpa.test", dialer: dialer, logger: zaptest.NewLogger(t)}

	msg := Message{
		To:       Recipient{Role: model.RoleApprentice, Party: model.Party{ID: "a1", Name: "Ann", Email: "ann@example.com"}},
		Template: TemplateSessionCompleted,
		Vars:     map[string]string{"apprentice_name": "Ann", "grandpa_name": "George", "skill": "plumbing"},
	}
	require.NoError(t, transport.Send(context.Background(), msg))
	require.Len(t, dialer.sent, 1)
	assert.Equal(t, []string{"How was your session with George?"}, dialer.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"noreply@askgrandpa.test"}, dialer.sent[0].GetHeader("From"))

	// Без email письмо не отправляется
	msg.To.Party.Email = ""
	require.NoError(t, transport.Send(context.Background(), msg))
	assert.Len(t, dialer.sent, 1)

	dialer.err = errors.New("connection refused")
	msg.To.Party.Email = "ann@example.com"
	assert.ErrorContains(t, transport.Send(context.Background(), msg), "connection refused")
}

type fakeSender struct {
	params []*bot.SendMessageParams
}

func (s *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	s.params = append(s.params, params)
	return &models.Message{}, nil
}

func TestTelegramTransport(t *testing.T) {
	sender := &fakeSender{}
	transport := &TelegramTransport{sender: sender, logger: zaptest.NewLogger(t)}

	msg := Message{
		To:       Recipient{Role: model.RoleGrandpa, Party: model.Party{ID: "g1", Name: "George", TelegramChatID: 42}},
		Template: TemplateSessionReminder,
		Vars:     map[string]string{"recipient_name": "George", "counterpart_name": "Ann", "skill": "plumbing", "session_time": "tomorrow"},
	}
	require.NoError(t, transport.Send(context.Background(), msg))
	require.Len(t, sender.params, 1)
	assert.Equal(t, int64(42), sender.params[0].ChatID)
	assert.Contains(t, sender.params[0].Text, "Reminder: session tomorrow")

	// Чат не привязан
	msg.To.Party.TelegramChatID = 0
	require.NoError(t, transport.Send(context.Background(), msg))
	assert.Len(t, sender.params, 1)
}
