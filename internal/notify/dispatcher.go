package notify

import (
	"context"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/events"
	"github.com/Freeeeeet/askgrandpa/internal/formatting"
	"github.com/Freeeeeet/askgrandpa/internal/metrics"
	"github.com/Freeeeeet/askgrandpa/internal/model"
	"go.uber.org/zap"
)

// Dispatcher подписчик шины событий: по каждому событию строит сообщения
// сторонам и передаёт их транспорту. Ошибки доставки не возвращаются
// в машину состояний.
type Dispatcher struct {
	transport Transport
	location  *time.Location
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewDispatcher(transport Transport, location *time.Location, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if location == nil {
		location = time.UTC
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Dispatcher{
		transport: transport,
		location:  location,
		metrics:   m,
		logger:    logger,
	}
}

// Handle обрабатывает событие. Сигнатура совпадает с events.Handler.
func (d *Dispatcher) Handle(ctx context.Context, evt events.Event) {
	for _, msg := range d.Messages(evt) {
		err := d.transport.Send(ctx, msg)
		d.metrics.Notifications.WithLabelValues(string(msg.Template), metrics.Result(err)).Inc()
		if err != nil {
			deliveryErr := &model.NotificationDeliveryError{
				Template:  string(msg.Template),
				Recipient: msg.To.Party.ID,
				Err:       err,
			}
			d.logger.Error("Notification delivery failed",
				zap.String("request_id", evt.RequestID()),
				zap.String("event", string(evt.Type())),
				zap.Error(deliveryErr),
			)
		}
	}
}

// Messages сообщения, которые порождает событие
func (d *Dispatcher) Messages(evt events.Event) []Message {
	switch e := evt.(type) {
	case events.RequestCreated:
		req := e.Request
		vars := d.baseVars(req)
		vars["message"] = req.Message
		vars["apprentice_availability"] = formatting.FormatOffer(req.ApprenticeOffer)
		return []Message{
			{To: grandpa(req), Template: TemplateRequestReceived, Vars: vars},
			{To: apprentice(req), Template: TemplateRequestSubmitted, Vars: vars},
		}

	case events.RequestAccepted:
		req := e.Request
		vars := d.baseVars(req)
		vars["grandpa_response"] = req.GrandpaResponse
		vars["grandpa_availability"] = formatting.FormatOffer(req.GrandpaOffer)
		vars["proposed_time"] = req.ProposedTime
		return []Message{
			{To: apprentice(req), Template: TemplateRequestAccepted, Vars: vars},
		}

	case events.RequestConfirmed:
		req := e.Request
		vars := d.baseVars(req)
		vars["confirmation_message"] = req.ConfirmationMessage
		vars["session_time"] = formatting.FormatSession(req, d.location)
		if req.Address != nil {
			vars["address"] = req.Address.String()
		}
		return []Message{
			{To: grandpa(req), Template: TemplateRequestConfirmed, Vars: vars},
			{To: apprentice(req), Template: TemplateSessionScheduled, Vars: withoutAddress(vars)},
		}

	case events.RequestDeclined:
		req := e.Request
		decliner, _ := req.PartyFor(e.By)
		role, party := req.Counterpart(e.By)
		vars := d.baseVars(req)
		vars["recipient_name"] = party.Name
		vars["declined_by_name"] = decliner.Name
		vars["reason"] = req.DeclineReason
		return []Message{
			{To: Recipient{Role: role, Party: party}, Template: TemplateRequestDeclined, Vars: vars},
		}

	case events.RequestCompleted:
		req := e.Request
		return []Message{
			{To: apprentice(req), Template: TemplateSessionCompleted, Vars: d.baseVars(req)},
		}

	case events.ReminderDue:
		req := e.Request
		party, ok := req.PartyFor(e.Recipient)
		if !ok {
			d.logger.Warn("Reminder for unknown recipient role",
				zap.String("request_id", req.ID),
				zap.String("recipient", string(e.Recipient)),
			)
			return nil
		}
		_, counterpart := req.Counterpart(e.Recipient)
		vars := d.baseVars(req)
		vars["recipient_name"] = party.Name
		vars["counterpart_name"] = counterpart.Name
		vars["session_time"] = e.Display
		if e.Recipient == model.RoleGrandpa && req.Address != nil {
			vars["address"] = req.Address.String()
		}
		return []Message{
			{To: Recipient{Role: e.Recipient, Party: party}, Template: TemplateSessionReminder, Vars: vars},
		}
	}

	d.logger.Warn("Unhandled event type", zap.String("event", string(evt.Type())))
	return nil
}

func (d *Dispatcher) baseVars(req *model.Request) map[string]string {
	return map[string]string{
		"request_id":      req.ID,
		"apprentice_name": req.Apprentice.Name,
		"grandpa_name":    req.Grandpa.Name,
		"subject":         req.Subject,
		"skill":           req.Skill,
	}
}

func withoutAddress(vars map[string]string) map[string]string {
	c := make(map[string]string, len(vars))
	for k, v := range vars {
		if k != "address" {
			c[k] = v
		}
	}
	return c
}

func apprentice(req *model.Request) Recipient {
	return Recipient{Role: model.RoleApprentice, Party: req.Apprentice}
}

func grandpa(req *model.Request) Recipient {
	return Recipient{Role: model.RoleGrandpa, Party: req.Grandpa}
}
