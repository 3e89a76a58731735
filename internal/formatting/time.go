package formatting

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/model"
)

// FormatDateTime форматирует дату и время встречи для писем
func FormatDateTime(t time.Time) string {
	return t.Format("Monday, January 2, 2006 at 3:04 PM")
}

// FormatDate форматирует только дату
func FormatDate(t time.Time) string {
	return t.Format("Mon, Jan 2, 2006")
}

// FormatTime форматирует только время
func FormatTime(t time.Time) string {
	return t.Format("3:04 PM")
}

// FormatHour форматирует час слота из дневного меню
func FormatHour(hour int) string {
	return FormatTime(time.Date(2000, 1, 1, hour, 0, 0, 0, time.UTC))
}

// FormatOffer форматирует предложение доступности построчно:
// "Mon, Mar 10, 2025: 9:00 AM, 2:00 PM"
func FormatOffer(offer model.AvailabilityOffer) string {
	var out string
	for i, day := range offer {
		date, err := time.Parse(model.DateLayout, day.Date)
		label := day.Date
		if err == nil {
			label = FormatDate(date)
		}

		line := label + ":"
		for j, h := range day.Hours {
			if j > 0 {
				line += ","
			}
			line += " " + FormatHour(h)
		}

		if i > 0 {
			out += "\n"
		}
		out += line
	}
	return out
}

// FormatSession возвращает строку времени встречи для отображения.
// Одна и та же функция используется в API и в напоминаниях.
func FormatSession(r *model.Request, loc *time.Location) string {
	start, err := model.ResolveSessionStart(r, loc)
	if err != nil {
		if r != nil && r.ProposedTime != "" {
			return fmt.Sprintf("To be arranged (%s)", r.ProposedTime)
		}
		return "To be arranged"
	}
	return FormatDateTime(start)
}
