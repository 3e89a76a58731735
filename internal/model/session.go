package model

import "time"

// ResolveSessionStart вычисляет единственное время начала встречи.
//
// Порядок: уже сохранённое время сессии, затем первый слот предложения
// дедушки, иначе ErrResolutionAmbiguous (есть только текстовое предложение).
// Результат зависит только от сохранённых полей заявки и зоны, поэтому
// отображение и напоминания всегда показывают одно и то же время.
func ResolveSessionStart(r *Request, loc *time.Location) (time.Time, error) {
	if r == nil {
		return time.Time{}, ErrResolutionAmbiguous
	}

	if r.SessionStart != nil {
		return r.SessionStart.In(zoneOrUTC(loc)), nil
	}

	date, hour, ok := r.GrandpaOffer.Earliest()
	if !ok {
		return time.Time{}, ErrResolutionAmbiguous
	}

	start, err := SlotTime(date, hour, zoneOrUTC(loc))
	if err != nil {
		return time.Time{}, ErrResolutionAmbiguous
	}
	return start, nil
}

func zoneOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
