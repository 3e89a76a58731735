package model

import (
	"fmt"
	"sort"
	"time"
)

const (
	// DateLayout формат календарной даты в предложениях доступности
	DateLayout = "2006-01-02"

	// FirstSlotHour и LastSlotHour ограничивают дневное меню слотов (9:00–19:00)
	FirstSlotHour = 9
	LastSlotHour  = 19
)

// DayOffer набор часов, предложенных на одну дату.
// Дата без часового пояса, интерпретируется в общей зоне развёртывания.
type DayOffer struct {
	Date  string `json:"date"`
	Hours []int  `json:"hours"`
}

// AvailabilityOffer упорядоченный набор (дата, часы), предложенный одной стороной
type AvailabilityOffer []DayOffer

// IsEmpty проверяет, что в предложении нет ни одного слота
func (o AvailabilityOffer) IsEmpty() bool {
	for _, day := range o {
		if len(day.Hours) > 0 {
			return false
		}
	}
	return true
}

// SlotCount возвращает общее количество слотов
func (o AvailabilityOffer) SlotCount() int {
	n := 0
	for _, day := range o {
		n += len(day.Hours)
	}
	return n
}

// Normalize проверяет и приводит предложение к каноническому виду:
// даты по возрастанию, одинаковые даты объединены, часы уникальны и
// отсортированы, даты без часов удалены.
func (o AvailabilityOffer) Normalize() (AvailabilityOffer, error) {
	byDate := make(map[string]map[int]struct{}, len(o))

	for _, day := range o {
		parsed, err := time.Parse(DateLayout, day.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", day.Date)
		}
		date := parsed.Format(DateLayout)

		hours, ok := byDate[date]
		if !ok {
			hours = make(map[int]struct{})
			byDate[date] = hours
		}
		for _, h := range day.Hours {
			if h < FirstSlotHour || h > LastSlotHour {
				return nil, fmt.Errorf("invalid hour %d on %s: slots run from %d to %d", h, date, FirstSlotHour, LastSlotHour)
			}
			hours[h] = struct{}{}
		}
	}

	dates := make([]string, 0, len(byDate))
	for date, hours := range byDate {
		if len(hours) == 0 {
			continue
		}
		dates = append(dates, date)
	}
	// ISO-даты сортируются лексикографически
	sort.Strings(dates)

	result := make(AvailabilityOffer, 0, len(dates))
	for _, date := range dates {
		hours := make([]int, 0, len(byDate[date]))
		for h := range byDate[date] {
			hours = append(hours, h)
		}
		sort.Ints(hours)
		result = append(result, DayOffer{Date: date, Hours: hours})
	}

	return result, nil
}

// Earliest возвращает хронологически первый слот (дата, час).
// Не требует нормализованного предложения.
func (o AvailabilityOffer) Earliest() (date string, hour int, ok bool) {
	for _, day := range o {
		if len(day.Hours) == 0 {
			continue
		}
		minHour := day.Hours[0]
		for _, h := range day.Hours[1:] {
			if h < minHour {
				minHour = h
			}
		}
		if !ok || day.Date < date || (day.Date == date && minHour < hour) {
			date, hour, ok = day.Date, minHour, true
		}
	}
	return date, hour, ok
}

// Contains проверяет наличие слота в предложении
func (o AvailabilityOffer) Contains(date string, hour int) bool {
	for _, day := range o {
		if day.Date != date {
			continue
		}
		for _, h := range day.Hours {
			if h == hour {
				return true
			}
		}
	}
	return false
}

// IsSubsetOf проверяет, что каждый слот предложения есть в other
func (o AvailabilityOffer) IsSubsetOf(other AvailabilityOffer) bool {
	for _, day := range o {
		for _, h := range day.Hours {
			if !other.Contains(day.Date, h) {
				return false
			}
		}
	}
	return true
}

// SlotTime строит момент начала слота в заданной зоне
func SlotTime(date string, hour int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot date: %w", err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc), nil
}
