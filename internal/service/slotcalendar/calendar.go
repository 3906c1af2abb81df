package slotcalendar

import (
	"fmt"
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
)

// Calendar превращает правила и исключения доступности в конкретные
// бронируемые окна. Чистое вычисление: все данные передаются в Params,
// календарь ничего не читает и не пишет сам.
type Calendar struct {
	gridMinutes      int
	maxLookaheadDays int
}

// New создает календарь слотов
func New(gridMinutes, maxLookaheadDays int) *Calendar {
	if gridMinutes <= 0 {
		gridMinutes = domain.DefaultSlotGridMinutes
	}
	if maxLookaheadDays <= 0 {
		maxLookaheadDays = domain.DefaultMaxLookaheadDays
	}
	return &Calendar{
		gridMinutes:      gridMinutes,
		maxLookaheadDays: maxLookaheadDays,
	}
}

// Params входные данные для расчёта слотов
type Params struct {
	Timezone        string // IANA-таймзона ресурса
	Rules           []*domain.AvailabilityRule
	Exceptions      []*domain.AvailabilityException
	Bookings        []*domain.Booking // активные бронирования, вычитаются из окон
	ServiceDuration time.Duration
	From            time.Time // первый день диапазона (дата)
	To              time.Time // последний день диапазона (дата, включительно)
}

// window открытый интервал одного дня в минутах от локальной полуночи
type window struct {
	startMin     int
	endMin       int
	bufferBefore int
	bufferAfter  int
}

// Slots возвращает ленивую последовательность слотов по диапазону дат.
// Потребитель может остановиться в любой момент; Reset начинает сначала.
func (c *Calendar) Slots(p Params) (*Sequence, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, p.Timezone)
	}

	from := dateIn(p.From, loc)
	to := dateIn(p.To, loc)

	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date precedes start date", ErrInvalidRange)
	}

	// Округление через +12h: дни перевода времени длятся 23 или 25 часов
	days := int((to.Sub(from)+12*time.Hour).Hours()/24) + 1
	if days > c.maxLookaheadDays {
		return nil, fmt.Errorf("%w: range of %d days exceeds lookahead limit of %d", ErrInvalidRange, days, c.maxLookaheadDays)
	}

	if p.ServiceDuration <= 0 {
		return nil, fmt.Errorf("%w: service duration must be positive", ErrInvalidRange)
	}

	return &Sequence{
		cal:    c,
		params: p,
		loc:    loc,
		from:   from,
		days:   days,
	}, nil
}

// ValidateWindow проверяет, что запрошенное окно [startAt, endAt) лежит
// в опубликованной доступности ресурса: совпадает с одним из слотов сетки,
// рассчитанных без учёта существующих бронирований. Конфликты с
// бронированиями - зона ответственности аллокатора, не календаря.
func (c *Calendar) ValidateWindow(p Params, startAt, endAt time.Time) error {
	if !startAt.Before(endAt) {
		return fmt.Errorf("%w: start_at must be before end_at", ErrInvalidRange)
	}

	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownTimezone, p.Timezone)
	}

	day := dateIn(startAt, loc)

	checkParams := p
	checkParams.Bookings = nil
	checkParams.ServiceDuration = endAt.Sub(startAt)
	checkParams.From = day
	checkParams.To = day

	seq, err := c.Slots(checkParams)
	if err != nil {
		return err
	}

	for {
		slot, ok := seq.Next()
		if !ok {
			break
		}
		if slot.StartAt.Equal(startAt) && slot.EndAt.Equal(endAt) {
			return nil
		}
	}

	return ErrWindowNotBookable
}

// daySlots рассчитывает слоты одного локального дня
func (c *Calendar) daySlots(p Params, loc *time.Location, day time.Time) []domain.Slot {
	windows := c.openWindows(p, day)
	if len(windows) == 0 {
		return nil
	}

	durMin := int(p.ServiceDuration.Minutes())
	slots := make([]domain.Slot, 0)

	for _, w := range windows {
		// Первый кандидат: начало окна плюс буфер, выровненный вверх по сетке
		first := alignUp(w.startMin+w.bufferBefore, c.gridMinutes)

		for startMin := first; startMin+durMin+w.bufferAfter <= w.endMin; startMin += c.gridMinutes {
			endMin := startMin + durMin

			startAt, err := ResolveLocal(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, loc)
			if err != nil {
				// Пропущенный или повторённый час - слот не публикуется
				continue
			}
			endAt, err := resolveEnd(day, endMin, loc)
			if err != nil {
				continue
			}
			if !startAt.Before(endAt) {
				// Переход времени внутри слота схлопнул интервал
				continue
			}

			if overlapsBooking(p.Bookings, startAt, endAt, w.bufferBefore, w.bufferAfter) {
				continue
			}

			slots = append(slots, domain.Slot{StartAt: startAt, EndAt: endAt})
		}
	}

	return slots
}

// openWindows возвращает открытые интервалы дня. Исключение на дату
// всегда имеет приоритет над повторяющимися правилами.
func (c *Calendar) openWindows(p Params, day time.Time) []window {
	for _, exc := range p.Exceptions {
		if !sameDate(exc.Date, day) {
			continue
		}
		if exc.Closed || exc.StartTime == nil || exc.EndTime == nil {
			return nil
		}
		startMin, err1 := exc.StartTime.Minutes()
		endMin, err2 := exc.EndTime.Minutes()
		if err1 != nil || err2 != nil || endMin <= startMin {
			return nil
		}
		return []window{{startMin: startMin, endMin: endMin}}
	}

	windows := make([]window, 0)
	for _, rule := range p.Rules {
		if !rule.IsCurrent() || !rule.AppliesTo(day) {
			continue
		}
		startMin, err1 := rule.StartTime.Minutes()
		endMin, err2 := rule.EndTime.Minutes()
		if err1 != nil || err2 != nil || endMin <= startMin {
			continue
		}
		windows = append(windows, window{
			startMin:     startMin,
			endMin:       endMin,
			bufferBefore: rule.BufferBeforeMinutes,
			bufferAfter:  rule.BufferAfterMinutes,
		})
	}

	return windows
}

// overlapsBooking проверяет пересечение кандидата с активными бронированиями,
// раздутыми буферами окна
func overlapsBooking(bookings []*domain.Booking, startAt, endAt time.Time, bufBefore, bufAfter int) bool {
	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		bStart := b.StartAt.Add(-time.Duration(bufBefore) * time.Minute)
		bEnd := b.EndAt.Add(time.Duration(bufAfter) * time.Minute)
		if bStart.Before(endAt) && startAt.Before(bEnd) {
			return true
		}
	}
	return false
}

// resolveEnd конвертирует минуту конца слота. Конец может совпадать
// с полуночью следующего дня (окно до 24:00).
func resolveEnd(day time.Time, endMin int, loc *time.Location) (time.Time, error) {
	if endMin >= 24*60 {
		next := day.AddDate(0, 0, 1)
		return ResolveLocal(next.Year(), next.Month(), next.Day(), 0, 0, loc)
	}
	return ResolveLocal(day.Year(), day.Month(), day.Day(), endMin/60, endMin%60, loc)
}

// alignUp выравнивает минуту вверх по сетке
func alignUp(minute, grid int) int {
	if minute%grid == 0 {
		return minute
	}
	return (minute/grid + 1) * grid
}

// dateIn приводит инстант к локальной дате (полночь в loc)
func dateIn(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func sameDate(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Sequence ленивая конечная последовательность слотов.
// Слоты считаются по одному дню за раз - потребитель, которому хватило
// первых N слотов, не оплачивает расчёт остальных дней.
type Sequence struct {
	cal    *Calendar
	params Params
	loc    *time.Location
	from   time.Time
	days   int

	dayIdx int
	buf    []domain.Slot
	bufIdx int
}

// Next возвращает следующий слот. Второе значение false - последовательность кончилась.
func (s *Sequence) Next() (domain.Slot, bool) {
	for s.bufIdx >= len(s.buf) {
		if s.dayIdx >= s.days {
			return domain.Slot{}, false
		}
		day := s.from.AddDate(0, 0, s.dayIdx)
		s.buf = s.cal.daySlots(s.params, s.loc, day)
		s.bufIdx = 0
		s.dayIdx++
	}

	slot := s.buf[s.bufIdx]
	s.bufIdx++
	return slot, true
}

// Reset начинает последовательность сначала
func (s *Sequence) Reset() {
	s.dayIdx = 0
	s.buf = nil
	s.bufIdx = 0
}

// Collect выбирает до limit слотов (limit <= 0 - все)
func (s *Sequence) Collect(limit int) []domain.Slot {
	slots := make([]domain.Slot, 0)
	for {
		if limit > 0 && len(slots) >= limit {
			return slots
		}
		slot, ok := s.Next()
		if !ok {
			return slots
		}
		slots = append(slots, slot)
	}
}
