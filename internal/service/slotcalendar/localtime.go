package slotcalendar

import "time"

// ResolveLocal конвертирует локальное время (год/месяц/день + часы/минуты
// в таймзоне loc) в UTC-инстант. Конвертация выполняется на каждую дату
// отдельно, никогда через наивную арифметику смещений - переводы времени
// разрешаются в момент применения правила.
//
// Время в пропущенном часе (spring forward) даёт ErrNonexistentLocalTime,
// в повторённом часе (fall back) - ErrAmbiguousLocalTime. Угадывание
// запрещено: некорректное локальное время отклоняется.
func ResolveLocal(year int, month time.Month, day, hour, minute int, loc *time.Location) (time.Time, error) {
	// Кандидаты UTC-инстантов строятся из смещений зоны в начале и в конце
	// суток: если в этот день был переход, смещения различаются и дают
	// два разных кандидата.
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	_, offStart := dayStart.Zone()
	_, offEnd := dayEnd.Zone()

	wallUTC := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	candidates := []time.Time{wallUTC.Add(-time.Duration(offStart) * time.Second)}
	if offEnd != offStart {
		candidates = append(candidates, wallUTC.Add(-time.Duration(offEnd)*time.Second))
	}

	matched := make([]time.Time, 0, 2)
	for _, c := range candidates {
		local := c.In(loc)
		if local.Year() == year && local.Month() == month && local.Day() == day &&
			local.Hour() == hour && local.Minute() == minute {
			matched = append(matched, c)
		}
	}

	switch len(matched) {
	case 1:
		return matched[0], nil
	case 0:
		return time.Time{}, ErrNonexistentLocalTime
	default:
		return time.Time{}, ErrAmbiguousLocalTime
	}
}
