package race

import "fmt"

// MaxHours bounds the hours component of a submitted time. It keeps every accepted time
// far inside int64 milliseconds.
const MaxHours = 999

// MaxTotalMs is the largest total a record may hold.
const MaxTotalMs int64 = (MaxHours*3600+59*60+59)*1000 + 999

func Compose(hours, minutes, seconds, milliseconds int64) int64 {
	return ((hours*3600+minutes*60+seconds)*1000 + milliseconds)
}

func Decompose(totalMs int64) (hours, minutes, seconds, milliseconds int64) {
	milliseconds = totalMs % 1000
	totalSeconds := totalMs / 1000
	seconds = totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes = totalMinutes % 60
	hours = totalMinutes / 60
	return hours, minutes, seconds, milliseconds
}

// FormatDuration renders a total like 3723004 as "1h 2m 3s 4ms".
func FormatDuration(totalMs int64) string {
	h, m, s, ms := Decompose(totalMs)
	return fmt.Sprintf("%dh %dm %ds %dms", h, m, s, ms)
}

// FormatClock renders a total as "1:02:03.004", dropping the hour when it is zero.
func FormatClock(totalMs int64) string {
	h, m, s, ms := Decompose(totalMs)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
	}
	return fmt.Sprintf("%d:%02d.%03d", m, s, ms)
}
