package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// weekdayByCode maps weekday codes to Go weekdays. Stored classes carry the
// two-letter iCalendar codes, but older rows use three-letter or full-name
// aliases, so all three spellings resolve.
var weekdayByCode = map[string]time.Weekday{
	"MO": time.Monday, "MON": time.Monday, "MONDAY": time.Monday,
	"TU": time.Tuesday, "TUE": time.Tuesday, "TUES": time.Tuesday, "TUESDAY": time.Tuesday,
	"WE": time.Wednesday, "WED": time.Wednesday, "WEDNESDAY": time.Wednesday,
	"TH": time.Thursday, "THU": time.Thursday, "THUR": time.Thursday, "THURS": time.Thursday, "THURSDAY": time.Thursday,
	"FR": time.Friday, "FRI": time.Friday, "FRIDAY": time.Friday,
	"SA": time.Saturday, "SAT": time.Saturday, "SATURDAY": time.Saturday,
	"SU": time.Sunday, "SUN": time.Sunday, "SUNDAY": time.Sunday,
}

// WeekdayFromCode resolves a weekday code or alias.
func WeekdayFromCode(code string) (time.Weekday, error) {
	day, ok := weekdayByCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday code %q", code)
	}
	return day, nil
}

// CivilZone returns the fixed zone classes schedule their civil times in.
func CivilZone(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

// AlignToWeekday moves t forward to the next occurrence of the target
// weekday, keeping t unchanged when it already falls on that day.
func AlignToWeekday(t time.Time, target time.Weekday) time.Time {
	delta := (int(target) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, delta)
}

// ParseClockTime splits an HH:MM string.
func ParseClockTime(clock string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", clock)
	}
	return hour, minute, nil
}

// CombineCivil builds the UTC instant for a civil date and clock time in the
// given zone.
func CombineCivil(date time.Time, hour, minute int, zone *time.Location) time.Time {
	y, m, d := date.In(zone).Date()
	return time.Date(y, m, d, hour, minute, 0, 0, zone).UTC()
}
