package timeutil

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const defaultZone = "Asia/Shanghai"

// LoadLocation resolves a zone name. The tz database is embedded, so an error
// means the name itself is wrong.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = defaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// DayStamp formats t as YYYYMMDD in loc. Used for per-day file names.
func DayStamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("20060102")
}
