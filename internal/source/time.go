package source

import (
	"fmt"
	"time"
)

// localTimeLayout is how the source store records timestamps: naive local
// time with no zone information.
const localTimeLayout = "2006-01-02 15:04:05"

// ParseLocalTime converts a source-store timestamp to Unix milliseconds.
//
// The store writes naive local times, so the zone has to be supplied from
// configuration: offsetHours is the fixed UTC offset the source machine
// recorded in. It is deliberately a parameter, not a constant.
func ParseLocalTime(s string, offsetHours int) (int64, error) {
	zone := time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
	t, err := time.ParseInLocation(localTimeLayout, s, zone)
	if err != nil {
		return 0, fmt.Errorf("parse source time %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}
