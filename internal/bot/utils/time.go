package utils

import (
	"fmt"
	"time"
)

// FooterTimeLayout matches the way the community's locale prints date and time.
const FooterTimeLayout = "2006/1/2 15:04:05"

// FormatFooterTime formats t in loc for embed footers.
func FormatFooterTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(FooterTimeLayout)
}

// RelativeTimestamp formats t as a platform timestamp that renders relative to the viewer.
func RelativeTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

// FormatUptime converts a duration to days, hours, minutes and seconds.
func FormatUptime(d time.Duration) string {
	total := int64(d.Seconds())
	days := total / 86400
	hours := total / 3600 % 24
	minutes := total / 60 % 60
	seconds := total % 60
	return fmt.Sprintf("%d日 %d時間 %d分 %d秒", days, hours, minutes, seconds)
}
