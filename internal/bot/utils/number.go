package utils

import (
	"fmt"
)

// FormatMegabytes formats a byte count as megabytes with two decimals.
func FormatMegabytes(n uint64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/1024/1024)
}
