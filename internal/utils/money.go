package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatRubles renders an integer amount with thousand separators, e.g. "12 450 RUB".
func FormatRubles(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s RUB", sign, formatThousand(amount))
}

// SplitAmount divides total over n parts; the remainder goes to the first part.
func SplitAmount(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	out := make([]int64, n)
	share := total / int64(n)
	for i := range out {
		out[i] = share
	}
	out[0] += total - share*int64(n)
	return out
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(' ')
		}
		out.WriteRune(c)
	}
	return out.String()
}
