package ratelimit

import "strconv"

// formatação dos valores numéricos dos headers X-RateLimit-*.

func formatInt(v int) string { return strconv.Itoa(v) }

// sem notação científica para valores comuns (ex: 0.0333)
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
