package postgres

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EncodeVector renders an embedding as a pgvector text literal, e.g. "[0.1,0.2]".
func EncodeVector(v []float32) (string, error) {
	if len(v) == 0 {
		return "", fmt.Errorf("embedding is empty")
	}
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return "", fmt.Errorf("embedding contains invalid value at %d", i)
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String(), nil
}
