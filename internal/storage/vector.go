package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeVector serializes an embedding as the bracketed float list both
// pgvector and our sqlite JSON columns accept: "[0.1,0.2,...]".
func EncodeVector(vec []float32) string {
	if len(vec) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.Grow(len(vec) * 10)
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// NullableVector returns the encoded vector, or nil for an empty one.
// pgvector rejects a zero-length literal against a sized column, so
// vectorless rows store SQL NULL instead.
func NullableVector(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	return EncodeVector(vec)
}

// DecodeVector parses the bracketed float list form. An empty or bare "[]"
// input decodes to nil.
func DecodeVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed vector literal %q", truncateForErr(s))
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component: %w", err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}

func truncateForErr(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
