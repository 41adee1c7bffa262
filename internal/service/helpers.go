package service

import (
	"strconv"
	"strings"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// trimmedOrNil returns nil for blank input.
func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
