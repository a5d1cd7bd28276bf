// Package utils provides utility functions for the application.
package utils

import (
	"math"

	"github.com/google/uuid"
)

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// ParseUUID parses a UUID string and returns the parsed UUID
func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// RoundMoney rounds a monetary amount to two decimal places
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
