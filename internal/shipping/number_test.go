package shipping

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateShipmentNumber(t *testing.T) {
	at := time.Date(2026, 8, 28, 9, 30, 15, 0, time.UTC)

	got := GenerateShipmentNumber(at, rand.New(rand.NewSource(42)))
	assert.Regexp(t, `^SH20260828093015\d{4}$`, got)

	// same time and seed, same number
	again := GenerateShipmentNumber(at, rand.New(rand.NewSource(42)))
	assert.Equal(t, got, again)

	// suffix never leaves four digits
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		n := GenerateShipmentNumber(at, rnd)
		assert.Len(t, n, len("SH")+14+4)
	}
}
