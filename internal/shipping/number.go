package shipping

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateShipmentNumber builds a number like SH202601021504057342. Time and
// entropy come in as parameters so tests can pin both.
func GenerateShipmentNumber(now time.Time, rnd *rand.Rand) string {
	return fmt.Sprintf("SH%s%04d", now.UTC().Format("20060102150405"), 1000+rnd.Intn(9000))
}
