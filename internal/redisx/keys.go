package redisx

import (
	"fmt"
	"time"
)

// Key builders. One place for every key shape the services touch.

// KeySession holds the JSON identity a bearer token resolves to.
func KeySession(token string) string { return "session:" + token }

// KeyShipmentStatus caches the status string for the polling endpoint.
func KeyShipmentStatus(shipmentID string) string { return "shipment_status:" + shipmentID }

// KeyDedup marks an event id as already folded into the counters.
func KeyDedup(eventID string) string { return "dedup:reporter:" + eventID }

// Daily dashboard counters maintained by the reporter.
func KeyScansDaily(day string) string     { return fmt.Sprintf("stats:scans:%s", day) }
func KeyCompletedDaily(day string) string { return fmt.Sprintf("stats:completed:%s", day) }

var (
	TTLSession     = 7 * 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLDailyStats  = 48 * time.Hour
)
