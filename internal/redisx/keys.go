package redisx

import "time"

const (
	// Processing outcome per cart: cart_status:{cart_id} -> {"status":"...","total":"...","error":"..."}
	KeyCartStatus = "cart_status:%s"

	// Dedup event handling: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
