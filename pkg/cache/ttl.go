package cache

import "time"

// TTL tiers. A query picks its tier from the volatility of the data behind it;
// TTLs are never computed.
const (
	// TTLShort is for aggregates that change on almost every write (stats, progress).
	TTLShort = 5 * time.Minute

	// TTLDefault is for entities and listings.
	TTLDefault = 1 * time.Hour

	// TTLLong is for reference data such as category trees.
	TTLLong = 4 * time.Hour

	// TTLVeryLong is for data that only changes through admin action.
	TTLVeryLong = 24 * time.Hour
)
