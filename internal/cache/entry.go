package cache

import "time"

// entry is the stored representation of one cached payload. payload holds
// whichever form (compressed or raw) the store decided to persist; size is
// the length of that stored form and is what capacity accounting uses.
type entry struct {
	key        string
	payload    []byte
	codec      Codec
	size       int64
	insertedAt time.Time
	lastAccess time.Time
	ttl        time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.After(e.insertedAt.Add(e.ttl))
}
