package store

import (
	"crypto/rand"
	"sync"
	"time"
)

// pushChars is the 64-character alphabet used for push IDs. It is chosen so
// that the ASCII sort order of IDs matches their creation order.
const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// pushIDGen generates 20-character child keys whose lexicographic order
// follows creation order: 8 characters encode the millisecond timestamp,
// 12 characters are random. IDs generated within the same millisecond
// increment the random suffix so ordering still holds.
type pushIDGen struct {
	mu       sync.Mutex
	lastMs   int64
	lastRand [12]byte // indexes into pushChars
}

// next returns a fresh push ID for the given time.
func (g *pushIDGen) next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := now.UnixMilli()
	if ms == g.lastMs {
		// Same millisecond: increment the previous suffix.
		for i := len(g.lastRand) - 1; i >= 0; i-- {
			if g.lastRand[i] < 63 {
				g.lastRand[i]++
				break
			}
			g.lastRand[i] = 0
		}
	} else {
		var buf [12]byte
		rand.Read(buf[:])
		for i, b := range buf {
			g.lastRand[i] = b & 0x3f
		}
		g.lastMs = ms
	}

	var id [20]byte
	for i := 7; i >= 0; i-- {
		id[i] = pushChars[ms&0x3f]
		ms >>= 6
	}
	for i, r := range g.lastRand {
		id[8+i] = pushChars[r]
	}
	return string(id[:])
}
