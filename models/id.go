package models

import "sync"

// A sequential region id generator. Ids released with Reuse are handed out
// again, most recently released first, before new ids are minted.
type SequentialIDGenerator struct {
	mutex       sync.Mutex
	currentID   uint32
	reusableIDs []uint32
}

// New returns a region id.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if n := len(g.reusableIDs); n != 0 {
		id := g.reusableIDs[n-1]
		g.reusableIDs = g.reusableIDs[:n-1]
		return id
	}

	g.currentID++
	return g.currentID
}

// Reuse marks the given id as reusable.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.reusableIDs = append(g.reusableIDs, id)
}

// Reset forgets every id handed out so far.
func (g *SequentialIDGenerator) Reset() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.currentID = 0
	g.reusableIDs = nil
}
