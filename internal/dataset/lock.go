package dataset

import (
	"hash/fnv"
	"sync"
)

const hashLockStripes = 64

// hashLocks serializes the operations touching the file of a given content
// hash: lookup, promotion, record insertion and removal.
type hashLocks struct {
	stripes [hashLockStripes]sync.Mutex
}

func (l *hashLocks) lock(hash string) func() {
	h := fnv.New32a()
	h.Write([]byte(hash))

	mutex := &l.stripes[h.Sum32()%hashLockStripes]
	mutex.Lock()

	return mutex.Unlock
}
