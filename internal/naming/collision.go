package naming

import (
	"fmt"
	"strings"
	"sync"
)

// CollisionResolver tracks names claimed by files in one directory and
// resolves duplicates by appending " (N)" before the extension. Claims are
// case-insensitive since common desktop filesystems are. All methods are
// goroutine-safe.
type CollisionResolver struct {
	mu       sync.Mutex
	owners   map[string]string // lowercased name -> owner ID
	counters map[string]int    // lowercased requested name -> next counter
}

// NewCollisionResolver creates a ready-to-use resolver.
func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

// Reserve marks name as taken by owner without resolving. Used for entries
// that already exist before the run.
func (cr *CollisionResolver) Reserve(owner, name string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.owners[strings.ToLower(name)] = owner
}

// Release frees name if owner holds it.
func (cr *CollisionResolver) Release(owner, name string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	key := strings.ToLower(name)
	if cr.owners[key] == owner {
		delete(cr.owners, key)
	}
}

// Resolve returns the name owner should write. If requested is unclaimed or
// already owned by owner it is returned as-is; otherwise "stem (N).ext" with
// the lowest free N starting at 2.
func (cr *CollisionResolver) Resolve(owner, requested string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	key := strings.ToLower(requested)
	if cur, exists := cr.owners[key]; !exists || cur == owner {
		cr.owners[key] = owner
		return requested
	}

	stem, ext := splitExt(requested)

	counter := cr.counters[key]
	if counter < 2 {
		counter = 2
	}

	for {
		candidate := fmt.Sprintf("%s (%d)%s", stem, counter, ext)
		ckey := strings.ToLower(candidate)
		cur, exists := cr.owners[ckey]
		if !exists || cur == owner {
			cr.counters[key] = counter + 1
			cr.owners[ckey] = owner
			return candidate
		}
		counter++
	}
}

func splitExt(name string) (string, string) {
	if HasPDFSuffix(name) {
		return name[:len(name)-len(PDFExt)], name[len(name)-len(PDFExt):]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i], name[i:]
	}
	return name, ""
}
