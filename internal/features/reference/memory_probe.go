package reference

import (
	"context"
	"sort"
	"sync"
)

// MemoryProbe is an in-process Probe over a fixed set of entities.
// It implements Cleaner, Relinker and Snapshotter.
type MemoryProbe struct {
	mu       sync.Mutex
	kind     string
	slots    map[string]Cardinality
	entities map[string]map[string][]string // entity id -> slot -> file ids
	err      error

	Calls    int
	Relinked map[string]string // file id -> last relinked path
}

func NewMemoryProbe(kind string, slots ...Slot) *MemoryProbe {
	p := &MemoryProbe{
		kind:     kind,
		slots:    make(map[string]Cardinality),
		entities: make(map[string]map[string][]string),
		Relinked: make(map[string]string),
	}
	for _, s := range slots {
		p.slots[s.Name] = s.Cardinality
	}
	return p
}

func (p *MemoryProbe) Kind() string {
	return p.kind
}

// Attach stores fileID in the slot of entityID. Singular slots are overwritten.
func (p *MemoryProbe) Attach(entityID, slot, fileID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.entities[entityID] == nil {
		p.entities[entityID] = make(map[string][]string)
	}
	if p.slots[slot] == Singular {
		p.entities[entityID][slot] = []string{fileID}
		return
	}
	for _, existing := range p.entities[entityID][slot] {
		if existing == fileID {
			return
		}
	}
	p.entities[entityID][slot] = append(p.entities[entityID][slot], fileID)
}

// FailWith makes every later FindReferences call return err. Pass nil to recover.
func (p *MemoryProbe) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *MemoryProbe) FindReferences(ctx context.Context, fileID string) ([]EntityRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls++
	if p.err != nil {
		return nil, p.err
	}

	var refs []EntityRef
	for _, entityID := range p.sortedEntities() {
		for _, slot := range sortedKeys(p.entities[entityID]) {
			for _, id := range p.entities[entityID][slot] {
				if id == fileID {
					refs = append(refs, EntityRef{Kind: p.kind, EntityID: entityID, Slot: slot})
				}
			}
		}
	}
	return refs, nil
}

func (p *MemoryProbe) CleanReferences(ctx context.Context, fileID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var modified int64
	for _, slots := range p.entities {
		touched := false
		for slot, ids := range slots {
			kept := ids[:0]
			for _, id := range ids {
				if id != fileID {
					kept = append(kept, id)
				}
			}
			if len(kept) != len(ids) {
				touched = true
			}
			if len(kept) == 0 {
				delete(slots, slot)
			} else {
				slots[slot] = kept
			}
		}
		if touched {
			modified++
		}
	}
	return modified, nil
}

func (p *MemoryProbe) RelinkReferences(ctx context.Context, fileID, path, url string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Relinked[fileID] = path
	return 1, nil
}

func (p *MemoryProbe) SnapshotEntities(ctx context.Context, entityIDs []string) ([]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]map[string]any, 0, len(entityIDs))
	for _, id := range entityIDs {
		doc := map[string]any{"_id": id}
		for slot, ids := range p.entities[id] {
			doc[slot] = append([]string(nil), ids...)
		}
		out = append(out, doc)
	}
	return out, nil
}

func (p *MemoryProbe) RelinkedPath(fileID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, ok := p.Relinked[fileID]
	return path, ok
}

func (p *MemoryProbe) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

func (p *MemoryProbe) sortedEntities() []string {
	ids := make([]string, 0, len(p.entities))
	for id := range p.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
