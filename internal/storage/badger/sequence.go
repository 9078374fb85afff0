package badger

import "fmt"

// nextID allocates the next value in a monotonic per-entity sequence
// backed by badger's native Sequence, giving each entity the "stable
// integer id" spec §3 requires without a central autoincrement table.
func (d *DB) nextID(entity string) (int64, error) {
	seq, err := d.store.Badger().GetSequence([]byte("seq:"+entity), 100)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", entity, err)
	}
	defer seq.Release()
	id, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", entity, err)
	}
	// Sequence starts at 0; shift so the first id is 1.
	return int64(id) + 1, nil
}
