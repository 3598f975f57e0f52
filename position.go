package hash_ring

import "fmt"

// Position is a point on the ring, an unsigned 128-bit integer split into
// its high and low halves. Hashers narrower than 128 bits fill Hi only.
type Position struct {
	Hi uint64
	Lo uint64
}

// Compare returns -1, 0 or 1 when p is less than, equal to or greater than o.
func (p Position) Compare(o Position) int {
	switch {
	case p.Hi < o.Hi:
		return -1
	case p.Hi > o.Hi:
		return 1
	case p.Lo < o.Lo:
		return -1
	case p.Lo > o.Lo:
		return 1
	}
	return 0
}

func (p Position) Less(o Position) bool {
	return p.Compare(o) < 0
}

func (p Position) String() string {
	return fmt.Sprintf("%016x%016x", p.Hi, p.Lo)
}
