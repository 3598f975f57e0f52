package hash_ring

import "sort"

// table is the lookup structure shared by Ring and Snapshot. positions is
// kept ascending and holds exactly the keys of claims. Every position keeps
// the nodes that claimed it in insertion order; the last claimant owns it.
type table struct {
	positions []Position
	claims    map[Position][]string
	members   map[string]struct{}
}

func newTable() table {
	return table{
		claims:  make(map[Position][]string),
		members: make(map[string]struct{}),
	}
}

// ceiling returns the index of the smallest position >= p, or len(positions)
// when p lies past the last position.
func (t *table) ceiling(p Position) int {
	return sort.Search(len(t.positions), func(i int) bool {
		return !t.positions[i].Less(p)
	})
}

// insert records a claim of name on pos. When pos is already claimed, name
// becomes its owner and the previous owner is returned with collided set.
func (t *table) insert(pos Position, name string) (previous string, collided bool) {
	if claimants, ok := t.claims[pos]; ok {
		t.claims[pos] = append(claimants, name)
		return claimants[len(claimants)-1], true
	}

	idx := t.ceiling(pos)
	t.positions = append(t.positions, Position{})
	copy(t.positions[idx+1:], t.positions[idx:])
	t.positions[idx] = pos
	t.claims[pos] = []string{name}
	return "", false
}

// remove drops the latest claim of name on pos. The position passes back to
// the previous claimant and leaves the ring once nobody claims it.
func (t *table) remove(pos Position, name string) bool {
	claimants := t.claims[pos]
	i := len(claimants) - 1
	for i >= 0 && claimants[i] != name {
		i--
	}
	if i < 0 {
		return false
	}
	if len(claimants) > 1 {
		t.claims[pos] = append(claimants[:i:i], claimants[i+1:]...)
		return true
	}
	delete(t.claims, pos)

	idx := t.ceiling(pos)
	t.positions = append(t.positions[:idx], t.positions[idx+1:]...)
	return true
}

func (t *table) owner(pos Position) string {
	claimants := t.claims[pos]
	return claimants[len(claimants)-1]
}

// lookup walks clockwise from p to the first stored position, wrapping
// around to the smallest one.
func (t *table) lookup(p Position) (string, bool) {
	if len(t.positions) == 0 {
		return "", false
	}

	idx := t.ceiling(p)
	if idx == len(t.positions) {
		idx = 0
	}
	return t.owner(t.positions[idx]), true
}

// preference returns up to n distinct owners, starting from the owner of p.
func (t *table) preference(p Position, n int) []string {
	if len(t.positions) == 0 || n <= 0 {
		return nil
	}

	idx := t.ceiling(p)
	seen := make(map[string]struct{}, n)
	result := make([]string, 0, n)
	for i := 0; i < len(t.positions) && len(result) < n; i++ {
		owner := t.owner(t.positions[(idx+i)%len(t.positions)])
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		result = append(result, owner)
	}
	return result
}

func (t *table) nodeNames() []string {
	names := make([]string, 0, len(t.members))
	for name := range t.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *table) copyPositions() []Position {
	positions := make([]Position, len(t.positions))
	copy(positions, t.positions)
	return positions
}

func (t *table) clone() table {
	c := table{
		positions: t.copyPositions(),
		claims:    make(map[Position][]string, len(t.claims)),
		members:   make(map[string]struct{}, len(t.members)),
	}
	for pos, claimants := range t.claims {
		c.claims[pos] = append([]string(nil), claimants...)
	}
	for name := range t.members {
		c.members[name] = struct{}{}
	}
	return c
}
