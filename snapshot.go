package hash_ring

// Snapshot is an immutable point-in-time copy of a Ring. It is safe for
// concurrent use without locking and is what migration planning compares.
type Snapshot struct {
	replicas  int
	encryptor Encryptor
	table     table
}

func (s *Snapshot) GetNode(key string) (string, bool) {
	return s.table.lookup(s.encryptor.Encrypt(key))
}

func (s *Snapshot) GetNodes(key string, n int) []string {
	return s.table.preference(s.encryptor.Encrypt(key), n)
}

func (s *Snapshot) Nodes() []string {
	return s.table.nodeNames()
}

func (s *Snapshot) Positions() []Position {
	return s.table.copyPositions()
}

func (s *Snapshot) Replicas() int {
	return s.replicas
}

func (s *Snapshot) Len() int {
	return len(s.table.members)
}
