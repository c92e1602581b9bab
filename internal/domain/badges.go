package domain

// BadgeSet holds badge names without duplicates. Names are never removed.
type BadgeSet []string

// NewBadgeSet builds a set from names, dropping blanks and duplicates.
func NewBadgeSet(names ...string) BadgeSet {
	var set BadgeSet
	for _, n := range names {
		set.Add(n)
	}
	return set
}

// Has reports whether name is already awarded.
func (b BadgeSet) Has(name string) bool {
	for _, n := range b {
		if n == name {
			return true
		}
	}
	return false
}

// Add appends name if absent and reports whether the set grew.
func (b *BadgeSet) Add(name string) bool {
	if name == "" || b.Has(name) {
		return false
	}
	*b = append(*b, name)
	return true
}

// Clone returns an independent copy.
func (b BadgeSet) Clone() BadgeSet {
	if b == nil {
		return nil
	}
	return append(BadgeSet(nil), b...)
}

// Names returns the badge names as a plain, never-nil slice.
func (b BadgeSet) Names() []string {
	out := make([]string, len(b))
	copy(out, b)
	return out
}
