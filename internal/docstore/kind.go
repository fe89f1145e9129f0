package docstore

// Kind selects which of the two disjoint chunk collections a document
// belongs to. JD and CV chunks share a schema but never share a collection.
type Kind string

const (
	KindJD Kind = "jd"
	KindCV Kind = "cv"
)

// Collection returns the vector index collection name for this kind.
func (k Kind) Collection() string {
	switch k {
	case KindJD:
		return "jd_chunks"
	default:
		return "cv_chunks"
	}
}

// Valid reports whether k is a recognized document kind.
func (k Kind) Valid() bool {
	return k == KindJD || k == KindCV
}
