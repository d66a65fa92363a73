package types

// SignalKind tells which insights parameter a resolved interest feeds.
type SignalKind string

const (
	SignalTag    SignalKind = "tag"
	SignalEntity SignalKind = "entity"
)

// Signal is an interest resolved to a taste-graph identifier.
type Signal struct {
	Interest string     `json:"interest"`
	Kind     SignalKind `json:"kind"`
	ID       string     `json:"id"`
}

// ResolvedSignals holds resolved ids in the order their interests were given.
type ResolvedSignals struct {
	TagIDs    []string
	EntityIDs []string
}

func (r ResolvedSignals) Empty() bool {
	return len(r.TagIDs) == 0 && len(r.EntityIDs) == 0
}

// Add appends the signal to the list matching its kind.
func (r *ResolvedSignals) Add(s Signal) {
	switch s.Kind {
	case SignalTag:
		r.TagIDs = append(r.TagIDs, s.ID)
	case SignalEntity:
		r.EntityIDs = append(r.EntityIDs, s.ID)
	}
}
