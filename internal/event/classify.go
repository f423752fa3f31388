package event

// Classification tags how one conversion relates to previously stored
// state.
type Classification string

const (
	// ClassNew means no stored record exists for the identifier.
	ClassNew Classification = "new"
	// ClassDuplicate means a record exists and both amounts match.
	ClassDuplicate Classification = "duplicate"
	// ClassUpdated means a record exists but an amount changed.
	ClassUpdated Classification = "updated"
)

// Match is the outcome of classifying one conversion against stored
// state. There is exactly one concrete type per classification, and the
// prior Record travels only with the variants that have one.
type Match interface {
	Class() Classification
}

// NewMatch marks an identifier seen for the first time.
type NewMatch struct{}

// Class implements Match.
func (NewMatch) Class() Classification { return ClassNew }

// DuplicateMatch marks an exact replay of a stored conversion.
type DuplicateMatch struct {
	Prior Record
}

// Class implements Match.
func (DuplicateMatch) Class() Classification { return ClassDuplicate }

// UpdatedMatch marks a stored conversion whose amounts changed.
type UpdatedMatch struct {
	Prior Record
}

// Class implements Match.
func (UpdatedMatch) Class() Classification { return ClassUpdated }

// Classify compares a conversion against its stored record, if any.
// prior == nil means no record exists. The comparison is numeric:
// an event amount of "100.00" matches a stored 100.
func Classify(ev Event, prior *Record) Match {
	if prior == nil {
		return NewMatch{}
	}
	if SameAmounts(ev, *prior) {
		return DuplicateMatch{Prior: *prior}
	}
	return UpdatedMatch{Prior: *prior}
}
