package txn

// Oracle answers "what state is this transaction in" for the visibility
// filter, decoupling it from any particular Manager instance.
type Oracle func(id ID) (Status, error)

// StatusOracle adapts a Manager to the Oracle signature.
func (m *Manager) StatusOracle() Oracle {
	return m.Status
}

// Visible applies the six-rule MVCC visibility decision table (§4.7) to a
// row's (min, max) transaction bounds, from the point of view of viewer.
// It never mutates the row; hint-bit caching is not part of this format.
func Visible(viewer ID, min, max ID, status Oracle) (bool, error) {
	if min == viewer {
		return max == 0 || max != viewer, nil
	}
	if min > viewer {
		return false, nil
	}
	minStatus, err := status(min)
	if err != nil {
		return false, err
	}
	if minStatus != Committed {
		return false, nil
	}
	if max == 0 {
		return true, nil
	}
	if max > viewer {
		return true, nil
	}
	maxStatus, err := status(max)
	if err != nil {
		return false, err
	}
	if maxStatus != Committed {
		return true, nil
	}
	return false, nil
}
