package gate

// Aggregate reduces the reports of one commit to a single verdict.
//
// Precedence is Failed > InProgress > Successful > Undefined and does not
// depend on report order. Reports in the Undefined state are ignored.
func Aggregate(reports []BuildReport) BuildState {
	hasPending := false
	hasSuccess := false
	for _, report := range reports {
		switch report.State {
		case Failed:
			return Failed
		case InProgress:
			hasPending = true
		case Successful:
			hasSuccess = true
		}
	}

	if hasPending {
		return InProgress
	}
	if hasSuccess {
		return Successful
	}
	return Undefined
}
