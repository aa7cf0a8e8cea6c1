package model

// CountsAsDown decides whether a ride observation counts toward downtime.
//
// Disney and Universal feeds carry a reliable explicit status, so for
// those parks only an explicit DOWN counts; CLOSED there means a
// scheduled closure, not a breakdown. Other operators' feeds are
// looser: DOWN and CLOSED both count, and a missing status counts when
// the ride is computed not open while the park is open.
func CountsAsDown(strictVendor bool, status *RideStatus, computedOpen bool) bool {
	if strictVendor {
		return status != nil && *status == StatusDown
	}
	if status != nil {
		return *status == StatusDown || *status == StatusClosed
	}
	return !computedOpen
}

// StrictVendor reports whether the park uses the strict down rule.
func StrictVendor(isDisney, isUniversal bool) bool {
	return isDisney || isUniversal
}
