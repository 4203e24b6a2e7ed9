package revenue

// Split divides gross between the teacher and the agency. The teacher amount is floored and the
// agency gets the remainder, so both always add up to gross.
func Split(gross int64, teacherPercent int) (teacherAmount, agencyAmount int64) {
	if teacherPercent < 0 {
		teacherPercent = 0
	} else if teacherPercent > 100 {
		teacherPercent = 100
	}
	if gross <= 0 {
		return 0, 0
	}
	teacherAmount = gross * int64(teacherPercent) / 100
	return teacherAmount, gross - teacherAmount
}

// balance computes the available amount of a teacher.
func balance(earned, paid, pending int64) int64 {
	return earned - paid - pending
}
