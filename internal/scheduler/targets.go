package scheduler

// backfillHoursBack enumerates the 8 target time points fetch_historical_24h
// walks, spanning the previous 21 hours in 3-hour steps.
var backfillHoursBack = []int{0, 3, 6, 9, 12, 15, 18, 21}

// runAgeCandidates are the only run ages a target may resolve to, smallest
// preferred first.
var runAgeCandidates = []int{6, 12, 18, 24}

// selectTarget picks a (forecastOffset, runAge) pair satisfying
// runAge - forecastOffset == hoursBack, with forecastOffset a non-negative
// multiple of 3 not exceeding 24, preferring the smallest runAge. ok is
// false if no candidate run age produces a valid offset.
func selectTarget(hoursBack int) (forecastOffset, runAge int, ok bool) {
	for _, ra := range runAgeCandidates {
		fo := ra - hoursBack
		if fo < 0 || fo > 24 || fo%3 != 0 {
			continue
		}
		return fo, ra, true
	}
	return 0, 0, false
}
