package analysis

// PassThreshold is the score every emotion must exceed to pass.
const PassThreshold = 5.0

// Passed reports whether scores is non-empty and every score is strictly
// above PassThreshold.
func Passed(scores EmotionScores) bool {
	if len(scores) == 0 {
		return false
	}
	for _, s := range scores {
		if s <= PassThreshold {
			return false
		}
	}
	return true
}
