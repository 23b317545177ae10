package service

import "github.com/yishan1331/student-affairs-management/internal/models"

// tierSpan is the width of a tier's student range; unbounded spans compare equal.
type tierSpan struct {
	width     int
	unbounded bool
}

func (a tierSpan) narrowerThan(b tierSpan) bool {
	if a.unbounded || b.unbounded {
		return !a.unbounded && b.unbounded
	}
	return a.width < b.width
}

func (a tierSpan) equal(b tierSpan) bool {
	if a.unbounded || b.unbounded {
		return a.unbounded == b.unbounded
	}
	return a.width == b.width
}

func specificity(tier models.SalaryBase) int {
	score := 0
	if tier.MinStudents != nil {
		score++
	}
	if tier.MaxStudents != nil {
		score++
	}
	return score
}

func spanOf(tier models.SalaryBase) tierSpan {
	if tier.MaxStudents == nil {
		return tierSpan{unbounded: true}
	}
	lower := 0
	if tier.MinStudents != nil {
		lower = *tier.MinStudents
	}
	return tierSpan{width: *tier.MaxStudents - lower}
}

// MatchSalaryBase selects the tier that best fits count.
//
// Candidates are tiers whose inclusive range contains count. The tier defining
// more bounds wins; among equals the narrower span wins, then the lower id, then
// the earlier position in tiers. Nil means nothing matched.
func MatchSalaryBase(tiers []models.SalaryBase, count int) *models.SalaryBase {
	bestIdx := -1
	var bestScore int
	var bestSpan tierSpan

	for i := range tiers {
		tier := tiers[i]
		if !tier.Contains(count) {
			continue
		}
		score := specificity(tier)
		span := spanOf(tier)

		better := bestIdx < 0 ||
			score > bestScore ||
			(score == bestScore && span.narrowerThan(bestSpan)) ||
			(score == bestScore && span.equal(bestSpan) && tier.ID < tiers[bestIdx].ID)
		if better {
			bestIdx, bestScore, bestSpan = i, score, span
		}
	}

	if bestIdx < 0 {
		return nil
	}
	matched := tiers[bestIdx]
	return &matched
}
