package quiz

import "math"

// questionScore awards points for one answered question.
//
// Single-answer types get full points on exact, case-sensitive equality, or,
// when the configured answer is a synonym list, on an exact order-independent
// set match. Matching questions earn positional partial credit
// (points * aligned entries / configured entries), so extra
// or missing submitted entries simply score as wrong. Essays always score
// zero here; they are flagged for manual grading.
func questionScore(q Question, ans Answer) float64 {
	switch q.Type {
	case TypeEssay:
		return 0
	case TypeMatching:
		correct := q.Correct.Values
		if len(correct) == 0 {
			return 0
		}
		matched := 0
		for i, want := range correct {
			if i < len(ans.Values) && ans.Values[i] == want {
				matched++
			}
		}
		return float64(q.Points) * float64(matched) / float64(len(correct))
	default:
		if q.Correct.List {
			if setsEqual(ans.Values, q.Correct.Values) {
				return float64(q.Points)
			}
			return 0
		}
		if !ans.List && ans.Single() == q.Correct.Single() {
			return float64(q.Points)
		}
		return 0
	}
}

// setsEqual compares two answer lists as sets; duplicates in the submitted
// list cannot inflate a match.
func setsEqual(submitted, correct []string) bool {
	if len(submitted) != len(correct) {
		return false
	}
	set := make(map[string]struct{}, len(submitted))
	for _, v := range submitted {
		set[v] = struct{}{}
	}
	if len(set) != len(correct) {
		return false
	}
	for _, v := range correct {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

type scoreSummary struct {
	score     float64
	correct   int
	incorrect int
	skipped   int
}

// scoreAttempt grades every question of the quiz against the submitted
// answers. Unanswered questions score zero and count as skipped, not
// incorrect. Answered essays count as neither: they await manual grading.
func scoreAttempt(qz Quiz, answers map[string]Answer) scoreSummary {
	var sum scoreSummary
	for _, q := range qz.Questions {
		ans, answered := answers[q.ID]
		if !answered || ans.IsZero() {
			sum.skipped++
			continue
		}
		pts := questionScore(q, ans)
		sum.score += pts
		if q.Type == TypeEssay {
			continue
		}
		if pts == float64(q.Points) {
			sum.correct++
		} else {
			sum.incorrect++
		}
	}
	return sum
}

// percentage rounds score/total to a whole percent; a zero-point quiz is 0%.
func percentage(score float64, totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Round(score / float64(totalPoints) * 100))
}
