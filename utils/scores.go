package utils

// Rank labels, ordered by the points needed to reach them
const (
	RankNovice     = "novice"
	RankAnalyst    = "analyst"
	RankSpecialist = "specialist"
	RankExpert     = "expert"
	RankElite      = "elite"
)

// RankForPoints maps a total score onto the caller's rank label
func RankForPoints(points int) string {
	switch {
	case points >= 2000:
		return RankElite
	case points >= 1000:
		return RankExpert
	case points >= 500:
		return RankSpecialist
	case points >= 150:
		return RankAnalyst
	}
	return RankNovice
}

// CompletionRate returns completed/total as a percentage, 0 when total is 0
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}
