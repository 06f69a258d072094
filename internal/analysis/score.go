package analysis

// Score reduces a SkillMatch to an integer in [0, 100]: the floor of the
// share of present skills, hard and soft weighted equally per entry.
// An empty match scores 0.
func Score(match SkillMatch) int {
	total := len(match.Hard) + len(match.Soft)
	if total == 0 {
		return 0
	}
	return 100 * match.PresentCount() / total
}
