package quokka

import "math/rand"

// Engagement model for the seeded demo data. Views and endorsement counts
// follow the quality/age formulas from the platform's engagement research:
// well-answered threads in large courses accumulate more views, and only
// high-confidence, well-cited AI answers attract instructor endorsements.

const (
	maxThreadViews = 200
	maxAgeFactor   = 2.5
)

// courseSizeFactor scales engagement by enrollment: small courses (<35)
// dampen it, large courses (>50) amplify it.
func courseSizeFactor(enrollment int) float64 {
	switch {
	case enrollment < 35:
		return 0.8
	case enrollment <= 50:
		return 1.0
	default:
		return 1.3
	}
}

// baseViews draws the starting view count for a thread by status.
func baseViews(rng *rand.Rand, status ThreadStatus) int {
	switch status {
	case StatusResolved:
		return 20 + rng.Intn(16) // 20-35
	case StatusAnswered:
		return 15 + rng.Intn(11) // 15-25
	default:
		return 8 + rng.Intn(8) // 8-15
	}
}

// qualityFactor rewards threads that got real help: an AI answer, replies,
// an endorsed post, an instructor reply, and resolution each add weight.
func qualityFactor(thread Thread, posts []Post, instructorReply bool) float64 {
	score := 0.0
	if thread.HasAIAnswer {
		score += 0.3
	}
	if len(posts) > 0 {
		score += 0.2
	}
	for _, p := range posts {
		if p.Endorsed {
			score += 0.3
			break
		}
	}
	if instructorReply {
		score += 0.2
	}
	if thread.Status == StatusResolved {
		score += 0.25
	}
	return 1.0 + score
}

// ageFactor grows views with thread age, half a multiple per week, capped.
func ageFactor(daysOld int) float64 {
	f := 1 + (float64(daysOld)/7)*0.5
	if f > maxAgeFactor {
		return maxAgeFactor
	}
	return f
}

// threadViews combines base, age, quality, and course-size factors into the
// thread's view count, capped at maxThreadViews.
func threadViews(rng *rand.Rand, thread Thread, posts []Post, course Course, instructorReply bool, daysOld int) int {
	base := float64(baseViews(rng, thread.Status))
	views := int(base * ageFactor(daysOld) * qualityFactor(thread, posts, instructorReply) * courseSizeFactor(course.EnrollmentCount))
	if views > maxThreadViews {
		return maxThreadViews
	}
	return views
}

// aiStudentEndorsements derives how many students endorsed an AI answer
// from its confidence and the thread's reach.
func aiStudentEndorsements(rng *rand.Rand, confidence, views int) int {
	var base float64
	switch {
	case confidence >= 85:
		base = float64(confidence) / 100 * float64(views) / 10 * (0.3 + rng.Float64()*0.3)
	case confidence >= 60:
		base = float64(confidence) / 100 * float64(views) / 20 * (0.2 + rng.Float64()*0.2)
	default:
		base = rng.Float64() * 2
	}
	if base < 0 {
		return 0
	}
	return int(base)
}

// instructorShouldEndorse gates instructor endorsement on confidence,
// citation quality, thread age, and reach; 40% of qualifying answers get it.
func instructorShouldEndorse(rng *rand.Rand, answer AIAnswer, views, daysOld int) bool {
	if answer.ConfidenceScore < 80 {
		return false
	}
	qualityCitations := 0
	for _, c := range answer.Citations {
		if c.Relevance >= 80 {
			qualityCitations++
		}
	}
	if qualityCitations < 2 {
		return false
	}
	if daysOld < 1 {
		return false
	}
	if views < 20 {
		return false
	}
	return rng.Float64() < 0.4
}

// applyAIEndorsements fills in the endorsement counters for one AI answer.
func applyAIEndorsements(rng *rand.Rand, answer *AIAnswer, views, daysOld int) {
	answer.StudentEndorsements = aiStudentEndorsements(rng, answer.ConfidenceScore, views)
	if instructorShouldEndorse(rng, *answer, views, daysOld) {
		answer.InstructorEndorsements = 1
		answer.InstructorEndorsed = true
	}

	total := answer.StudentEndorsements + answer.InstructorEndorsements
	if answer.InstructorEndorsed {
		// Instructor endorsement pulls extra student attention.
		total += int(float64(answer.StudentEndorsements) * 0.3)
	}
	answer.TotalEndorsements = total
}
