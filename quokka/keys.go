package quokka

import (
	"github.com/quokkaq/go-query-cache/mutation"
	"github.com/quokkaq/go-query-cache/querycache"
)

// Cache entity names for the QuokkaQ domain. Key construction goes through
// the helpers below so every consumer lands on the same canonical keys.
const (
	EntityCourse              = "course"
	EntityCourseMetrics       = "courseMetrics"
	EntityThread              = "thread"
	EntityInstructorDashboard = "instructorDashboard"
	EntityStudentDashboard    = "studentDashboard"
	EntityNotifications       = "notifications"
	EntitySearch              = "search"
)

func CourseKey(courseID string) querycache.QueryKey {
	return querycache.Key(EntityCourse, courseID)
}

func CourseMetricsKey(courseID string) querycache.QueryKey {
	return querycache.Key(EntityCourseMetrics, courseID)
}

func ThreadKey(threadID string) querycache.QueryKey {
	return querycache.Key(EntityThread, threadID)
}

func InstructorDashboardKey(userID string) querycache.QueryKey {
	return querycache.Key(EntityInstructorDashboard, userID)
}

func StudentDashboardKey(userID string) querycache.QueryKey {
	return querycache.Key(EntityStudentDashboard, userID)
}

func NotificationsKey(userID string) querycache.QueryKey {
	return querycache.Key(EntityNotifications, userID)
}

// SearchKey scopes a free-text search to one course. The query text is
// normalized by the key registry, so "Binary Search" and "binary search"
// share one entry.
func SearchKey(courseID, query string) querycache.QueryKey {
	return querycache.Key(EntitySearch, courseID, query)
}

// EndorseInvalidation computes the entries an endorse write made stale:
// the thread, the course's metrics, and the dashboards of exactly the
// instructors teaching that course. Instructors of other courses are never
// touched.
func EndorseInvalidation(res EndorseResult) mutation.InvalidationSet {
	set := mutation.InvalidationSet{
		Keys: []querycache.QueryKey{
			ThreadKey(res.ThreadID),
			CourseMetricsKey(res.CourseID),
		},
	}
	for _, id := range res.InstructorIDs {
		set.Keys = append(set.Keys, InstructorDashboardKey(id))
	}
	return set
}

// CreateThreadInvalidation computes the entries a new thread made stale.
// Cached search results for the course are covered by a prefix because any
// query text might now match the new title; the prefix stays scoped to the
// one course.
func CreateThreadInvalidation(res CreateThreadResult) mutation.InvalidationSet {
	set := mutation.InvalidationSet{
		Keys: []querycache.QueryKey{
			CourseMetricsKey(res.CourseID),
		},
		Prefixes: []querycache.QueryKey{
			querycache.Key(EntitySearch, res.CourseID),
		},
	}
	for _, id := range res.InstructorIDs {
		set.Keys = append(set.Keys, InstructorDashboardKey(id))
	}
	return set
}
