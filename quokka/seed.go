package quokka

import (
	"fmt"
	"math/rand"
	"time"
)

// DefaultSeed reproduces the demo dataset the platform ships with.
const DefaultSeed int64 = 42

// demoNow is the frozen "now" of the demo dataset; thread ages and trends
// are computed against it so the data looks the same on every run.
var demoNow = time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)

// seedData is the fully generated dataset, built in deterministic order
// before being loaded into the source's concurrent maps.
type seedData struct {
	users         []User
	courses       []Course
	threads       []Thread
	posts         []Post
	aiAnswers     []AIAnswer
	notifications []Notification
}

var threadTitles = []string{
	"Binary search complexity proof",
	"Why does my linked list segfault",
	"Clarification on lecture 7 recurrences",
	"Heap vs BST for priority queues",
	"Amortized analysis of dynamic arrays",
	"Midterm practice problem 3b",
	"Is quicksort stable",
	"Graph coloring homework hint",
	"Understanding cache locality",
	"Project 2 test harness failing",
}

// generate builds the deterministic demo dataset for the given seed.
// Everything is derived from one rand source consumed in a fixed order, so
// equal seeds always produce byte-for-byte equal data.
func generate(seed int64) seedData {
	rng := rand.New(rand.NewSource(seed))
	var data seedData

	instructors := []User{
		{ID: "instructor-1", Name: "Dr. Priya Raman", Role: RoleInstructor},
		{ID: "instructor-2", Name: "Prof. Alan Okafor", Role: RoleInstructor},
		{ID: "instructor-3", Name: "Dr. Mei-Ling Chu", Role: RoleInstructor},
	}
	students := make([]User, 0, 8)
	for i := 1; i <= 8; i++ {
		students = append(students, User{
			ID:   fmt.Sprintf("student-%d", i),
			Name: fmt.Sprintf("Student %d", i),
			Role: RoleStudent,
		})
	}
	data.users = append(append(data.users, instructors...), students...)

	data.courses = []Course{
		{ID: "course-cs101", Code: "CS101", Name: "Intro to Programming", EnrollmentCount: 28, InstructorIDs: []string{"instructor-1"}},
		{ID: "course-cs201", Code: "CS201", Name: "Data Structures", EnrollmentCount: 48, InstructorIDs: []string{"instructor-1", "instructor-2"}},
		{ID: "course-cs301", Code: "CS301", Name: "Algorithms", EnrollmentCount: 120, InstructorIDs: []string{"instructor-2", "instructor-3"}},
	}

	statuses := []ThreadStatus{StatusOpen, StatusAnswered, StatusResolved}
	threadSeq := 0
	for _, course := range data.courses {
		count := 4 + rng.Intn(4)
		for i := 0; i < count; i++ {
			threadSeq++
			author := students[rng.Intn(len(students))]
			thread := Thread{
				ID:          fmt.Sprintf("thread-%d", threadSeq),
				CourseID:    course.ID,
				AuthorID:    author.ID,
				Title:       threadTitles[rng.Intn(len(threadTitles))],
				Status:      statuses[rng.Intn(len(statuses))],
				HasAIAnswer: rng.Float64() < 0.6,
				CreatedAt:   demoNow.AddDate(0, 0, -(1 + rng.Intn(21))),
			}

			posts := generatePosts(rng, thread, course, students)
			data.posts = append(data.posts, posts...)

			daysOld := daysSince(thread.CreatedAt)
			thread.Views = threadViews(rng, thread, posts, course, hasInstructorReply(posts), daysOld)

			if thread.HasAIAnswer {
				answer := generateAIAnswer(rng, thread)
				applyAIEndorsements(rng, &answer, thread.Views, daysOld)
				data.aiAnswers = append(data.aiAnswers, answer)
			}

			data.threads = append(data.threads, thread)
		}
	}

	notifSeq := 0
	for _, student := range students {
		count := 1 + rng.Intn(3)
		for i := 0; i < count; i++ {
			notifSeq++
			data.notifications = append(data.notifications, Notification{
				ID:        fmt.Sprintf("notification-%d", notifSeq),
				UserID:    student.ID,
				Message:   "New activity in a thread you follow",
				Read:      rng.Float64() < 0.5,
				CreatedAt: demoNow.Add(-time.Duration(1+rng.Intn(72)) * time.Hour),
			})
		}
	}

	return data
}

func generatePosts(rng *rand.Rand, thread Thread, course Course, students []User) []Post {
	count := rng.Intn(4)
	if thread.Status != StatusOpen && count == 0 {
		count = 1 // answered threads have at least one reply
	}

	posts := make([]Post, 0, count)
	for i := 0; i < count; i++ {
		authorID := students[rng.Intn(len(students))].ID
		// Instructors answer roughly a third of replies in their courses.
		if rng.Float64() < 0.35 {
			authorID = course.InstructorIDs[rng.Intn(len(course.InstructorIDs))]
		}
		posts = append(posts, Post{
			ID:        fmt.Sprintf("%s-post-%d", thread.ID, i+1),
			ThreadID:  thread.ID,
			AuthorID:  authorID,
			Body:      "reply body",
			Endorsed:  thread.Status == StatusResolved && i == 0,
			CreatedAt: thread.CreatedAt.Add(time.Duration(1+rng.Intn(48)) * time.Hour),
		})
	}
	return posts
}

func generateAIAnswer(rng *rand.Rand, thread Thread) AIAnswer {
	citations := make([]Citation, 1+rng.Intn(3))
	for i := range citations {
		citations[i] = Citation{
			Source:    fmt.Sprintf("lecture-%d", 1+rng.Intn(12)),
			Relevance: 50 + rng.Intn(51),
		}
	}
	return AIAnswer{
		ID:              thread.ID + "-ai",
		ThreadID:        thread.ID,
		ConfidenceScore: 40 + rng.Intn(60),
		Citations:       citations,
	}
}

func hasInstructorReply(posts []Post) bool {
	for _, p := range posts {
		if isInstructorID(p.AuthorID) {
			return true
		}
	}
	return false
}

func isInstructorID(id string) bool {
	return len(id) > len("instructor-") && id[:len("instructor-")] == "instructor-"
}

// daysSince measures age against the demo snapshot instant. Threads created
// at runtime postdate the snapshot and count as zero days old.
func daysSince(t time.Time) int {
	d := int(demoNow.Sub(t).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
