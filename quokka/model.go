package quokka

import "time"

// Role distinguishes the two QuokkaQ user populations.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// ThreadStatus tracks a discussion thread through its answer lifecycle.
type ThreadStatus string

const (
	StatusOpen     ThreadStatus = "open"
	StatusAnswered ThreadStatus = "answered"
	StatusResolved ThreadStatus = "resolved"
)

// User is a platform account.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Course is one academic course with its enrolled size and teaching staff.
type Course struct {
	ID              string   `json:"id"`
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	EnrollmentCount int      `json:"enrollmentCount"`
	InstructorIDs   []string `json:"instructorIds"`
}

// Thread is a question thread in a course forum.
type Thread struct {
	ID          string       `json:"id"`
	CourseID    string       `json:"courseId"`
	AuthorID    string       `json:"authorId"`
	Title       string       `json:"title"`
	Status      ThreadStatus `json:"status"`
	HasAIAnswer bool         `json:"hasAIAnswer"`
	Views       int          `json:"views"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Post is a human reply within a thread.
type Post struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	Endorsed  bool      `json:"endorsed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Citation backs an AI answer with course material.
type Citation struct {
	Source    string `json:"source"`
	Relevance int    `json:"relevance"`
}

// AIAnswer is the assistant's generated answer for a thread, with the
// endorsement counters derived by the engagement model.
type AIAnswer struct {
	ID                     string     `json:"id"`
	ThreadID               string     `json:"threadId"`
	ConfidenceScore        int        `json:"confidenceScore"`
	Citations              []Citation `json:"citations"`
	StudentEndorsements    int        `json:"studentEndorsements"`
	InstructorEndorsements int        `json:"instructorEndorsements"`
	TotalEndorsements      int        `json:"totalEndorsements"`
	InstructorEndorsed     bool       `json:"instructorEndorsed"`
}

// Notification is a per-user inbox item.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// InstructorDashboard aggregates an instructor's courses into the numbers
// and sparkline the dashboard page renders.
type InstructorDashboard struct {
	UserID            string    `json:"userId"`
	CourseIDs         []string  `json:"courseIds"`
	OpenThreads       int       `json:"openThreads"`
	UnansweredThreads int       `json:"unansweredThreads"`
	EndorsedAnswers   int       `json:"endorsedAnswers"`
	WeeklyViews       []int     `json:"weeklyViews"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// StudentDashboard aggregates a student's activity.
type StudentDashboard struct {
	UserID              string    `json:"userId"`
	MyThreads           int       `json:"myThreads"`
	ResolvedThreads     int       `json:"resolvedThreads"`
	UnreadNotifications int       `json:"unreadNotifications"`
	GeneratedAt         time.Time `json:"generatedAt"`
}

// CourseMetrics summarizes one course's forum activity.
type CourseMetrics struct {
	CourseID      string  `json:"courseId"`
	ThreadCount   int     `json:"threadCount"`
	ResolvedCount int     `json:"resolvedCount"`
	AnsweredCount int     `json:"answeredCount"`
	TotalViews    int     `json:"totalViews"`
	AvgViews      float64 `json:"avgViews"`
	ViewTrend     []int   `json:"viewTrend"`
}

// EndorseResult is the payload returned by an endorse write. It carries the
// scope ids an invalidation set needs: the course and exactly the
// instructors teaching it.
type EndorseResult struct {
	CourseID      string   `json:"courseId"`
	ThreadID      string   `json:"threadId"`
	PostID        string   `json:"postId"`
	InstructorIDs []string `json:"instructorIds"`
}

// CreateThreadResult is the payload returned by a thread creation write.
type CreateThreadResult struct {
	Thread        Thread   `json:"thread"`
	CourseID      string   `json:"courseId"`
	InstructorIDs []string `json:"instructorIds"`
}
