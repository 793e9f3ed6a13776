package quokka

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/viccon/sturdyc"

	"github.com/quokkaq/go-query-cache/querycache"
)

// Config holds the construction options for the mock data source.
type Config struct {
	// Seed drives the deterministic demo dataset. Zero selects DefaultSeed.
	Seed int64

	// Latency is an artificial delay applied to every operation, useful in
	// demos to make stale-while-revalidate visible. Zero means no delay.
	Latency time.Duration

	// Logger receives debug events. The zero value is silent.
	Logger zerolog.Logger
}

// DefaultConfig returns the demo configuration.
func DefaultConfig() Config {
	return Config{Seed: DefaultSeed, Logger: zerolog.Nop()}
}

// Source is the QuokkaQ mock backend: the data source collaborator the
// query cache layer talks to. Reads are idempotent and safe to de-duplicate;
// writes return payloads carrying the scope ids (course, instructors) that
// narrow invalidation needs.
//
// Raw collections live in concurrent maps seeded deterministically. Derived
// aggregates (dashboards, course metrics) are memoized in a private sturdyc
// cache that writes purge; that memoization is an internal detail, invisible
// to the cache layer above.
type Source struct {
	cfg Config
	log zerolog.Logger

	users         *xsync.MapOf[string, User]
	courses       *xsync.MapOf[string, Course]
	threads       *xsync.MapOf[string, Thread]
	posts         *xsync.MapOf[string, Post]
	aiAnswers     *xsync.MapOf[string, AIAnswer]
	notifications *xsync.MapOf[string, Notification]

	derived *sturdyc.Client[any]

	// writeMu serializes writes that touch multiple collections.
	writeMu  sync.Mutex
	writeErr error
}

// New builds a Source seeded from cfg.Seed.
func New(cfg Config) *Source {
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}

	s := &Source{
		cfg:           cfg,
		log:           cfg.Logger,
		users:         xsync.NewMapOf[string, User](),
		courses:       xsync.NewMapOf[string, Course](),
		threads:       xsync.NewMapOf[string, Thread](),
		posts:         xsync.NewMapOf[string, Post](),
		aiAnswers:     xsync.NewMapOf[string, AIAnswer](),
		notifications: xsync.NewMapOf[string, Notification](),
		derived:       sturdyc.New[any](1024, 64, time.Minute, 10),
	}

	data := generate(cfg.Seed)
	for _, u := range data.users {
		s.users.Store(u.ID, u)
	}
	for _, c := range data.courses {
		s.courses.Store(c.ID, c)
	}
	for _, th := range data.threads {
		s.threads.Store(th.ID, th)
	}
	for _, p := range data.posts {
		s.posts.Store(p.ID, p)
	}
	for _, a := range data.aiAnswers {
		s.aiAnswers.Store(a.ID, a)
	}
	for _, n := range data.notifications {
		s.notifications.Store(n.ID, n)
	}

	s.log.Debug().Int64("seed", cfg.Seed).Int("threads", len(data.threads)).Msg("mock data source seeded")
	return s
}

// SetWriteError injects a failure for every subsequent write operation.
// Pass nil to clear it. Used to exercise mutation rollback paths.
func (s *Source) SetWriteError(err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.writeErr = err
}

// Course returns one course by id.
func (s *Source) Course(ctx context.Context, id string) (Course, error) {
	if err := s.pause(ctx); err != nil {
		return Course{}, err
	}
	c, ok := s.courses.Load(id)
	if !ok {
		return Course{}, fmt.Errorf("quokka: course %q not found", id)
	}
	return c, nil
}

// User returns one user by id.
func (s *Source) User(ctx context.Context, id string) (User, error) {
	if err := s.pause(ctx); err != nil {
		return User{}, err
	}
	u, ok := s.users.Load(id)
	if !ok {
		return User{}, fmt.Errorf("quokka: user %q not found", id)
	}
	return u, nil
}

// Thread returns one thread by id.
func (s *Source) Thread(ctx context.Context, id string) (Thread, error) {
	if err := s.pause(ctx); err != nil {
		return Thread{}, err
	}
	th, ok := s.threads.Load(id)
	if !ok {
		return Thread{}, fmt.Errorf("quokka: thread %q not found", id)
	}
	return th, nil
}

// ThreadPosts returns a thread's replies in posting order.
func (s *Source) ThreadPosts(ctx context.Context, threadID string) ([]Post, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}

	var out []Post
	s.posts.Range(func(_ string, p Post) bool {
		if p.ThreadID == threadID {
			out = append(out, p)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Notifications returns a user's inbox, newest first.
func (s *Source) Notifications(ctx context.Context, userID string) ([]Notification, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}

	var out []Notification
	s.notifications.Range(func(_ string, n Notification) bool {
		if n.UserID == userID {
			out = append(out, n)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SearchThreads returns the threads in a course whose title contains the
// query, matched case-insensitively after whitespace normalization.
func (s *Source) SearchThreads(ctx context.Context, courseID, query string) ([]Thread, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}

	needle := querycache.NormalizeText(query)
	var out []Thread
	s.threads.Range(func(_ string, th Thread) bool {
		if th.CourseID == courseID && strings.Contains(querycache.NormalizeText(th.Title), needle) {
			out = append(out, th)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InstructorDashboard computes the dashboard aggregate for one instructor,
// memoized in the private derived cache.
func (s *Source) InstructorDashboard(ctx context.Context, userID string) (InstructorDashboard, error) {
	if err := s.pause(ctx); err != nil {
		return InstructorDashboard{}, err
	}

	v, err := s.derived.GetOrFetch(ctx, derivedKey("instructorDashboard", userID), func(ctx context.Context) (any, error) {
		return s.buildInstructorDashboard(userID)
	})
	if err != nil {
		return InstructorDashboard{}, err
	}
	return v.(InstructorDashboard), nil
}

// StudentDashboard computes the dashboard aggregate for one student,
// memoized in the private derived cache.
func (s *Source) StudentDashboard(ctx context.Context, userID string) (StudentDashboard, error) {
	if err := s.pause(ctx); err != nil {
		return StudentDashboard{}, err
	}

	v, err := s.derived.GetOrFetch(ctx, derivedKey("studentDashboard", userID), func(ctx context.Context) (any, error) {
		return s.buildStudentDashboard(userID)
	})
	if err != nil {
		return StudentDashboard{}, err
	}
	return v.(StudentDashboard), nil
}

// CourseMetrics computes the activity summary for one course, memoized in
// the private derived cache.
func (s *Source) CourseMetrics(ctx context.Context, courseID string) (CourseMetrics, error) {
	if err := s.pause(ctx); err != nil {
		return CourseMetrics{}, err
	}

	v, err := s.derived.GetOrFetch(ctx, derivedKey("courseMetrics", courseID), func(ctx context.Context) (any, error) {
		return s.buildCourseMetrics(courseID)
	})
	if err != nil {
		return CourseMetrics{}, err
	}
	return v.(CourseMetrics), nil
}

// EndorsePost marks a post as endorsed and moves its thread out of the open
// state. The result names the course and its instructors so the caller can
// invalidate exactly the affected dashboards.
func (s *Source) EndorsePost(ctx context.Context, courseID, postID string) (EndorseResult, error) {
	if err := s.pause(ctx); err != nil {
		return EndorseResult{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeErr != nil {
		return EndorseResult{}, s.writeErr
	}

	post, ok := s.posts.Load(postID)
	if !ok {
		return EndorseResult{}, fmt.Errorf("quokka: post %q not found", postID)
	}
	thread, ok := s.threads.Load(post.ThreadID)
	if !ok || thread.CourseID != courseID {
		return EndorseResult{}, fmt.Errorf("quokka: post %q does not belong to course %q", postID, courseID)
	}
	course, ok := s.courses.Load(courseID)
	if !ok {
		return EndorseResult{}, fmt.Errorf("quokka: course %q not found", courseID)
	}

	post.Endorsed = true
	s.posts.Store(post.ID, post)
	if thread.Status == StatusOpen {
		thread.Status = StatusAnswered
		s.threads.Store(thread.ID, thread)
	}

	s.purgeDerived(course)
	s.log.Debug().Str("post", postID).Str("course", courseID).Msg("post endorsed")

	return EndorseResult{
		CourseID:      courseID,
		ThreadID:      thread.ID,
		PostID:        postID,
		InstructorIDs: append([]string(nil), course.InstructorIDs...),
	}, nil
}

// CreateThread adds a new thread to a course.
func (s *Source) CreateThread(ctx context.Context, courseID, authorID, title string) (CreateThreadResult, error) {
	if err := s.pause(ctx); err != nil {
		return CreateThreadResult{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeErr != nil {
		return CreateThreadResult{}, s.writeErr
	}

	course, ok := s.courses.Load(courseID)
	if !ok {
		return CreateThreadResult{}, fmt.Errorf("quokka: course %q not found", courseID)
	}
	if _, ok := s.users.Load(authorID); !ok {
		return CreateThreadResult{}, fmt.Errorf("quokka: user %q not found", authorID)
	}

	thread := Thread{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		AuthorID:  authorID,
		Title:     title,
		Status:    StatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	s.threads.Store(thread.ID, thread)

	s.purgeDerived(course)
	s.log.Debug().Str("thread", thread.ID).Str("course", courseID).Msg("thread created")

	return CreateThreadResult{
		Thread:        thread,
		CourseID:      courseID,
		InstructorIDs: append([]string(nil), course.InstructorIDs...),
	}, nil
}

// MarkNotificationRead flags one notification as read.
func (s *Source) MarkNotificationRead(ctx context.Context, id string) (Notification, error) {
	if err := s.pause(ctx); err != nil {
		return Notification{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeErr != nil {
		return Notification{}, s.writeErr
	}

	n, ok := s.notifications.Load(id)
	if !ok {
		return Notification{}, fmt.Errorf("quokka: notification %q not found", id)
	}
	n.Read = true
	s.notifications.Store(id, n)
	s.derived.Delete(derivedKey("studentDashboard", n.UserID))
	return n, nil
}

func (s *Source) buildInstructorDashboard(userID string) (InstructorDashboard, error) {
	user, ok := s.users.Load(userID)
	if !ok || user.Role != RoleInstructor {
		return InstructorDashboard{}, fmt.Errorf("quokka: instructor %q not found", userID)
	}

	dash := InstructorDashboard{
		UserID:      userID,
		WeeklyViews: make([]int, 4),
		GeneratedAt: demoNow,
	}
	courseSet := make(map[string]bool)
	s.courses.Range(func(id string, c Course) bool {
		for _, iid := range c.InstructorIDs {
			if iid == userID {
				courseSet[id] = true
				dash.CourseIDs = append(dash.CourseIDs, id)
			}
		}
		return true
	})
	sort.Strings(dash.CourseIDs)

	s.threads.Range(func(_ string, th Thread) bool {
		if !courseSet[th.CourseID] {
			return true
		}
		switch th.Status {
		case StatusOpen:
			dash.OpenThreads++
			dash.UnansweredThreads++
		case StatusAnswered:
			dash.OpenThreads++
		}
		week := daysSince(th.CreatedAt) / 7
		if week > 3 {
			week = 3
		}
		dash.WeeklyViews[3-week] += th.Views
		return true
	})

	s.posts.Range(func(_ string, p Post) bool {
		if !p.Endorsed {
			return true
		}
		if th, ok := s.threads.Load(p.ThreadID); ok && courseSet[th.CourseID] {
			dash.EndorsedAnswers++
		}
		return true
	})

	return dash, nil
}

func (s *Source) buildStudentDashboard(userID string) (StudentDashboard, error) {
	user, ok := s.users.Load(userID)
	if !ok || user.Role != RoleStudent {
		return StudentDashboard{}, fmt.Errorf("quokka: student %q not found", userID)
	}

	dash := StudentDashboard{UserID: userID, GeneratedAt: demoNow}
	s.threads.Range(func(_ string, th Thread) bool {
		if th.AuthorID == userID {
			dash.MyThreads++
			if th.Status == StatusResolved {
				dash.ResolvedThreads++
			}
		}
		return true
	})
	s.notifications.Range(func(_ string, n Notification) bool {
		if n.UserID == userID && !n.Read {
			dash.UnreadNotifications++
		}
		return true
	})
	return dash, nil
}

func (s *Source) buildCourseMetrics(courseID string) (CourseMetrics, error) {
	if _, ok := s.courses.Load(courseID); !ok {
		return CourseMetrics{}, fmt.Errorf("quokka: course %q not found", courseID)
	}

	m := CourseMetrics{CourseID: courseID, ViewTrend: make([]int, 7)}
	s.threads.Range(func(_ string, th Thread) bool {
		if th.CourseID != courseID {
			return true
		}
		m.ThreadCount++
		m.TotalViews += th.Views
		switch th.Status {
		case StatusResolved:
			m.ResolvedCount++
		case StatusAnswered:
			m.AnsweredCount++
		}
		bucket := daysSince(th.CreatedAt) / 3
		if bucket > 6 {
			bucket = 6
		}
		m.ViewTrend[6-bucket] += th.Views
		return true
	})
	if m.ThreadCount > 0 {
		m.AvgViews = float64(m.TotalViews) / float64(m.ThreadCount)
	}
	return m, nil
}

// purgeDerived drops memoized aggregates affected by a write in the given
// course: the course's metrics and the dashboards of its instructors only.
func (s *Source) purgeDerived(course Course) {
	s.derived.Delete(derivedKey("courseMetrics", course.ID))
	for _, iid := range course.InstructorIDs {
		s.derived.Delete(derivedKey("instructorDashboard", iid))
	}
}

func (s *Source) pause(ctx context.Context) error {
	if s.cfg.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(s.cfg.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func derivedKey(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "::" + p
	}
	return out
}
