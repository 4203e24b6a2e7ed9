package progress

import (
	"time"
)

type (
	// Progress is how far a user got in a single video.
	Progress struct {
		ID              string    `json:"id"`
		UserID          string    `json:"user_id"`
		VideoID         string    `json:"video_id"`
		IsCompleted     bool      `json:"is_completed"`
		ProgressPercent int       `json:"progress_percent"`
		LastWatchedAt   time.Time `json:"last_watched_at"`
	}

	// CourseProgress aggregates the video progress of a user over a course.
	CourseProgress struct {
		CourseID        string       `json:"course_id"`
		CourseTitle     string       `json:"course_title,omitempty"`
		CompletedVideos int          `json:"completed_videos"`
		TotalVideos     int          `json:"total_videos"`
		Percent         int          `json:"percent"`
		Completed       bool         `json:"completed"`
		Certificate     *Certificate `json:"certificate,omitempty"`
		Videos          []Progress   `json:"videos,omitempty"`
	}

	Completion struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		CourseID    string    `json:"course_id"`
		CompletedAt time.Time `json:"completed_at"`
	}

	Certificate struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		UserName    string    `json:"user_name"`
		CourseID    string    `json:"course_id"`
		CourseTitle string    `json:"course_title"`
		Number      string    `json:"certificate_number"`
		IssuedAt    time.Time `json:"issued_at"`
	}

	// RecordResult is returned after saving progress; Certificate is set when the course got completed.
	RecordResult struct {
		Progress       Progress       `json:"progress"`
		CourseProgress CourseProgress `json:"course_progress"`
		Certificate    *Certificate   `json:"certificate,omitempty"`
	}
)

type RecordProgress struct {
	ProgressPercent int  `json:"progress_percent"`
	IsCompleted     bool `json:"is_completed"`
}

// CertificateFilter selects a single Certificate; Number wins over UserID + CourseID.
type CertificateFilter struct {
	Number   string
	UserID   string
	CourseID string
}

// clamp bounds a percentage to 0..100.
func clamp(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return percent
}

// merge applies a new reading on the previous progress of a video.
// Progress never goes backwards and a completed video stays completed.
func merge(prev Progress, rp RecordProgress) Progress {
	next := prev
	percent := clamp(rp.ProgressPercent)
	if percent > next.ProgressPercent {
		next.ProgressPercent = percent
	}
	if rp.IsCompleted || next.ProgressPercent == 100 {
		next.IsCompleted = true
	}
	if next.IsCompleted {
		next.ProgressPercent = 100
	}
	return next
}

// coursePercent is the integer floor of completed/total in percent.
func coursePercent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return completed * 100 / total
}
