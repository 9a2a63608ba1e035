package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether a job in this status is finished and must be
// archived out of the live queue.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one queued download request. Position is a dense 1..N rank among
// queued jobs ordered by CreatedAt; it is only meaningful while the job is
// in StatusQueued and is recomputed after every dispatch batch and removal.
type Job struct {
	ID        uuid.UUID
	UserID    int64
	MessageID int64 // status-message handle owned by the messaging front-end
	URL       string
	Title     string
	Status    Status
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HistoryRecord is the immutable archive snapshot of a terminal job.
type HistoryRecord struct {
	ID          int64
	UserID      int64
	URL         string
	Title       string
	Status      Status
	CreatedAt   time.Time
	CompletedAt time.Time
}

// CacheEntry maps a source URL to a previously delivered artifact handle.
type CacheEntry struct {
	URL        string
	FileID     string // opaque re-delivery token owned by the messaging front-end
	SizeBytes  int64  // 0 when unknown
	CachedAt   time.Time
	LastUsedAt time.Time
}

// RateCounter is the per-submitter rolling window counter.
type RateCounter struct {
	UserID       int64
	RequestCount int
	WindowStart  time.Time
	WindowEnd    time.Time
}

type Platform string

const (
	PlatformDirect  Platform = "direct"
	PlatformYouTube Platform = "youtube"
	PlatformRutube  Platform = "rutube"
	PlatformVK      Platform = "vk"
)

// External reports whether downloads from this platform go through the
// external extraction tool rather than direct HTTP streaming.
func (p Platform) External() bool {
	return p != PlatformDirect
}

// DetectPlatform classifies a source URL. Anything that is not a known
// external provider is treated as direct media.
func DetectPlatform(url string) Platform {
	switch {
	case strings.Contains(url, "youtube.com"), strings.Contains(url, "youtu.be"):
		return PlatformYouTube
	case strings.Contains(url, "rutube.ru"):
		return PlatformRutube
	case strings.Contains(url, "vk.com"), strings.Contains(url, "vk.ru"):
		return PlatformVK
	default:
		return PlatformDirect
	}
}
