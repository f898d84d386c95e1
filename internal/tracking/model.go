package tracking

import "time"

const (
	// MaxBookmarksPerCategory caps the standing dashboard set per category.
	MaxBookmarksPerCategory = 5
	// DailyCommitmentLimit caps how many activities a user commits to per day.
	DailyCommitmentLimit = 3
	// dayLayout is the UTC calendar-date key for daily rows.
	dayLayout = "2006-01-02"
)

// DayOf returns the UTC calendar date key for a point in time.
func DayOf(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// CommitmentStatus tracks the per-day state machine of an activity:
// a row's absence means not committed; committed transitions to
// completed only inside a successful submission.
type CommitmentStatus string

const (
	CommitmentStatusCommitted CommitmentStatus = "committed"
	CommitmentStatusCompleted CommitmentStatus = "completed"
)

// BookmarkFlag marks an activity as part of a user's standing dashboard
// set. Presence of the row is the flag; at most five rows per
// (user, category) exist at any time.
type BookmarkFlag struct {
	UserID     string    `gorm:"column:user_id;primaryKey;size:36;not null"`
	ActivityID string    `gorm:"column:activity_id;primaryKey;size:36;not null;index:idx_bookmarks_activity"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (BookmarkFlag) TableName() string {
	return "bookmark_flags"
}

// DailyCommitment records a same-day choice to attempt a bookmarked
// activity. The composite key keeps one row per (user, activity, day).
type DailyCommitment struct {
	UserID     string           `gorm:"column:user_id;primaryKey;size:36;not null"`
	ActivityID string           `gorm:"column:activity_id;primaryKey;size:36;not null;index:idx_commitments_activity"`
	Day        string           `gorm:"column:day;primaryKey;size:10;not null"`
	Status     CommitmentStatus `gorm:"column:status;size:16;not null;default:'committed'"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (DailyCommitment) TableName() string {
	return "daily_commitments"
}

// CompletionEntry is the append-only audit record written once per
// activity in a successful submission. Entries are never mutated, and
// they survive both progress resets and custom-activity deletes.
type CompletionEntry struct {
	EntryID    string    `gorm:"column:entry_id;primaryKey;size:36;not null"`
	UserID     string    `gorm:"column:user_id;size:36;not null;index:idx_ledger_user_day,priority:1"`
	ActivityID string    `gorm:"column:activity_id;size:36;not null"`
	Day        string    `gorm:"column:day;size:10;not null;index:idx_ledger_user_day,priority:2"`
	XPAwarded  int64     `gorm:"column:xp_awarded;not null"`
	Multiplier int64     `gorm:"column:multiplier;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (CompletionEntry) TableName() string {
	return "completion_ledger"
}

// ActivityState annotates a catalog activity with the caller's current
// bookmark and commitment standing.
type ActivityState struct {
	Bookmarked     bool
	CommittedToday bool
	CompletedToday bool
}

// CategoryCount reports the bookmark occupancy of one category after a
// mutation, so clients never have to predict state they cannot verify.
type CategoryCount struct {
	Category string
	Count    int
}

// SubmissionResult is the single consolidated outcome of a day
// submission. The engine sums the three awards itself; callers must
// not re-aggregate per-activity responses.
type SubmissionResult struct {
	XPGained   int64
	Multiplier int64
	Level      int
	StreakDays int
}

// ProgressionStats is the read model for the progression dashboard.
type ProgressionStats struct {
	TotalXP          int64
	Level            int
	StreakDays       int
	Multiplier       int64
	XPIntoLevel      int64
	XPNeededForLevel int64
	Percent          float64
}
