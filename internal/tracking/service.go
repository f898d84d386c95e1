package tracking

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ascendlabs/ascend/backend/internal/activities"
	"github.com/ascendlabs/ascend/backend/internal/faults"
	"github.com/ascendlabs/ascend/backend/internal/ids"
	"github.com/ascendlabs/ascend/backend/internal/progression"
	"github.com/ascendlabs/ascend/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("tracking: database handle is required")
	errMissingIDProvider = errors.New("tracking: id provider is required")
)

const (
	opToggleBookmark    = "tracking.toggle_bookmark"
	opFinalizeSelection = "tracking.finalize_selection"
	opToggleCommitment  = "tracking.toggle_commitment"
	opSubmitDay         = "tracking.submit_day"
	opResetProgress     = "tracking.reset_progress"
	opStats             = "tracking.stats"
	opFlags             = "tracking.flags"
)

// ServiceConfig describes the dependencies of the selection and
// progression engine.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service owns the BookmarkFlag and DailyCommitment relations and the
// submission path that converts a completed day into experience. No
// other component mutates those rows.
type Service struct {
	db     *gorm.DB
	idGen  ids.Provider
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the engine service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, idGen: cfg.IDProvider, clock: clock, logger: logger}, nil
}

// ToggleBookmark sets or clears the dashboard flag for one activity and
// returns the resulting per-category count. Bookmarking past the
// category cap fails with a CapacityError naming the category; the
// validation and the write share one locked transaction so two racing
// requests cannot jointly exceed the cap.
func (s *Service) ToggleBookmark(ctx context.Context, userID, activityID string, desired bool) (CategoryCount, error) {
	var result CategoryCount
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := s.visibleActivity(tx, userID, activityID)
		if err != nil {
			return err
		}

		others, err := s.lockedCategoryCount(tx, userID, activity.Category, activityID)
		if err != nil {
			return err
		}

		var existing BookmarkFlag
		flagged := true
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND activity_id = ?", userID, activityID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			flagged = false
		} else if err != nil {
			return faults.Unavailable(opToggleBookmark, err)
		}

		switch {
		case desired && flagged:
			// Idempotent re-bookmark.
		case desired:
			if others >= MaxBookmarksPerCategory {
				return &faults.CapacityError{
					Scope:    "bookmark",
					Category: activity.Category,
					Limit:    MaxBookmarksPerCategory,
					Count:    others,
				}
			}
			if err := tx.Create(&BookmarkFlag{UserID: userID, ActivityID: activityID}).Error; err != nil {
				return faults.Unavailable(opToggleBookmark, err)
			}
		case flagged:
			if err := tx.Where("user_id = ? AND activity_id = ?", userID, activityID).
				Delete(&BookmarkFlag{}).Error; err != nil {
				return faults.Unavailable(opToggleBookmark, err)
			}
			// A non-bookmarked activity cannot stay committed.
			if err := tx.Where("user_id = ? AND activity_id = ? AND day = ?",
				userID, activityID, DayOf(s.clock())).
				Delete(&DailyCommitment{}).Error; err != nil {
				return faults.Unavailable(opToggleBookmark, err)
			}
		default:
			// Idempotent re-unbookmark.
		}

		count := others
		if desired {
			count++
		}
		result = CategoryCount{Category: activity.Category, Count: count}
		return nil
	})
	if txErr != nil {
		return CategoryCount{}, txErr
	}
	return result, nil
}

// FinalizeSelection replaces the user's entire bookmark set with the
// supplied activities and marks setup complete. Each category must
// contribute exactly five activities and every id must resolve to an
// activity visible to the user; any failure leaves prior flags intact.
func (s *Service) FinalizeSelection(ctx context.Context, userID string, activityIDs []string) error {
	seen := make(map[string]struct{}, len(activityIDs))
	for _, id := range activityIDs {
		if _, dup := seen[id]; dup {
			return faults.NewValidation("activity %s listed more than once", id)
		}
		seen[id] = struct{}{}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var selected []activities.Activity
		if len(activityIDs) > 0 {
			if err := tx.Where("activity_id IN ?", activityIDs).Find(&selected).Error; err != nil {
				return faults.Unavailable(opFinalizeSelection, err)
			}
		}
		known := make(map[string]activities.Activity, len(selected))
		for _, activity := range selected {
			known[activity.ActivityID] = activity
		}

		perCategory := make(map[string]int)
		for _, id := range activityIDs {
			activity, ok := known[id]
			if !ok || !activity.VisibleTo(userID) {
				return &faults.NotFoundError{Kind: "activity", ID: id}
			}
			perCategory[activity.Category]++
		}
		for _, category := range activities.Categories() {
			if got := perCategory[category.String()]; got != MaxBookmarksPerCategory {
				return faults.NewValidation("category %s needs exactly %d activities, have %d",
					category, MaxBookmarksPerCategory, got)
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&BookmarkFlag{}).Error; err != nil {
			return faults.Unavailable(opFinalizeSelection, err)
		}
		flags := make([]BookmarkFlag, 0, len(activityIDs))
		for _, id := range activityIDs {
			flags = append(flags, BookmarkFlag{UserID: userID, ActivityID: id})
		}
		if err := tx.Create(&flags).Error; err != nil {
			return faults.Unavailable(opFinalizeSelection, err)
		}

		// Activities dropped from the set lose today's commitment too,
		// same as unbookmarking them one by one.
		if err := tx.Where("user_id = ? AND day = ? AND activity_id NOT IN ?",
			userID, DayOf(s.clock()), activityIDs).
			Delete(&DailyCommitment{}).Error; err != nil {
			return faults.Unavailable(opFinalizeSelection, err)
		}

		if err := tx.Model(&users.User{}).
			Where("user_id = ?", userID).
			Update("setup_complete", true).Error; err != nil {
			return faults.Unavailable(opFinalizeSelection, err)
		}
		return nil
	})
}

// ToggleCommitment adds the activity to or removes it from today's
// committed set and returns the set afterward. Only bookmarked
// activities are eligible, at most three fit in one day, and a row
// already completed today no longer toggles.
func (s *Service) ToggleCommitment(ctx context.Context, userID, activityID string) ([]DailyCommitment, error) {
	var today []DailyCommitment
	day := DayOf(s.clock())

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.visibleActivity(tx, userID, activityID); err != nil {
			return err
		}

		var flag BookmarkFlag
		err := tx.Where("user_id = ? AND activity_id = ?", userID, activityID).Take(&flag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &faults.PermissionError{Reason: "activity is not bookmarked"}
		}
		if err != nil {
			return faults.Unavailable(opToggleCommitment, err)
		}

		var rows []DailyCommitment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND day = ?", userID, day).
			Find(&rows).Error; err != nil {
			return faults.Unavailable(opToggleCommitment, err)
		}

		var current *DailyCommitment
		committed := 0
		for i := range rows {
			if rows[i].ActivityID == activityID {
				current = &rows[i]
			}
			if rows[i].Status == CommitmentStatusCommitted {
				committed++
			}
		}

		switch {
		case current != nil && current.Status == CommitmentStatusCompleted:
			return faults.NewValidation("activity already completed today")
		case current != nil:
			if err := tx.Where("user_id = ? AND activity_id = ? AND day = ?",
				userID, activityID, day).
				Delete(&DailyCommitment{}).Error; err != nil {
				return faults.Unavailable(opToggleCommitment, err)
			}
		default:
			if committed >= DailyCommitmentLimit {
				return &faults.CapacityError{
					Scope: "daily commitment",
					Limit: DailyCommitmentLimit,
					Count: committed,
				}
			}
			row := DailyCommitment{
				UserID:     userID,
				ActivityID: activityID,
				Day:        day,
				Status:     CommitmentStatusCommitted,
			}
			if err := tx.Create(&row).Error; err != nil {
				return faults.Unavailable(opToggleCommitment, err)
			}
		}

		if err := tx.Where("user_id = ? AND day = ?", userID, day).
			Order("created_at").
			Find(&today).Error; err != nil {
			return faults.Unavailable(opToggleCommitment, err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return today, nil
}

// SubmitDay converts today's three committed activities into awarded
// experience in one atomic step: ledger entries are appended, the
// user's totals and streak advance, and the day's commitments clear.
// The consolidated result is the only figure the engine reports; per
// activity awards are never surfaced for re-summing by callers.
func (s *Service) SubmitDay(ctx context.Context, userID string) (SubmissionResult, error) {
	var result SubmissionResult
	day := DayOf(s.clock())

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user users.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &faults.NotFoundError{Kind: "user", ID: userID}
		}
		if err != nil {
			return faults.Unavailable(opSubmitDay, err)
		}

		var rows []DailyCommitment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND day = ? AND status = ?", userID, day, CommitmentStatusCommitted).
			Order("created_at").
			Find(&rows).Error; err != nil {
			return faults.Unavailable(opSubmitDay, err)
		}
		if len(rows) != DailyCommitmentLimit {
			return faults.NewValidation("exactly %d committed activities required, have %d",
				DailyCommitmentLimit, len(rows))
		}

		activityIDs := make([]string, 0, len(rows))
		for _, row := range rows {
			activityIDs = append(activityIDs, row.ActivityID)
		}
		var committed []activities.Activity
		if err := tx.Where("activity_id IN ?", activityIDs).Find(&committed).Error; err != nil {
			return faults.Unavailable(opSubmitDay, err)
		}
		if len(committed) != len(rows) {
			return faults.Unavailable(opSubmitDay, errors.New("committed activity missing from catalog"))
		}

		multiplier := progression.StreakMultiplier(user.StreakDays)
		var totalGained int64
		for _, activity := range committed {
			awarded := activity.XPValue * multiplier
			totalGained += awarded

			entryID, err := s.idGen.NewID()
			if err != nil {
				return faults.Unavailable(opSubmitDay, err)
			}
			entry := CompletionEntry{
				EntryID:    entryID,
				UserID:     userID,
				ActivityID: activity.ActivityID,
				Day:        day,
				XPAwarded:  awarded,
				Multiplier: multiplier,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return faults.Unavailable(opSubmitDay, err)
			}
		}

		if err := tx.Model(&DailyCommitment{}).
			Where("user_id = ? AND day = ? AND status = ?", userID, day, CommitmentStatusCommitted).
			Update("status", CommitmentStatusCompleted).Error; err != nil {
			return faults.Unavailable(opSubmitDay, err)
		}

		newTotal := user.TotalXP + totalGained
		newLevel := progression.LevelForTotalXP(newTotal)
		newStreak := nextStreak(user.StreakDays, user.LastCompletedDay, day)

		updates := map[string]interface{}{
			"total_xp":           newTotal,
			"level":              newLevel,
			"streak_days":        newStreak,
			"last_completed_day": day,
		}
		if err := tx.Model(&users.User{}).
			Where("user_id = ?", userID).
			Updates(updates).Error; err != nil {
			return faults.Unavailable(opSubmitDay, err)
		}

		if err := tx.Where("user_id = ? AND day = ?", userID, day).
			Delete(&DailyCommitment{}).Error; err != nil {
			return faults.Unavailable(opSubmitDay, err)
		}

		result = SubmissionResult{
			XPGained:   totalGained,
			Multiplier: multiplier,
			Level:      newLevel,
			StreakDays: newStreak,
		}
		return nil
	})
	if txErr != nil {
		return SubmissionResult{}, txErr
	}

	s.logger.Info("day submitted",
		zap.String("user_id", userID),
		zap.String("day", day),
		zap.Int64("xp_gained", result.XPGained),
		zap.Int("level", result.Level),
		zap.Int("streak_days", result.StreakDays))
	return result, nil
}

// ResetProgress zeroes the user's progression scalars and clears every
// daily commitment. Bookmarks survive the reset. Idempotent.
func (s *Service) ResetProgress(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user users.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &faults.NotFoundError{Kind: "user", ID: userID}
		}
		if err != nil {
			return faults.Unavailable(opResetProgress, err)
		}

		updates := map[string]interface{}{
			"total_xp":           0,
			"level":              progression.MinimumLevel,
			"streak_days":        0,
			"last_completed_day": "",
		}
		if err := tx.Model(&users.User{}).
			Where("user_id = ?", userID).
			Updates(updates).Error; err != nil {
			return faults.Unavailable(opResetProgress, err)
		}

		if err := tx.Where("user_id = ?", userID).Delete(&DailyCommitment{}).Error; err != nil {
			return faults.Unavailable(opResetProgress, err)
		}
		return nil
	})
}

// Stats assembles the progression read model for a user.
func (s *Service) Stats(ctx context.Context, userID string) (ProgressionStats, error) {
	var user users.User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProgressionStats{}, &faults.NotFoundError{Kind: "user", ID: userID}
	}
	if err != nil {
		return ProgressionStats{}, faults.Unavailable(opStats, err)
	}

	progress := progression.ProgressWithinLevel(user.TotalXP)
	return ProgressionStats{
		TotalXP:          user.TotalXP,
		Level:            progress.Level,
		StreakDays:       user.StreakDays,
		Multiplier:       progression.StreakMultiplier(user.StreakDays),
		XPIntoLevel:      progress.XPIntoLevel,
		XPNeededForLevel: progress.XPNeededForLevel,
		Percent:          progress.Percent,
	}, nil
}

// Flags returns the caller's bookmark/commitment standing per activity,
// keyed by activity id, for annotating catalog listings.
func (s *Service) Flags(ctx context.Context, userID string) (map[string]ActivityState, error) {
	states := make(map[string]ActivityState)

	var flags []BookmarkFlag
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&flags).Error; err != nil {
		return nil, faults.Unavailable(opFlags, err)
	}
	for _, flag := range flags {
		state := states[flag.ActivityID]
		state.Bookmarked = true
		states[flag.ActivityID] = state
	}

	var rows []DailyCommitment
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, DayOf(s.clock())).
		Find(&rows).Error; err != nil {
		return nil, faults.Unavailable(opFlags, err)
	}
	for _, row := range rows {
		state := states[row.ActivityID]
		state.CommittedToday = row.Status == CommitmentStatusCommitted
		state.CompletedToday = row.Status == CommitmentStatusCompleted
		states[row.ActivityID] = state
	}
	return states, nil
}

// CompletedDays lists the days with ledger entries for a user, most recent
// first. Read-only view over the append-only ledger.
func (s *Service) CompletedDays(ctx context.Context, userID string) ([]string, error) {
	var entries []CompletionEntry
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&entries).Error; err != nil {
		return nil, faults.Unavailable(opStats, err)
	}
	seen := make(map[string]struct{})
	days := make([]string, 0)
	for _, entry := range entries {
		if _, ok := seen[entry.Day]; ok {
			continue
		}
		seen[entry.Day] = struct{}{}
		days = append(days, entry.Day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// PurgeActivityReferences removes the user's bookmark and commitment
// rows pointing at an activity inside the caller's transaction. Ledger
// entries stay: the ledger is append-only. Satisfies
// activities.ReferenceCleaner.
func (s *Service) PurgeActivityReferences(tx *gorm.DB, userID, activityID string) error {
	if err := tx.Where("user_id = ? AND activity_id = ?", userID, activityID).
		Delete(&BookmarkFlag{}).Error; err != nil {
		return faults.Unavailable("tracking.purge_activity", err)
	}
	if err := tx.Where("user_id = ? AND activity_id = ?", userID, activityID).
		Delete(&DailyCommitment{}).Error; err != nil {
		return faults.Unavailable("tracking.purge_activity", err)
	}
	return nil
}

// visibleActivity loads an activity and checks catalog visibility for
// the user. Invisible and unknown activities are indistinguishable.
func (s *Service) visibleActivity(tx *gorm.DB, userID, activityID string) (activities.Activity, error) {
	var activity activities.Activity
	err := tx.Where("activity_id = ?", activityID).Take(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return activities.Activity{}, &faults.NotFoundError{Kind: "activity", ID: activityID}
	}
	if err != nil {
		return activities.Activity{}, faults.Unavailable(opToggleBookmark, err)
	}
	if !activity.VisibleTo(userID) {
		return activities.Activity{}, &faults.NotFoundError{Kind: "activity", ID: activityID}
	}
	return activity, nil
}

// lockedCategoryCount counts the user's bookmarks in a category,
// excluding one activity, while holding row locks on the counted flags.
func (s *Service) lockedCategoryCount(tx *gorm.DB, userID, category, excludeActivityID string) (int, error) {
	var flags []BookmarkFlag
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Joins("JOIN activities ON activities.activity_id = bookmark_flags.activity_id").
		Where("bookmark_flags.user_id = ? AND activities.category = ? AND bookmark_flags.activity_id <> ?",
			userID, category, excludeActivityID).
		Find(&flags).Error
	if err != nil {
		return 0, faults.Unavailable(opToggleBookmark, err)
	}
	return len(flags), nil
}

// nextStreak applies the streak policy at submission time: consecutive
// distinct days extend the streak, a gap restarts it at one, and a
// repeat submission on the same day leaves it unchanged.
func nextStreak(current int, lastCompletedDay, today string) int {
	if lastCompletedDay == today {
		return current
	}
	if lastCompletedDay != "" {
		if parsed, err := time.Parse(dayLayout, today); err == nil {
			if lastCompletedDay == parsed.AddDate(0, 0, -1).Format(dayLayout) {
				return current + 1
			}
		}
	}
	return 1
}
