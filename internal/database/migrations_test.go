package database

import (
	"path/filepath"
	"testing"

	"github.com/ascendlabs/ascend/backend/internal/activities"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsActivityOrigin(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&activities.Activity{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := []activities.Activity{
		{ActivityID: "seed-1", Name: "Stretch", Category: activities.CategoryMindBody.String(), Origin: "", XPValue: 10},
		{ActivityID: "custom-1", Name: "Juggling", Category: activities.CategoryMindBody.String(), Origin: "", OwnerID: "user-1", XPValue: 10},
	}
	for i := range legacy {
		if err := database.Create(&legacy[i]).Error; err != nil {
			testContext.Fatalf("failed to insert activity: %v", err)
		}
		// AutoMigrate's column default would mask the backfill.
		if err := database.Model(&activities.Activity{}).
			Where("activity_id = ?", legacy[i].ActivityID).
			Update("origin", "").Error; err != nil {
			testContext.Fatalf("failed to clear origin: %v", err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var seeded activities.Activity
	if err := database.Where("activity_id = ?", "seed-1").Take(&seeded).Error; err != nil {
		testContext.Fatalf("failed to reload activity: %v", err)
	}
	if seeded.Origin != activities.OriginDefault {
		testContext.Fatalf("expected ownerless activity to become default, got %q", seeded.Origin)
	}

	var custom activities.Activity
	if err := database.Where("activity_id = ?", "custom-1").Take(&custom).Error; err != nil {
		testContext.Fatalf("failed to reload activity: %v", err)
	}
	if custom.Origin != activities.OriginCustom {
		testContext.Fatalf("expected owned activity to become custom, got %q", custom.Origin)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillActivityOrigin).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("expected replay to be a no-op: %v", err)
	}
}
