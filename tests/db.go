package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/examportal/storage/database"
)

// PrepareDB connects to the test database and migrates it. Tests are skipped in short mode or
// when no database is reachable. Every table but the seeded ones is emptied when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	conf := NewConfig()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		t.Skipf("database unavailable: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("database.Migrate() failed: %v", err)
	}

	t.Cleanup(func() {
		_, err := db.Exec(`TRUNCATE certificate, attempt, enrollment, processed_payment, exam_purchase,
			question_option, question, exam CASCADE`)
		if err != nil {
			t.Errorf("truncating tables failed: %v", err)
		}
		_ = db.Close()
	})
	return db
}
