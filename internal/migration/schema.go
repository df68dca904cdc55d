package migration

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// ApplySQLiteSchema executes the sqlite up migrations statement by statement
// without golang-migrate bookkeeping. Tests use it against in-memory
// databases opened through a pure-Go driver.
func ApplySQLiteSchema(conn *gorm.DB) error {
	files, err := fs.Glob(embeddedMigrations, "sql/sqlite3/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, name := range files {
		raw, err := fs.ReadFile(embeddedMigrations, name)
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if err := conn.Exec(stmt).Error; err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}
