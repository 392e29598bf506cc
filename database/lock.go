package database

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
)

// SetLockTimeout bounds row-lock waits for the rest of tx. Postgres scopes the
// setting to the transaction. MySQL only offers a session variable, which
// ResetLockTimeout puts back before the connection returns to the pool.
func SetLockTimeout(tx *gorm.DB, d time.Duration) error {
	switch tx.Dialect().GetName() {
	case "postgres":
		return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", d.Milliseconds())).Error
	case "mysql":
		secs := int64((d + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		return tx.Exec(fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)).Error
	}
	return nil
}

// ResetLockTimeout restores the server default on the session of tx. It must
// run before Commit or Rollback; SET is not transactional on MySQL, so the
// reset survives either outcome.
func ResetLockTimeout(tx *gorm.DB) error {
	if tx.Dialect().GetName() == "mysql" {
		return tx.Exec("SET SESSION innodb_lock_wait_timeout = DEFAULT").Error
	}
	return nil
}
