package sql

import (
	"errors"
	"strings"
	"sync"

	"github.com/syssam/sqlbridge"
	"github.com/syssam/sqlbridge/dialect"
)

// sqlStateError is implemented by errors carrying a SQLSTATE code, e.g. pgconn.PgError.
type sqlStateError interface {
	SQLState() string
}

// errorCoder is implemented by errors carrying a numeric vendor code, e.g.
// modernc.org/sqlite and godror errors.
type errorCoder interface {
	Code() int
}

// errorNumberer is implemented by SQL Server errors.
type errorNumberer interface {
	SQLErrorNumber() int32
}

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgDeadlockDetected    = "40P01"
	pgLockNotAvailable    = "55P03"
	pgSerialization       = "40001"
)

// Classifier maps a driver error to its class. It reports false when it
// does not recognize the error.
type Classifier func(error) (sqlbridge.ErrorClass, bool)

var classifiers sync.Map // dialect.Product => Classifier

// RegisterClassifier adds a driver-specific classifier for p. It is consulted
// before the generic interface and message checks.
func RegisterClassifier(p dialect.Product, fn Classifier) {
	classifiers.Store(p, fn)
}

// Classify returns the constraint or locking class of a driver error raised
// by a database of product p.
func Classify(p dialect.Product, err error) sqlbridge.ErrorClass {
	if err == nil {
		return sqlbridge.ClassOther
	}
	if fn, ok := classifiers.Load(p); ok {
		if class, ok := fn.(Classifier)(err); ok {
			return class
		}
	}
	if e, ok := asError[sqlStateError](err); ok {
		if class, ok := ClassifySQLState(e.SQLState()); ok {
			return class
		}
	}
	switch p {
	case dialect.SQLite:
		if e, ok := asError[errorCoder](err); ok {
			if class, ok := classifySQLite(e.Code()); ok {
				return class
			}
		}
	case dialect.Oracle:
		if e, ok := asError[errorCoder](err); ok {
			if class, ok := classifyOracle(e.Code()); ok {
				return class
			}
		}
	case dialect.SQLServer:
		if e, ok := asError[errorNumberer](err); ok {
			if class, ok := classifySQLServer(e.SQLErrorNumber()); ok {
				return class
			}
		}
	}
	return classifyMessage(err.Error())
}

// ClassifySQLState maps a SQLSTATE code to its class.
func ClassifySQLState(state string) (sqlbridge.ErrorClass, bool) {
	switch state {
	case pgUniqueViolation:
		return sqlbridge.ClassUnique, true
	case pgForeignKeyViolation:
		return sqlbridge.ClassForeignKey, true
	case pgCheckViolation:
		return sqlbridge.ClassCheck, true
	case pgDeadlockDetected, pgLockNotAvailable, pgSerialization:
		return sqlbridge.ClassLocked, true
	}
	return sqlbridge.ClassOther, false
}

// ClassifyMySQL maps a MySQL error number to its class.
func ClassifyMySQL(number uint16) (sqlbridge.ErrorClass, bool) {
	switch number {
	case 1062:
		return sqlbridge.ClassUnique, true
	case 1451, 1452: // parent row referenced, child row without parent
		return sqlbridge.ClassForeignKey, true
	case 3819:
		return sqlbridge.ClassCheck, true
	case 1205, 1213: // lock wait timeout, deadlock
		return sqlbridge.ClassLocked, true
	}
	return sqlbridge.ClassOther, false
}

// SQLite extended result codes.
func classifySQLite(code int) (sqlbridge.ErrorClass, bool) {
	switch code {
	case 2067, 1555: // SQLITE_CONSTRAINT_UNIQUE, SQLITE_CONSTRAINT_PRIMARYKEY
		return sqlbridge.ClassUnique, true
	case 787: // SQLITE_CONSTRAINT_FOREIGNKEY
		return sqlbridge.ClassForeignKey, true
	case 275: // SQLITE_CONSTRAINT_CHECK
		return sqlbridge.ClassCheck, true
	case 5, 6, 517: // SQLITE_BUSY, SQLITE_LOCKED, SQLITE_BUSY_SNAPSHOT
		return sqlbridge.ClassLocked, true
	}
	return sqlbridge.ClassOther, false
}

// ORA-nnnnn codes.
func classifyOracle(code int) (sqlbridge.ErrorClass, bool) {
	switch code {
	case 1:
		return sqlbridge.ClassUnique, true
	case 2291, 2292:
		return sqlbridge.ClassForeignKey, true
	case 2290:
		return sqlbridge.ClassCheck, true
	case 54, 60:
		return sqlbridge.ClassLocked, true
	}
	return sqlbridge.ClassOther, false
}

func classifySQLServer(number int32) (sqlbridge.ErrorClass, bool) {
	switch number {
	case 2627, 2601:
		return sqlbridge.ClassUnique, true
	case 547:
		// 547 is raised for both foreign key and check conflicts.
		return sqlbridge.ClassForeignKey, true
	case 1205, 1222:
		return sqlbridge.ClassLocked, true
	}
	return sqlbridge.ClassOther, false
}

// classifyMessage is the fallback for drivers whose errors carry no code.
func classifyMessage(msg string) sqlbridge.ErrorClass {
	switch {
	case containsAny(msg,
		"Error 1062",
		"violates unique constraint",
		"UNIQUE constraint failed",
		"ORA-00001",
		"Cannot insert duplicate key",
		"violation of PRIMARY or UNIQUE KEY constraint",
	):
		return sqlbridge.ClassUnique
	case containsAny(msg,
		"Error 1451", "Error 1452",
		"violates foreign key constraint",
		"FOREIGN KEY constraint failed",
		"ORA-02291", "ORA-02292",
		"conflicted with the FOREIGN KEY constraint",
		"violation of FOREIGN KEY constraint",
	):
		return sqlbridge.ClassForeignKey
	case containsAny(msg,
		"Error 3819",
		"violates check constraint",
		"CHECK constraint failed",
		"ORA-02290",
		"conflicted with the CHECK constraint",
		"violates CHECK constraint",
	):
		return sqlbridge.ClassCheck
	case containsAny(msg,
		"Error 1213", "Error 1205",
		"deadlock detected",
		"database is locked", "database table is locked",
		"ORA-00054", "ORA-00060",
		"was deadlocked on lock resources",
		"lock conflict on no wait transaction", "deadlock",
	):
		return sqlbridge.ClassLocked
	}
	return sqlbridge.ClassOther
}

// asError is a generic helper for errors.As.
func asError[T any](err error) (T, bool) {
	var target T
	if errors.As(err, &target) {
		return target, true
	}
	return target, false
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
