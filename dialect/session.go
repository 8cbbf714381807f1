package dialect

import (
	"fmt"
	"regexp"
	"strings"
)

// SessionSetup returns the statements run once on every new physical
// connection, before it is handed out for the first time.
func (d *Dialect) SessionSetup(readOnly bool) []string {
	switch d.product {
	case SQLServer:
		// go-mssqldb leaves ARITHABORT OFF, which stops the optimizer from
		// matching indexed views and rejects writes to filtered indexes.
		// SQL Server has no session-level read-only switch; read-only intent
		// is enforced by the login's permissions.
		return []string{
			"SET ARITHABORT ON",
			"SET ANSI_NULLS ON",
			"SET ANSI_PADDING ON",
			"SET ANSI_WARNINGS ON",
			"SET CONCAT_NULL_YIELDS_NULL ON",
			"SET QUOTED_IDENTIFIER ON",
			"SET NUMERIC_ROUNDABORT OFF",
		}
	case PostgreSQL:
		if readOnly {
			return []string{"SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"}
		}
		return nil
	case MySQL:
		stmts := []string{"SET NAMES utf8mb4"}
		if readOnly {
			stmts = append(stmts, "SET SESSION TRANSACTION READ ONLY")
		}
		return stmts
	case SQLite:
		stmts := []string{
			"PRAGMA busy_timeout = 5000",
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA temp_store = MEMORY",
		}
		if readOnly {
			stmts = append(stmts, "PRAGMA query_only = ON")
		}
		return stmts
	case Oracle:
		return []string{
			"ALTER SESSION SET NLS_NUMERIC_CHARACTERS = '.,'",
			"ALTER SESSION SET NLS_DATE_FORMAT = 'YYYY-MM-DD HH24:MI:SS'",
			"ALTER SESSION SET NLS_TIMESTAMP_FORMAT = 'YYYY-MM-DD HH24:MI:SS.FF'",
		}
	case Firebird:
		return nil
	}
	panic(unknownProduct(d.product))
}

// validVarName matches session variable names: letters, digits and
// underscores, optionally dotted (PostgreSQL custom settings such as app.tenant).
var validVarName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

func (d *Dialect) checkVar(name string) error {
	if err := d.Require(FeatureSessionVars); err != nil {
		return err
	}
	if !validVarName.MatchString(name) {
		return fmt.Errorf("dialect: invalid session variable name %q", name)
	}
	return nil
}

// SetVar returns the statement assigning a session variable.
func (d *Dialect) SetVar(name, value string) (string, error) {
	if err := d.checkVar(name); err != nil {
		return "", err
	}
	switch d.product {
	case PostgreSQL:
		// standard_conforming_strings keeps backslashes literal.
		return fmt.Sprintf("SET %s = '%s'", name, strings.ReplaceAll(value, "'", "''")), nil
	case MySQL:
		v := strings.ReplaceAll(value, `\`, `\\`)
		return fmt.Sprintf("SET %s = '%s'", name, strings.ReplaceAll(v, "'", "''")), nil
	}
	return "", fmt.Errorf("dialect: %s has no session variable statement", d.Name())
}

// ResetVar returns the statement restoring a session variable to its default.
func (d *Dialect) ResetVar(name string) (string, error) {
	if err := d.checkVar(name); err != nil {
		return "", err
	}
	switch d.product {
	case PostgreSQL:
		return "RESET " + name, nil
	case MySQL:
		return fmt.Sprintf("SET %s = NULL", name), nil
	}
	return "", fmt.Errorf("dialect: %s has no session variable statement", d.Name())
}
