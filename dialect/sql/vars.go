package sql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ctxVarsKey is the key used for attaching and reading the context variables.
type ctxVarsKey struct{}

// sessionVars holds sessions/transactions variables to set before every statement.
type sessionVars struct {
	vars []struct{ k, v string }
}

// WithVar returns a new context that holds the session variable to be executed before every query.
func WithVar(ctx context.Context, name, value string) context.Context {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	// Copy so sibling contexts derived from ctx do not share the backing array.
	vars := make([]struct{ k, v string }, len(sv.vars), len(sv.vars)+1)
	copy(vars, sv.vars)
	vars = append(vars, struct{ k, v string }{k: name, v: value})
	return context.WithValue(ctx, ctxVarsKey{}, sessionVars{vars: vars})
}

// VarFromContext returns the session variable value from the context.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	for i := len(sv.vars) - 1; i >= 0; i-- {
		if sv.vars[i].k == name {
			return sv.vars[i].v, true
		}
	}
	return "", false
}

// WithIntVar calls WithVar with the string representation of the value.
func WithIntVar(ctx context.Context, name string, value int) context.Context {
	return WithVar(ctx, name, strconv.Itoa(value))
}

func noReset() error { return nil }

// maySetVars sets the context session variables on ex and returns the
// function restoring them. The returned function is never nil when err is nil.
func (d *Driver) maySetVars(ctx context.Context, ex ExecQuerier) (func() error, error) {
	return setVars(ctx, d, ex, true)
}

func setVars(ctx context.Context, d *Driver, ex ExecQuerier, resettable bool) (func() error, error) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	if len(sv.vars) == 0 {
		return noReset, nil
	}
	var (
		reset []string
		seen  = make(map[string]struct{}, len(sv.vars))
	)
	for _, s := range sv.vars {
		set, err := d.dialect.SetVar(s.k, s.v)
		if err != nil {
			return nil, fmt.Errorf("sql: set session vars: %w", err)
		}
		if _, ok := seen[s.k]; !ok {
			stmt, err := d.dialect.ResetVar(s.k)
			if err != nil {
				return nil, fmt.Errorf("sql: set session vars: %w", err)
			}
			reset = append(reset, stmt)
			seen[s.k] = struct{}{}
		}
		if _, err := ex.ExecContext(ctx, set); err != nil {
			return nil, errors.Join(fmt.Errorf("sql: set session vars: %w", err), runReset(ex, reset))
		}
	}
	if !resettable {
		return noReset, nil
	}
	return func() error { return runReset(ex, reset) }, nil
}

// runReset restores session variables before the connection goes back to
// the pool. It uses its own context so a cancelled statement context does not
// leak variables into the next user of the connection.
func runReset(ex ExecQuerier, reset []string) error {
	if len(reset) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, q := range reset {
		if _, err := ex.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sql: reset session vars: %w", err)
		}
	}
	return nil
}
