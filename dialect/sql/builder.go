package sql

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/syssam/sqlbridge"
	"github.com/syssam/sqlbridge/dialect"
)

// Role is the prefix of generated parameter names. It tells a reader which
// part of a statement a parameter belongs to.
type Role byte

// Parameter roles.
const (
	RoleWhere  Role = 'w'
	RoleSet    Role = 's'
	RoleInsert Role = 'i'
	RoleKey    Role = 'k'
	RoleParam  Role = 'p'
)

var roles = [...]Role{RoleWhere, RoleSet, RoleInsert, RoleKey, RoleParam}

// internedNames is the number of names per role built once at start-up, so
// typical statements allocate no name strings.
const internedNames = 64

var paramNames = func() map[Role]*[internedNames]string {
	m := make(map[Role]*[internedNames]string, len(roles))
	for _, r := range roles {
		var names [internedNames]string
		for i := range names {
			names[i] = string(r) + strconv.Itoa(i)
		}
		m[r] = &names
	}
	return m
}()

// ParamName returns the i-th generated name of role r, e.g. ParamName(RoleWhere, 0) == "w0".
func ParamName(r Role, i int) string {
	if names, ok := paramNames[r]; ok && i >= 0 && i < internedNames {
		return names[i]
	}
	return string(r) + strconv.Itoa(i)
}

type binding struct {
	name   string
	kind   dialect.Kind
	column string
	value  any
	bound  bool
}

// Binding is a read-only view of one container parameter.
type Binding struct {
	Name   string
	Kind   dialect.Kind
	Column string // Column the parameter was generated for, if any
	Value  any    // Coerced value
	Bound  bool   // False while the parameter is only reserved
}

// Container accumulates the text and parameters of one statement for one
// dialect. Identifiers go through the dialect quoting, values through the
// dialect coercion, and the marker syntax is chosen when text is written.
//
// Build errors (bad identifiers, bad values) are recorded and returned by
// Err and Query, so statements can be written fluently:
//
//	c := sql.NewContainer(dialect.Get(dialect.SQLServer))
//	c.Append("SELECT ").Ident("name").Append(" FROM ").Ident("products").
//	    Append(" WHERE ").Ident("id").Append(" = ").Arg(sql.RoleWhere, dialect.KindInteger, 7)
//	query, args, err := c.Query()
//	// SELECT [name] FROM [products] WHERE [id] = @w0
//
// A Container is not safe for concurrent use. Use Clone to hand a copy to
// another goroutine. The caller owns the container and should Close it when
// done; executing it does not consume it, so it can be rebound and run again.
type Container struct {
	dialect  *dialect.Dialect
	fold     bool
	text     []byte
	bindings []binding
	index    map[string]int
	refs     []int // binding positions in text order
	counters map[Role]int
	errs     []error
	identity bool
	closed   bool
}

// NewContainer returns an empty container for d.
func NewContainer(d *dialect.Dialect) *Container {
	return &Container{dialect: d}
}

// Dialect returns the container dialect.
func (c *Container) Dialect() *dialect.Dialect { return c.dialect }

// FoldIdentifiers makes Ident and Quote fold identifiers to the product's
// native case before quoting them.
func (c *Container) FoldIdentifiers(fold bool) *Container {
	c.fold = fold
	return c
}

// Append writes raw SQL text.
func (c *Container) Append(s ...string) *Container {
	if c.usable() {
		for _, p := range s {
			c.text = append(c.text, p...)
		}
	}
	return c
}

// Appendf writes formatted raw SQL text. Never format values into the text;
// bind them.
func (c *Container) Appendf(format string, args ...any) *Container {
	if c.usable() {
		c.text = fmt.Appendf(c.text, format, args...)
	}
	return c
}

// Pad writes a single space unless the text is empty or already ends with one.
func (c *Container) Pad() *Container {
	if c.usable() && len(c.text) > 0 && c.text[len(c.text)-1] != ' ' {
		c.text = append(c.text, ' ')
	}
	return c
}

// Quote quotes an identifier with the container dialect. A failure is also
// recorded in the container error.
func (c *Container) Quote(id string) (string, error) {
	if c.fold {
		id = c.dialect.Fold(id)
	}
	q, err := c.dialect.Quote(id)
	if err != nil {
		c.AddError(err)
	}
	return q, err
}

// QuoteQualified quotes a dotted name part by part. A failure is also
// recorded in the container error.
func (c *Container) QuoteQualified(parts ...string) (string, error) {
	if c.fold {
		folded := make([]string, len(parts))
		for i, p := range parts {
			folded[i] = c.dialect.Fold(p)
		}
		parts = folded
	}
	q, err := c.dialect.QuoteQualified(parts...)
	if err != nil {
		c.AddError(err)
	}
	return q, err
}

// Ident writes a quoted identifier.
func (c *Container) Ident(id string) *Container {
	if q, err := c.Quote(id); err == nil {
		c.Append(q)
	}
	return c
}

// IdentQualified writes a quoted qualified name, e.g. schema and table.
func (c *Container) IdentQualified(parts ...string) *Container {
	if q, err := c.QuoteQualified(parts...); err == nil {
		c.Append(q)
	}
	return c
}

// IdentList writes a comma separated list of quoted identifiers.
func (c *Container) IdentList(ids ...string) *Container {
	for i, id := range ids {
		if i > 0 {
			c.Append(", ")
		}
		c.Ident(id)
	}
	return c
}

// NextParam returns the next unused generated name for role r.
func (c *Container) NextParam(r Role) string {
	if c.counters == nil {
		c.counters = make(map[Role]int, len(roles))
	}
	for {
		i := c.counters[r]
		c.counters[r] = i + 1
		name := ParamName(r, i)
		if _, taken := c.index[name]; !taken {
			return name
		}
	}
}

// Bind coerces v for kind and binds it to name. Binding a name again
// replaces its value and kind but keeps its position.
func (c *Container) Bind(name string, kind dialect.Kind, v any) error {
	if c.closed {
		return sqlbridge.ErrClosed
	}
	if name == "" {
		return c.bindingError("", "empty parameter name")
	}
	cv, err := c.dialect.Coerce(kind, v)
	if err != nil {
		var be *sqlbridge.ParameterBindingError
		if errors.As(err, &be) {
			be.Name = name
		}
		return err
	}
	i := c.reserve(name, kind, "")
	c.bindings[i].kind = kind
	c.bindings[i].value = cv
	c.bindings[i].bound = true
	return nil
}

// Set binds v to name using the kind name was reserved or last bound with.
func (c *Container) Set(name string, v any) error {
	if c.closed {
		return sqlbridge.ErrClosed
	}
	i, ok := c.index[name]
	if !ok {
		return c.bindingError(name, "parameter is not declared")
	}
	if c.bindings[i].kind == 0 {
		return c.bindingError(name, "parameter has no kind; bind it with Bind")
	}
	return c.Bind(name, c.bindings[i].kind, v)
}

// SetColumn binds v to every parameter generated for column.
func (c *Container) SetColumn(column string, v any) error {
	if c.closed {
		return sqlbridge.ErrClosed
	}
	found := false
	for _, b := range c.bindings {
		if b.column != column {
			continue
		}
		found = true
		if err := c.Bind(b.name, b.kind, v); err != nil {
			return err
		}
	}
	if !found {
		return c.bindingError("", fmt.Sprintf("no parameter for column %q", column))
	}
	return nil
}

// Param writes the marker of name and records the reference. The name may be
// bound before or after; Query fails if it is never bound.
func (c *Container) Param(name string) *Container {
	return c.param(name, 0, "")
}

func (c *Container) param(name string, kind dialect.Kind, column string) *Container {
	if !c.usable() {
		return c
	}
	i := c.reserve(name, kind, column)
	c.refs = append(c.refs, i)
	c.text = append(c.text, c.dialect.Marker(i+1, name)...)
	return c
}

// Declare writes the marker for a new parameter of role r that will be bound
// later with Set or SetColumn, and returns its name.
func (c *Container) Declare(r Role, kind dialect.Kind, column string) string {
	name := c.NextParam(r)
	c.param(name, kind, column)
	return name
}

// AddParam binds v under the next name of role r and writes its marker.
func (c *Container) AddParam(r Role, kind dialect.Kind, v any) (string, error) {
	name := c.NextParam(r)
	if err := c.Bind(name, kind, v); err != nil {
		c.AddError(err)
		return name, err
	}
	c.Param(name)
	return name, nil
}

// Arg is the fluent form of AddParam; errors are recorded in the container.
func (c *Container) Arg(r Role, kind dialect.Kind, v any) *Container {
	_, _ = c.AddParam(r, kind, v)
	return c
}

// reserve returns the position of name, adding an unbound slot if needed.
func (c *Container) reserve(name string, kind dialect.Kind, column string) int {
	if i, ok := c.index[name]; ok {
		if column != "" && c.bindings[i].column == "" {
			c.bindings[i].column = column
		}
		return i
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	c.bindings = append(c.bindings, binding{name: name, kind: kind, column: column})
	c.index[name] = len(c.bindings) - 1
	return len(c.bindings) - 1
}

// ReturnsIdentity marks the statement as reading back the generated key, so
// Driver.InsertID scans the result instead of asking for LastInsertId.
func (c *Container) ReturnsIdentity(v bool) *Container {
	c.identity = v
	return c
}

// AddError records a build error.
func (c *Container) AddError(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// Err returns the recorded build errors joined, or nil.
func (c *Container) Err() error {
	if c.closed {
		return sqlbridge.ErrClosed
	}
	return errors.Join(c.errs...)
}

// String returns the statement text.
func (c *Container) String() string { return string(c.text) }

// Len returns the number of declared parameters.
func (c *Container) Len() int { return len(c.bindings) }

// Bindings returns the parameters in declaration order.
func (c *Container) Bindings() []Binding {
	out := make([]Binding, len(c.bindings))
	for i, b := range c.bindings {
		out[i] = Binding{Name: b.name, Kind: b.kind, Column: b.column, Value: b.value, Bound: b.bound}
	}
	return out
}

// Query renders the statement text and the driver arguments. Named dialects
// receive sql.Named values, numbered dialects values in declaration order,
// and positional dialects one value per marker in text order.
func (c *Container) Query() (string, []any, error) {
	if err := c.Err(); err != nil {
		return "", nil, err
	}
	referenced := make([]bool, len(c.bindings))
	for _, i := range c.refs {
		referenced[i] = true
	}
	for i, b := range c.bindings {
		switch {
		case !referenced[i]:
			return "", nil, c.bindingError(b.name, "parameter is bound but never referenced")
		case !b.bound:
			return "", nil, c.bindingError(b.name, "parameter is referenced but never bound")
		}
	}
	var args []any
	switch c.dialect.MarkerStyle() {
	case dialect.Named:
		args = make([]any, len(c.bindings))
		for i, b := range c.bindings {
			args[i] = sql.Named(b.name, b.value)
		}
	case dialect.Numbered:
		args = make([]any, len(c.bindings))
		for i, b := range c.bindings {
			args[i] = b.value
		}
	case dialect.Positional:
		args = make([]any, len(c.refs))
		for i, ref := range c.refs {
			args[i] = c.bindings[ref].value
		}
	}
	if limit := c.dialect.MaxParams(); len(args) > limit {
		return "", nil, c.bindingError("", fmt.Sprintf("%d parameters exceed the limit of %d", len(args), limit))
	}
	return string(c.text), args, nil
}

// Clone returns a deep copy. Binary values are copied, so the copies can be
// rebound and executed independently.
func (c *Container) Clone() *Container {
	clone := &Container{
		dialect:  c.dialect,
		fold:     c.fold,
		text:     bytes.Clone(c.text),
		bindings: make([]binding, len(c.bindings)),
		refs:     append([]int(nil), c.refs...),
		errs:     append([]error(nil), c.errs...),
		identity: c.identity,
		closed:   c.closed,
	}
	for i, b := range c.bindings {
		if raw, ok := b.value.([]byte); ok {
			b.value = bytes.Clone(raw)
		}
		clone.bindings[i] = b
	}
	if c.index != nil {
		clone.index = make(map[string]int, len(c.index))
		for k, v := range c.index {
			clone.index[k] = v
		}
	}
	if c.counters != nil {
		clone.counters = make(map[Role]int, len(c.counters))
		for k, v := range c.counters {
			clone.counters[k] = v
		}
	}
	return clone
}

// Clear empties the container for reuse with the same dialect.
func (c *Container) Clear() {
	if c.closed {
		return
	}
	c.text = c.text[:0]
	c.bindings = c.bindings[:0]
	c.refs = c.refs[:0]
	c.errs = nil
	c.identity = false
	clear(c.index)
	clear(c.counters)
}

// Close releases the container buffers. It is idempotent; a closed
// container reports ErrClosed from Err and Query.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.text, c.bindings, c.refs, c.errs = nil, nil, nil, nil
	c.index, c.counters = nil, nil
	return nil
}

func (c *Container) usable() bool {
	if c.closed {
		return false
	}
	return true
}

func (c *Container) bindingError(name, reason string) error {
	return &sqlbridge.ParameterBindingError{Dialect: c.dialect.Name(), Name: name, Reason: reason}
}
