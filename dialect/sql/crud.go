package sql

import (
	"github.com/syssam/sqlbridge/dialect"
	"github.com/syssam/sqlbridge/schema"
)

// SelectOption configures BuildSelect.
type SelectOption func(*selectOptions)

type selectOptions struct {
	columns  []string
	where    []string
	whereSet bool
	order    []string
	limit    int
	offset   int
}

// Columns restricts the selected columns. All columns are selected by default.
func Columns(cols ...string) SelectOption {
	return func(s *selectOptions) { s.columns = cols }
}

// Where filters on equality with the given columns, one where parameter per
// column. Without this option the primary key is used; Where() with no
// columns selects every row.
func Where(cols ...string) SelectOption {
	return func(s *selectOptions) {
		s.where = cols
		s.whereSet = true
	}
}

// OrderBy orders the result by the given columns, ascending.
func OrderBy(cols ...string) SelectOption {
	return func(s *selectOptions) { s.order = cols }
}

// Page limits the result. A non-positive limit means no limit.
func Page(limit, offset int) SelectOption {
	return func(s *selectOptions) {
		s.limit = limit
		s.offset = offset
	}
}

// BuildSelect returns a SELECT statement over t. Where parameters are
// declared but unbound; bind them with Set or SetColumn.
//
//	SELECT "id", "name", "price" FROM "products" WHERE "id" = $1
func BuildSelect(d *dialect.Dialect, t *schema.Table, opts ...SelectOption) (*Container, error) {
	c := NewContainer(d)
	return c, WriteSelect(c, t, opts...)
}

// WriteSelect writes a SELECT statement over t into c.
func WriteSelect(c *Container, t *schema.Table, opts ...SelectOption) error {
	if err := schema.ValidateTable(t).Err(); err != nil {
		return err
	}
	so := &selectOptions{}
	for _, opt := range opts {
		opt(so)
	}
	if !so.whereSet {
		so.where = keyNames(t)
	}
	cols := so.columns
	if len(cols) == 0 {
		cols = t.ColumnNames()
	}
	if err := checkColumns(t, cols, so.where, so.order); err != nil {
		return err
	}
	c.Append("SELECT ").IdentList(cols...).Append(" FROM ").IdentQualified(t.Schema, t.Name)
	writeWhere(c, t, so.where)
	order := so.order
	paging := c.Dialect().Paginate(so.limit, so.offset)
	if len(order) == 0 && paging != "" && c.Dialect().RequiresOrderForPaging() {
		order = keyNames(t)
		if len(order) == 0 {
			c.Append(" ORDER BY (SELECT NULL)")
		}
	}
	if len(order) > 0 {
		c.Append(" ORDER BY ").IdentList(order...)
	}
	if paging != "" {
		c.Append(" ", paging)
	}
	return c.Err()
}

// BuildInsert returns an INSERT statement over t. Auto-increment columns are
// omitted and read back with the dialect identity clause when it has one.
//
//	INSERT INTO [products] ([name], [price]) OUTPUT INSERTED.[id] VALUES (@i0, @i1)
func BuildInsert(d *dialect.Dialect, t *schema.Table) (*Container, error) {
	c := NewContainer(d)
	return c, WriteInsert(c, t)
}

// WriteInsert writes an INSERT statement over t into c.
func WriteInsert(c *Container, t *schema.Table) error {
	if err := schema.ValidateTable(t).Err(); err != nil {
		return err
	}
	d := c.Dialect()
	identity, hasIdentity := t.Identity()
	cols := t.Insertable()
	c.Append("INSERT INTO ").IdentQualified(t.Schema, t.Name)
	if len(cols) > 0 {
		c.Append(" (").IdentList(columnNames(cols)...).Append(")")
	}
	if hasIdentity && d.IdentityStyle() == dialect.IdentityOutput {
		c.Append(" OUTPUT INSERTED.").Ident(identity.Name)
		c.ReturnsIdentity(true)
	}
	switch {
	case len(cols) > 0:
		c.Append(" VALUES (")
		for i, col := range cols {
			if i > 0 {
				c.Append(", ")
			}
			c.Declare(RoleInsert, col.Kind, col.Name)
		}
		c.Append(")")
	case d.Product() == dialect.MySQL:
		c.Append(" () VALUES ()")
	case d.Product() == dialect.Oracle:
		c.Append(" (").Ident(identity.Name).Append(") VALUES (DEFAULT)")
	default:
		c.Append(" DEFAULT VALUES")
	}
	if hasIdentity && d.IdentityStyle() == dialect.IdentityReturning {
		c.Append(" RETURNING ").Ident(identity.Name)
		c.ReturnsIdentity(true)
	}
	return c.Err()
}

// BuildUpdate returns an UPDATE statement setting every non-key column of the
// row identified by the primary key.
//
//	UPDATE `products` SET `name` = ?, `price` = ? WHERE `id` = ?
func BuildUpdate(d *dialect.Dialect, t *schema.Table) (*Container, error) {
	c := NewContainer(d)
	return c, WriteUpdate(c, t)
}

// WriteUpdate writes an UPDATE statement over t into c.
func WriteUpdate(c *Container, t *schema.Table) error {
	if err := requireKey(t); err != nil {
		return err
	}
	cols := t.Updatable()
	if len(cols) == 0 {
		return &schema.ValidationError{Table: t.Name, Message: "table has no updatable columns"}
	}
	c.Append("UPDATE ").IdentQualified(t.Schema, t.Name).Append(" SET ")
	for i, col := range cols {
		if i > 0 {
			c.Append(", ")
		}
		c.Ident(col.Name).Append(" = ")
		c.Declare(RoleSet, col.Kind, col.Name)
	}
	writeWhere(c, t, keyNames(t))
	return c.Err()
}

// BuildDelete returns a DELETE statement for the row identified by the primary key.
func BuildDelete(d *dialect.Dialect, t *schema.Table) (*Container, error) {
	c := NewContainer(d)
	return c, WriteDelete(c, t)
}

// WriteDelete writes a DELETE statement over t into c.
func WriteDelete(c *Container, t *schema.Table) error {
	if err := requireKey(t); err != nil {
		return err
	}
	c.Append("DELETE FROM ").IdentQualified(t.Schema, t.Name)
	writeWhere(c, t, keyNames(t))
	return c.Err()
}

// BuildUpsert returns an insert-or-update statement over every column of t,
// matching rows on the primary key, in the dialect's preferred form.
//
//	INSERT INTO "products" ("id", "name", "price") VALUES ($1, $2, $3)
//	ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "price" = EXCLUDED."price"
func BuildUpsert(d *dialect.Dialect, t *schema.Table) (*Container, error) {
	c := NewContainer(d)
	return c, WriteUpsert(c, t)
}

// WriteUpsert writes an insert-or-update statement over t into c.
func WriteUpsert(c *Container, t *schema.Table) error {
	if err := requireKey(t); err != nil {
		return err
	}
	style := c.Dialect().UpsertStyle()
	if err := c.Dialect().Require(style.Feature()); err != nil {
		return err
	}
	switch style {
	case dialect.UpsertMerge:
		writeMerge(c, t)
	case dialect.UpsertOnConflict:
		writeInsertValues(c, t, "INSERT INTO ")
		c.Append(" ON CONFLICT (").IdentList(keyNames(t)...).Append(")")
		update := t.Updatable()
		if len(update) == 0 {
			c.Append(" DO NOTHING")
			break
		}
		c.Append(" DO UPDATE SET ")
		for i, col := range update {
			if i > 0 {
				c.Append(", ")
			}
			c.Ident(col.Name).Append(" = EXCLUDED.").Ident(col.Name)
		}
	case dialect.UpsertOnDuplicateKey:
		writeInsertValues(c, t, "INSERT INTO ")
		c.Append(" ON DUPLICATE KEY UPDATE ")
		update := t.Updatable()
		if len(update) == 0 {
			k := keyNames(t)[0]
			c.Ident(k).Append(" = ").Ident(k)
			break
		}
		for i, col := range update {
			if i > 0 {
				c.Append(", ")
			}
			c.Ident(col.Name).Append(" = VALUES(").Ident(col.Name).Append(")")
		}
	case dialect.UpsertUpdateOrInsert:
		writeInsertValues(c, t, "UPDATE OR INSERT INTO ")
		c.Append(" MATCHING (").IdentList(keyNames(t)...).Append(")")
	}
	return c.Err()
}

// BuildMerge returns a MERGE statement over t regardless of the dialect's
// preferred upsert form. It fails with a DialectCapabilityError on products
// without MERGE.
func BuildMerge(d *dialect.Dialect, t *schema.Table) (*Container, error) {
	c := NewContainer(d)
	return c, WriteMerge(c, t)
}

// WriteMerge writes a MERGE statement over t into c.
func WriteMerge(c *Container, t *schema.Table) error {
	if err := c.Dialect().Require(dialect.FeatureMerge); err != nil {
		return err
	}
	if err := requireKey(t); err != nil {
		return err
	}
	writeMerge(c, t)
	return c.Err()
}

func writeMerge(c *Container, t *schema.Table) {
	d := c.Dialect()
	as := d.TableAlias()
	c.Append("MERGE INTO ").IdentQualified(t.Schema, t.Name).Append(as, "tgt USING (SELECT ")
	for i, col := range t.Columns {
		if i > 0 {
			c.Append(", ")
		}
		typ := d.TypeName(col.Kind)
		if d.CastsUntypedParams() && typ != "" {
			c.Append("CAST(")
			c.Declare(RoleInsert, col.Kind, col.Name)
			c.Append(" AS ", typ, ")")
		} else {
			c.Declare(RoleInsert, col.Kind, col.Name)
		}
		c.Append(" AS ").Ident(col.Name)
	}
	c.Append(d.SingleRowSource(), ")", as, "src ON (")
	for i, k := range keyNames(t) {
		if i > 0 {
			c.Append(" AND ")
		}
		c.Append("tgt.").Ident(k).Append(" = src.").Ident(k)
	}
	c.Append(")")
	if update := t.Updatable(); len(update) > 0 {
		c.Append(" WHEN MATCHED THEN UPDATE SET ")
		for i, col := range update {
			if i > 0 {
				c.Append(", ")
			}
			c.Ident(col.Name).Append(" = src.").Ident(col.Name)
		}
	}
	names := t.ColumnNames()
	c.Append(" WHEN NOT MATCHED THEN INSERT (").IdentList(names...).Append(") VALUES (")
	for i, n := range names {
		if i > 0 {
			c.Append(", ")
		}
		c.Append("src.").Ident(n)
	}
	c.Append(")")
	if d.Product() == dialect.SQLServer {
		c.Append(";")
	}
}

// writeInsertValues writes "<verb> t (all columns) VALUES (markers)".
func writeInsertValues(c *Container, t *schema.Table, verb string) {
	c.Append(verb).IdentQualified(t.Schema, t.Name).
		Append(" (").IdentList(t.ColumnNames()...).Append(") VALUES (")
	for i, col := range t.Columns {
		if i > 0 {
			c.Append(", ")
		}
		c.Declare(RoleInsert, col.Kind, col.Name)
	}
	c.Append(")")
}

func writeWhere(c *Container, t *schema.Table, cols []string) {
	for i, name := range cols {
		if i == 0 {
			c.Append(" WHERE ")
		} else {
			c.Append(" AND ")
		}
		col, _ := t.Column(name)
		c.Ident(name).Append(" = ")
		c.Declare(RoleWhere, col.Kind, name)
	}
}

func requireKey(t *schema.Table) error {
	if err := schema.ValidateTable(t).Err(); err != nil {
		return err
	}
	if len(t.PrimaryKey()) == 0 {
		return &schema.ValidationError{Table: t.Name, Message: "table has no primary key"}
	}
	return nil
}

func checkColumns(t *schema.Table, lists ...[]string) error {
	for _, list := range lists {
		for _, name := range list {
			if _, ok := t.Column(name); !ok {
				return &schema.ValidationError{Table: t.Name, Column: name, Message: "unknown column"}
			}
		}
	}
	return nil
}

func keyNames(t *schema.Table) []string {
	return columnNames(t.PrimaryKey())
}

func columnNames(cols []*schema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
