package sql

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlbridge"
	"github.com/syssam/sqlbridge/dialect"
	"github.com/syssam/sqlbridge/schema"
)

func productsTable() *schema.Table {
	return schema.New("products",
		schema.Int("id").PrimaryKey().Increment(),
		schema.Text("name"),
		schema.Decimal("price"),
	)
}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name    string
		product dialect.Product
		opts    []SelectOption
		want    string
	}{
		{
			name:    "by key",
			product: dialect.SQLServer,
			want:    "SELECT [id], [name], [price] FROM [products] WHERE [id] = @w0",
		},
		{
			name:    "columns where order limit",
			product: dialect.PostgreSQL,
			opts:    []SelectOption{Columns("name"), Where("price"), OrderBy("name"), Page(10, 0)},
			want:    `SELECT "name" FROM "products" WHERE "price" = $1 ORDER BY "name" LIMIT 10`,
		},
		{
			name:    "sqlserver paging without order",
			product: dialect.SQLServer,
			opts:    []SelectOption{Where(), Page(10, 20)},
			want:    "SELECT [id], [name], [price] FROM [products] ORDER BY [id] OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY",
		},
		{
			name:    "mysql offset only",
			product: dialect.MySQL,
			opts:    []SelectOption{Where(), Page(0, 5)},
			want:    "SELECT `id`, `name`, `price` FROM `products` LIMIT 18446744073709551615 OFFSET 5",
		},
		{
			name:    "sqlite offset only",
			product: dialect.SQLite,
			opts:    []SelectOption{Where(), Page(0, 5)},
			want:    `SELECT "id", "name", "price" FROM "products" LIMIT -1 OFFSET 5`,
		},
		{
			name:    "oracle paging",
			product: dialect.Oracle,
			opts:    []SelectOption{Where(), OrderBy("name"), Page(5, 10)},
			want:    `SELECT "id", "name", "price" FROM "products" ORDER BY "name" OFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY`,
		},
		{
			name:    "firebird by key",
			product: dialect.Firebird,
			want:    `SELECT "id", "name", "price" FROM "products" WHERE "id" = ?`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := BuildSelect(dialect.Get(tt.product), productsTable(), tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
		})
	}
}

func TestBuildSelectNoKeyPaging(t *testing.T) {
	tbl := schema.New("events", schema.Text("line"))
	c, err := BuildSelect(dialect.Get(dialect.SQLServer), tbl, Where(), Page(1, 0))
	require.NoError(t, err)
	assert.Equal(t, "SELECT [line] FROM [events] ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 1 ROWS ONLY", c.String())
}

func TestBuildSelectUnknownColumn(t *testing.T) {
	_, err := BuildSelect(dialect.Get(dialect.PostgreSQL), productsTable(), Where("nope"))
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nope", verr.Column)
}

func TestBuildInsert(t *testing.T) {
	tests := []struct {
		product  dialect.Product
		want     string
		identity bool
	}{
		{dialect.SQLServer, "INSERT INTO [products] ([name], [price]) OUTPUT INSERTED.[id] VALUES (@i0, @i1)", true},
		{dialect.PostgreSQL, `INSERT INTO "products" ("name", "price") VALUES ($1, $2) RETURNING "id"`, true},
		{dialect.MySQL, "INSERT INTO `products` (`name`, `price`) VALUES (?, ?)", false},
		{dialect.SQLite, `INSERT INTO "products" ("name", "price") VALUES (@i0, @i1) RETURNING "id"`, true},
		{dialect.Oracle, `INSERT INTO "products" ("name", "price") VALUES (:i0, :i1)`, false},
		{dialect.Firebird, `INSERT INTO "products" ("name", "price") VALUES (?, ?) RETURNING "id"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.product.String(), func(t *testing.T) {
			c, err := BuildInsert(dialect.Get(tt.product), productsTable())
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
			assert.Equal(t, tt.identity, c.identity)
		})
	}
}

func TestBuildInsertDefaultValues(t *testing.T) {
	tbl := schema.New("counters", schema.Int("id").PrimaryKey().Increment())
	tests := map[dialect.Product]string{
		dialect.SQLServer:  "INSERT INTO [counters] OUTPUT INSERTED.[id] DEFAULT VALUES",
		dialect.PostgreSQL: `INSERT INTO "counters" DEFAULT VALUES RETURNING "id"`,
		dialect.MySQL:      "INSERT INTO `counters` () VALUES ()",
		dialect.Oracle:     `INSERT INTO "counters" ("id") VALUES (DEFAULT)`,
	}
	for p, want := range tests {
		c, err := BuildInsert(dialect.Get(p), tbl)
		require.NoError(t, err, p)
		assert.Equal(t, want, c.String(), p)
	}
}

func TestBuildInsertBind(t *testing.T) {
	c, err := BuildInsert(dialect.Get(dialect.PostgreSQL), productsTable())
	require.NoError(t, err)
	_, _, err = c.Query()
	require.Error(t, err, "declared parameters must be bound")

	require.NoError(t, c.SetColumn("name", "Widget"))
	require.NoError(t, c.SetColumn("price", 9.99))
	_, args, err := c.Query()
	require.NoError(t, err)
	assert.Equal(t, []any{"Widget", "9.99"}, args)
}

func TestBuildUpdateDelete(t *testing.T) {
	c, err := BuildUpdate(dialect.Get(dialect.PostgreSQL), productsTable())
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "products" SET "name" = $1, "price" = $2 WHERE "id" = $3`, c.String())

	c, err = BuildUpdate(dialect.Get(dialect.MySQL), productsTable().InSchema("shop"))
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `shop`.`products` SET `name` = ?, `price` = ? WHERE `id` = ?", c.String())

	c, err = BuildDelete(dialect.Get(dialect.SQLServer), productsTable().InSchema("dbo"))
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM [dbo].[products] WHERE [id] = @w0", c.String())

	c, err = BuildDelete(dialect.Get(dialect.Oracle), productsTable())
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "products" WHERE "id" = :w0`, c.String())
}

func TestBuildWithoutKey(t *testing.T) {
	tbl := schema.New("events", schema.Text("line"))
	d := dialect.Get(dialect.PostgreSQL)
	for name, build := range map[string]func(*dialect.Dialect, *schema.Table) (*Container, error){
		"update": BuildUpdate,
		"delete": BuildDelete,
		"upsert": BuildUpsert,
		"merge":  BuildMerge,
	} {
		_, err := build(d, tbl)
		var verr *schema.ValidationError
		require.ErrorAs(t, err, &verr, name)
		assert.Contains(t, verr.Message, "primary key", name)
	}
}

func TestBuildUpsert(t *testing.T) {
	tests := []struct {
		product dialect.Product
		want    string
	}{
		{
			dialect.SQLServer,
			"MERGE INTO [products] AS tgt USING (SELECT @i0 AS [id], @i1 AS [name], @i2 AS [price]) AS src ON (tgt.[id] = src.[id])" +
				" WHEN MATCHED THEN UPDATE SET [name] = src.[name], [price] = src.[price]" +
				" WHEN NOT MATCHED THEN INSERT ([id], [name], [price]) VALUES (src.[id], src.[name], src.[price]);",
		},
		{
			dialect.PostgreSQL,
			`INSERT INTO "products" ("id", "name", "price") VALUES ($1, $2, $3)` +
				` ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "price" = EXCLUDED."price"`,
		},
		{
			dialect.MySQL,
			"INSERT INTO `products` (`id`, `name`, `price`) VALUES (?, ?, ?)" +
				" ON DUPLICATE KEY UPDATE `name` = VALUES(`name`), `price` = VALUES(`price`)",
		},
		{
			dialect.SQLite,
			`INSERT INTO "products" ("id", "name", "price") VALUES (@i0, @i1, @i2)` +
				` ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "price" = EXCLUDED."price"`,
		},
		{
			dialect.Oracle,
			`MERGE INTO "products" tgt USING (SELECT :i0 AS "id", :i1 AS "name", :i2 AS "price" FROM DUAL) src ON (tgt."id" = src."id")` +
				` WHEN MATCHED THEN UPDATE SET "name" = src."name", "price" = src."price"` +
				` WHEN NOT MATCHED THEN INSERT ("id", "name", "price") VALUES (src."id", src."name", src."price")`,
		},
		{
			dialect.Firebird,
			`UPDATE OR INSERT INTO "products" ("id", "name", "price") VALUES (?, ?, ?) MATCHING ("id")`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.product.String(), func(t *testing.T) {
			c, err := BuildUpsert(dialect.Get(tt.product), productsTable())
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
		})
	}
}

func TestBuildUpsertKeyOnly(t *testing.T) {
	tbl := schema.New("tags", schema.Text("name").PrimaryKey())
	c, err := BuildUpsert(dialect.Get(dialect.PostgreSQL), tbl)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "tags" ("name") VALUES ($1) ON CONFLICT ("name") DO NOTHING`, c.String())

	c, err = BuildUpsert(dialect.Get(dialect.MySQL), tbl)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `tags` (`name`) VALUES (?) ON DUPLICATE KEY UPDATE `name` = `name`", c.String())
}

func TestBuildMerge(t *testing.T) {
	c, err := BuildMerge(dialect.Get(dialect.PostgreSQL), productsTable())
	require.NoError(t, err)
	assert.Equal(t,
		`MERGE INTO "products" AS tgt USING (SELECT CAST($1 AS BIGINT) AS "id", CAST($2 AS TEXT) AS "name", CAST($3 AS NUMERIC) AS "price") AS src`+
			` ON (tgt."id" = src."id")`+
			` WHEN MATCHED THEN UPDATE SET "name" = src."name", "price" = src."price"`+
			` WHEN NOT MATCHED THEN INSERT ("id", "name", "price") VALUES (src."id", src."name", src."price")`,
		c.String())

	c, err = BuildMerge(dialect.Get(dialect.Firebird), productsTable())
	require.NoError(t, err)
	assert.Contains(t, c.String(), `CAST(? AS BIGINT) AS "id"`)
	assert.Contains(t, c.String(), ` FROM RDB$DATABASE) AS src`)

	for _, p := range []dialect.Product{dialect.MySQL, dialect.SQLite} {
		_, err := BuildMerge(dialect.Get(p), productsTable())
		var cerr *sqlbridge.DialectCapabilityError
		require.ErrorAs(t, err, &cerr, p)
		assert.Equal(t, "merge", cerr.Feature)
		assert.Equal(t, p.String(), cerr.Dialect)
	}
}

func TestBuildMergeBind(t *testing.T) {
	c, err := BuildMerge(dialect.Get(dialect.SQLServer), productsTable())
	require.NoError(t, err)
	require.NoError(t, c.SetColumn("id", 1))
	require.NoError(t, c.SetColumn("name", "Widget"))
	require.NoError(t, c.SetColumn("price", "9.99"))
	_, args, err := c.Query()
	require.NoError(t, err)
	assert.Equal(t, []any{
		sql.Named("i0", int64(1)),
		sql.Named("i1", "Widget"),
		sql.Named("i2", "9.99"),
	}, args)
}
