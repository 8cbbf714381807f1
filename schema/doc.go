// Package schema declares the table metadata the statement builders work from.
//
// Metadata is explicit: tables are declared with column builders and,
// optionally, registered under the entity type they map to. Nothing is
// discovered by reflection.
//
//	var Products = schema.Entity("Product",
//	    schema.Int("id").PrimaryKey().Increment(),
//	    schema.Text("name"),
//	    schema.Decimal("price"),
//	)
//
// Entity derives the table name ("products") from the type name. Use New
// when the table name is fixed:
//
//	schema.New("order_lines", schema.Int("order_id").PrimaryKey(), ...)
//
// # Column Kinds
//
// Each column carries a dialect.Kind that selects the value coercion applied
// when a parameter for that column is bound:
//
//	schema.Text("name")       // KindText
//	schema.Int("count")       // KindInteger
//	schema.Decimal("price")   // KindDecimal, exact on server products
//	schema.Bool("active")     // KindBoolean
//	schema.Time("created_at") // KindDateTime
//	schema.UUID("ref")        // KindUUID
//
// # Validation
//
// ValidateTable reports structural problems such as duplicate columns or
// a non-integer auto-increment column. Registry.Register refuses invalid
// tables.
package schema
