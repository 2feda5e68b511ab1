// Package catalog bootstraps the four fixed-UUID system tables (§3:
// pg_class, pg_attribute, pg_constraint, pg_index) as ordinary Tables,
// dogfooding the Row Manager the same way the engine stores user data.
// Grounded on the teacher's internal/storage/catalog.go (a fixed set of
// bootstrap system relations consulted by name), adapted from the
// teacher's single in-memory catalog map to tables that are themselves
// persisted pages.
package catalog

import (
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lanterndb/lantern/internal/storage/pager"
	"github.com/lanterndb/lantern/internal/storage/row"
	"github.com/lanterndb/lantern/internal/storage/table"
	"github.com/lanterndb/lantern/internal/storage/txn"
)

// Fixed resource identifiers for the four system tables (§3).
var (
	PgClassResource      = pager.ResourceKey(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	PgAttributeResource  = pager.ResourceKey(uuid.MustParse("00000000-0000-0000-0000-000000000002"))
	PgConstraintResource = pager.ResourceKey(uuid.MustParse("00000000-0000-0000-0000-000000000003"))
	PgIndexResource      = pager.ResourceKey(uuid.MustParse("00000000-0000-0000-0000-000000000004"))
)

func pgClassAttrs() []row.Attribute {
	return []row.Attribute{
		{Name: "id", Type: row.ColumnType{Kind: row.KindUuid}},
		{Name: "name", Type: row.ColumnType{Kind: row.KindText}},
	}
}

func pgAttributeAttrs() []row.Attribute {
	return []row.Attribute{
		{Name: "class_id", Type: row.ColumnType{Kind: row.KindUuid}},
		{Name: "name", Type: row.ColumnType{Kind: row.KindText}},
		{Name: "type_name", Type: row.ColumnType{Kind: row.KindText}},
		{Name: "column_num", Type: row.ColumnType{Kind: row.KindInteger}},
		{Name: "nullable", Type: row.ColumnType{Kind: row.KindBool}},
	}
}

func pgConstraintAttrs() []row.Attribute {
	return []row.Attribute{
		{Name: "id", Type: row.ColumnType{Kind: row.KindUuid}},
		{Name: "class_id", Type: row.ColumnType{Kind: row.KindUuid}},
		{Name: "index_id", Type: row.ColumnType{Kind: row.KindUuid}},
		{Name: "name", Type: row.ColumnType{Kind: row.KindText}},
		{Name: "type", Type: row.ColumnType{Kind: row.KindText}},
	}
}

func pgIndexAttrs() []row.Attribute {
	return []row.Attribute{
		{Name: "id", Type: row.ColumnType{Kind: row.KindUuid}},
		{Name: "class_id", Type: row.ColumnType{Kind: row.KindUuid}},
		{Name: "name", Type: row.ColumnType{Kind: row.KindText}},
		{Name: "attributes", Type: row.ColumnType{Kind: row.KindArray, Elem: &row.ColumnType{Kind: row.KindInteger}}},
		{Name: "unique", Type: row.ColumnType{Kind: row.KindBool}},
	}
}

// Catalog bundles the four bootstrapped system tables.
type Catalog struct {
	PgClass      *table.Table
	PgAttribute  *table.Table
	PgConstraint *table.Table
	PgIndex      *table.Table
}

// Open binds a Catalog to p's fixed system-table resources.
func Open(p *pager.Pager) *Catalog {
	return &Catalog{
		PgClass:      table.New(p, PgClassResource, pgClassAttrs()),
		PgAttribute:  table.New(p, PgAttributeResource, pgAttributeAttrs()),
		PgConstraint: table.New(p, PgConstraintResource, pgConstraintAttrs()),
		PgIndex:      table.New(p, PgIndexResource, pgIndexAttrs()),
	}
}

// RegisterTable records a new user table's class and attribute rows and
// returns its freshly minted class id.
func (c *Catalog) RegisterTable(tid txn.ID, name string, attrs []row.Attribute) (uuid.UUID, error) {
	classID := uuid.New()
	if _, err := c.PgClass.Insert(tid, []row.Value{row.UuidValue(classID), row.TextValue(name)}); err != nil {
		return uuid.Nil, err
	}
	for i, a := range attrs {
		values := []row.Value{
			row.UuidValue(classID),
			row.TextValue(a.Name),
			row.TextValue(a.Type.Kind.String()),
			row.IntValue(int32(i)),
			row.BoolValue(a.Nullable),
		}
		if _, err := c.PgAttribute.Insert(tid, values); err != nil {
			return uuid.Nil, err
		}
	}
	return classID, nil
}

// RegisterIndex records a new index's pg_index row and returns its id.
func (c *Catalog) RegisterIndex(tid txn.ID, classID uuid.UUID, name string, columnNums []int32, unique bool) (uuid.UUID, error) {
	indexID := uuid.New()
	cols := make([]row.Value, len(columnNums))
	for i, n := range columnNums {
		cols[i] = row.IntValue(n)
	}
	values := []row.Value{
		row.UuidValue(indexID),
		row.UuidValue(classID),
		row.TextValue(name),
		row.ArrayValue(cols),
		row.BoolValue(unique),
	}
	if _, err := c.PgIndex.Insert(tid, values); err != nil {
		return uuid.Nil, err
	}
	return indexID, nil
}

// RegisterConstraint records a constraint referencing an index (e.g. a
// primary key, modeled per §3 as a unique index plus this record).
func (c *Catalog) RegisterConstraint(tid txn.ID, classID, indexID uuid.UUID, name, kind string) (uuid.UUID, error) {
	id := uuid.New()
	values := []row.Value{
		row.UuidValue(id),
		row.UuidValue(classID),
		row.UuidValue(indexID),
		row.TextValue(name),
		row.TextValue(kind),
	}
	if _, err := c.PgConstraint.Insert(tid, values); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// classDump and attributeDump are the flattened shape DumpSchema emits —
// plain structs rather than reuse of row.Value, since a debug dump should
// survive independently of the wire format's representation.
type classDump struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type attributeDump struct {
	ClassID   string `json:"class_id"`
	Name      string `json:"name"`
	TypeName  string `json:"type_name"`
	ColumnNum int32  `json:"column_num"`
	Nullable  bool   `json:"nullable"`
}

type schemaDump struct {
	Classes    []classDump     `json:"classes"`
	Attributes []attributeDump `json:"attributes"`
}

// DumpSchema renders every registered class and attribute as indented JSON,
// for operator-facing introspection rather than the on-disk wire format.
func (c *Catalog) DumpSchema() ([]byte, error) {
	classRows, err := c.PgClass.Stream()
	if err != nil {
		return nil, err
	}
	attrRows, err := c.PgAttribute.Stream()
	if err != nil {
		return nil, err
	}

	dump := schemaDump{
		Classes:    make([]classDump, len(classRows)),
		Attributes: make([]attributeDump, len(attrRows)),
	}
	for i, e := range classRows {
		dump.Classes[i] = classDump{ID: e.Row.Values[0].Uuid.String(), Name: e.Row.Values[1].Text}
	}
	for i, e := range attrRows {
		dump.Attributes[i] = attributeDump{
			ClassID:   e.Row.Values[0].Uuid.String(),
			Name:      e.Row.Values[1].Text,
			TypeName:  e.Row.Values[2].Text,
			ColumnNum: e.Row.Values[3].Int,
			Nullable:  e.Row.Values[4].Bool,
		}
	}
	return json.MarshalIndent(dump, "", "  ")
}
