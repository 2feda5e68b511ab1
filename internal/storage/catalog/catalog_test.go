package catalog

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lanterndb/lantern/internal/storage/pager"
	"github.com/lanterndb/lantern/internal/storage/row"
	"github.com/lanterndb/lantern/internal/storage/txn"
)

func TestRegisterTableAndAttribute(t *testing.T) {
	p := pager.Open(t.TempDir())
	defer p.Close()
	cat := Open(p)
	tid := txn.ID(1)

	attrs := []row.Attribute{
		{Name: "id", Type: row.ColumnType{Kind: row.KindUuid}},
		{Name: "label", Type: row.ColumnType{Kind: row.KindText}, Nullable: true},
	}
	classID, err := cat.RegisterTable(tid, "widgets", attrs)
	if err != nil {
		t.Fatalf("RegisterTable: %v", err)
	}
	if classID == uuid.Nil {
		t.Fatalf("RegisterTable returned nil class id")
	}

	classRows, err := cat.PgClass.Stream()
	if err != nil {
		t.Fatalf("Stream pg_class: %v", err)
	}
	if len(classRows) != 1 {
		t.Fatalf("pg_class has %d rows, want 1", len(classRows))
	}
	if classRows[0].Row.Values[0].Uuid != classID || classRows[0].Row.Values[1].Text != "widgets" {
		t.Fatalf("pg_class row = %+v", classRows[0].Row.Values)
	}

	attrRows, err := cat.PgAttribute.Stream()
	if err != nil {
		t.Fatalf("Stream pg_attribute: %v", err)
	}
	if len(attrRows) != len(attrs) {
		t.Fatalf("pg_attribute has %d rows, want %d", len(attrRows), len(attrs))
	}
	for i, e := range attrRows {
		if e.Row.Values[0].Uuid != classID {
			t.Fatalf("attr %d class_id = %v, want %v", i, e.Row.Values[0].Uuid, classID)
		}
		if e.Row.Values[1].Text != attrs[i].Name {
			t.Fatalf("attr %d name = %q, want %q", i, e.Row.Values[1].Text, attrs[i].Name)
		}
		if e.Row.Values[3].Int != int32(i) {
			t.Fatalf("attr %d column_num = %d, want %d", i, e.Row.Values[3].Int, i)
		}
	}
}

func TestRegisterIndexAndConstraint(t *testing.T) {
	p := pager.Open(t.TempDir())
	defer p.Close()
	cat := Open(p)
	tid := txn.ID(1)

	classID, err := cat.RegisterTable(tid, "widgets", []row.Attribute{
		{Name: "id", Type: row.ColumnType{Kind: row.KindUuid}},
	})
	if err != nil {
		t.Fatalf("RegisterTable: %v", err)
	}

	indexID, err := cat.RegisterIndex(tid, classID, "widgets_pkey", []int32{0}, true)
	if err != nil {
		t.Fatalf("RegisterIndex: %v", err)
	}
	if indexID == uuid.Nil {
		t.Fatalf("RegisterIndex returned nil id")
	}

	indexRows, err := cat.PgIndex.Stream()
	if err != nil {
		t.Fatalf("Stream pg_index: %v", err)
	}
	if len(indexRows) != 1 {
		t.Fatalf("pg_index has %d rows, want 1", len(indexRows))
	}
	cols := indexRows[0].Row.Values[3].Array
	if len(cols) != 1 || cols[0].Int != 0 {
		t.Fatalf("pg_index attributes = %+v, want [0]", cols)
	}
	if !indexRows[0].Row.Values[4].Bool {
		t.Fatalf("pg_index unique = false, want true")
	}

	constraintID, err := cat.RegisterConstraint(tid, classID, indexID, "widgets_pkey", "primary_key")
	if err != nil {
		t.Fatalf("RegisterConstraint: %v", err)
	}
	if constraintID == uuid.Nil {
		t.Fatalf("RegisterConstraint returned nil id")
	}

	constraintRows, err := cat.PgConstraint.Stream()
	if err != nil {
		t.Fatalf("Stream pg_constraint: %v", err)
	}
	if len(constraintRows) != 1 {
		t.Fatalf("pg_constraint has %d rows, want 1", len(constraintRows))
	}
	if constraintRows[0].Row.Values[4].Text != "primary_key" {
		t.Fatalf("pg_constraint type = %q, want \"primary_key\"", constraintRows[0].Row.Values[4].Text)
	}
}

func TestDumpSchema(t *testing.T) {
	p := pager.Open(t.TempDir())
	defer p.Close()
	cat := Open(p)
	tid := txn.ID(1)

	if _, err := cat.RegisterTable(tid, "widgets", []row.Attribute{
		{Name: "id", Type: row.ColumnType{Kind: row.KindUuid}},
	}); err != nil {
		t.Fatalf("RegisterTable: %v", err)
	}

	out, err := cat.DumpSchema()
	if err != nil {
		t.Fatalf("DumpSchema: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("DumpSchema returned empty output")
	}

	var decoded schemaDump
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("Unmarshal DumpSchema output: %v", err)
	}
	if len(decoded.Classes) != 1 || decoded.Classes[0].Name != "widgets" {
		t.Fatalf("decoded classes = %+v", decoded.Classes)
	}
	if len(decoded.Attributes) != 1 || decoded.Attributes[0].Name != "id" {
		t.Fatalf("decoded attributes = %+v", decoded.Attributes)
	}
}

func TestFixedResourceIDsAreDistinct(t *testing.T) {
	ids := map[pager.ResourceKey]string{
		PgClassResource:      "pg_class",
		PgAttributeResource:  "pg_attribute",
		PgConstraintResource: "pg_constraint",
		PgIndexResource:      "pg_index",
	}
	if len(ids) != 4 {
		t.Fatalf("fixed resource ids collide: %+v", ids)
	}
}
