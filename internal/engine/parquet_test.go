package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/bawdo/datashell/internal/testutil"
)

type trip struct {
	ID       int64   `parquet:"id"`
	City     string  `parquet:"city"`
	Distance float64 `parquet:"distance"`
	Shared   bool    `parquet:"shared"`
	Tip      *int32  `parquet:"tip,optional"`
}

type nested struct {
	ID   int64    `parquet:"id"`
	Tags []string `parquet:"tags,list"`
}

func TestConnectParquet(t *testing.T) {
	t.Parallel()
	tip := int32(3)
	path := filepath.Join(t.TempDir(), "trips.parquet")
	err := parquet.WriteFile(path, []trip{
		{ID: 1, City: "Oslo", Distance: 2.5, Shared: true, Tip: &tip},
		{ID: 2, City: "Bergen", Distance: 7.25},
	})
	testutil.AssertNoError(t, err)

	b := newBackend(t)
	ctx := context.Background()
	conn, err := ParseDescriptor(path)
	testutil.AssertNoError(t, err)
	_, err = b.Connect(ctx, ConnectOpts{Name: "trips", Conn: conn})
	testutil.AssertNoError(t, err)

	schema := display(t)(b.Schema(ctx, "trips"))
	for _, want := range []string{"| id ", "| city ", "| distance ", "| shared ", "| tip ", "BIGINT", "VARCHAR", "DOUBLE", "BOOLEAN"} {
		testutil.AssertContains(t, schema, want)
	}

	head := display(t)(b.Head(ctx, "trips", 10))
	testutil.AssertContains(t, head, "(2 rows)")
	testutil.AssertContains(t, head, "Bergen")
	testutil.AssertContains(t, head, "NULL")

	list := display(t)(b.List(ctx))
	testutil.AssertContains(t, list, "| parquet ")
}

func TestConnectParquetRejectsNested(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested.parquet")
	err := parquet.WriteFile(path, []nested{{ID: 1, Tags: []string{"a"}}})
	testutil.AssertNoError(t, err)

	b := newBackend(t)
	_, err = b.Connect(context.Background(), ConnectOpts{Name: "n", Conn: ParquetConn{Filename: path}})
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
}

func TestConnectParquetNotParquet(t *testing.T) {
	t.Parallel()
	path := testutil.WriteFile(t, "fake.parquet", "id,name\n1,a\n")
	b := newBackend(t)
	_, err := b.Connect(context.Background(), ConnectOpts{Name: "f", Conn: ParquetConn{Filename: path}})
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
}
