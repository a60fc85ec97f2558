package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

const parquetBatch = 256

// loadParquet reads a flat parquet file. Column types come from the file's
// physical types; nested groups are rejected.
func loadParquet(ctx context.Context, filename string) (*dataset, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parquet: %w", err)
	}

	fields := pf.Schema().Fields()
	ds := &dataset{bytes: info.Size()}
	for _, field := range fields {
		if !field.Leaf() {
			return nil, fmt.Errorf("column %q is a nested group, only flat schemas are supported", field.Name())
		}
		if field.Repeated() {
			return nil, fmt.Errorf("column %q is repeated, only flat schemas are supported", field.Name())
		}
		ds.columns = append(ds.columns, field.Name())
		ds.types = append(ds.types, parquetType(field.Type().Kind()))
	}

	buf := make([]parquet.Row, parquetBatch)
	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(ctx, ds, rg, buf); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func readRowGroup(ctx context.Context, ds *dataset, rg parquet.RowGroup, buf []parquet.Row) error {
	rows := rg.Rows()
	defer func() { _ = rows.Close() }()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			out := make([]any, len(ds.columns))
			for _, v := range row {
				col := v.Column()
				if col < 0 || col >= len(out) || v.IsNull() {
					continue
				}
				out[col] = parquetValue(v)
			}
			ds.rows = append(ds.rows, out)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parquet: %w", err)
		}
	}
}

func parquetType(k parquet.Kind) colType {
	switch k {
	case parquet.Boolean:
		return typeBoolean
	case parquet.Int32, parquet.Int64:
		return typeBigint
	case parquet.Float, parquet.Double:
		return typeDouble
	}
	return typeVarchar
}

func parquetValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.Int96:
		return v.Int96().String()
	}
	return string(v.ByteArray())
}
