package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// loadCSV reads one or more delimited files sharing a header row.
func loadCSV(ctx context.Context, opts FileOpts) (*dataset, error) {
	files, err := inputFiles(opts.Filename, opts.Ext)
	if err != nil {
		return nil, err
	}
	raw := newRawTable()
	for _, path := range files {
		if err := readCSVFile(ctx, raw, path, opts.Compression); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return raw.build()
}

func readCSVFile(ctx context.Context, raw *rawTable, path string, c Compression) error {
	src, err := openSource(path, c)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	r := csv.NewReader(src)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("missing header row")
	}
	if err != nil {
		return err
	}
	if err := raw.setHeader(header); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		row := make([]cell, len(record))
		for i, v := range record {
			row[i] = cell{val: v, null: v == ""}
		}
		raw.rows = append(raw.rows, row)
	}
	raw.bytes += src.Bytes()
	return nil
}

// loadNDJSON reads one or more files holding one JSON object per line.
func loadNDJSON(ctx context.Context, opts FileOpts) (*dataset, error) {
	files, err := inputFiles(opts.Filename, opts.Ext)
	if err != nil {
		return nil, err
	}
	raw := newRawTable()
	for _, path := range files {
		if err := readNDJSONFile(ctx, raw, path, opts.Compression); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return raw.build()
}

func readNDJSONFile(ctx context.Context, raw *rawTable, path string, c Compression) error {
	src, err := openSource(path, c)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		if text[0] != '{' {
			return fmt.Errorf("line %d: expected a JSON object", line)
		}
		row, err := decodeObject(raw, text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		raw.rows = append(raw.rows, row)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	raw.bytes += src.Bytes()
	return nil
}

// decodeObject walks the object's keys in document order so that column
// order follows first appearance.
func decodeObject(raw *rawTable, text []byte) ([]cell, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	row := make([]cell, len(raw.columns))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		i := raw.column(key)
		for len(row) <= i {
			row = append(row, cell{null: true})
		}
		row[i], err = jsonCell(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
	}
	for i := range row {
		if row[i] == (cell{}) {
			row[i].null = true
		}
	}
	return row, nil
}

func jsonCell(v any) (cell, error) {
	switch x := v.(type) {
	case nil:
		return cell{null: true}, nil
	case json.Number:
		return cell{val: x.String()}, nil
	case bool:
		if x {
			return cell{val: "true"}, nil
		}
		return cell{val: "false"}, nil
	case string:
		return cell{val: x, text: true}, nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return cell{}, err
		}
		return cell{val: string(b), text: true}, nil
	}
}
