package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bawdo/datashell/internal/command"
	"github.com/bawdo/datashell/internal/engine"
)

var (
	errConnectUsage = errors.New("usage: connect <source> [--name NAME] [--format csv|parquet|ndjson] [--ext EXT] [--compression C]")
	errHeadUsage    = errors.New("usage: head <name> [-n ROWS]")
)

// tokenize splits shell arguments on whitespace. Single or double quotes
// group words; a doubled quote inside a quoted word is a literal quote.
// Quotes are removed from the returned tokens.
func tokenize(input string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	var quote byte
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for i := 0; i < len(input); i++ {
		ch := input[i]

		if quote != 0 {
			if ch == quote {
				if i+1 < len(input) && input[i+1] == quote {
					cur.WriteByte(ch)
					i++
				} else {
					quote = 0
				}
				continue
			}
			cur.WriteByte(ch)
			continue
		}

		switch ch {
		case '\'', '"':
			quote = ch
			inToken = true
		case ' ', '\t':
			flush()
		default:
			cur.WriteByte(ch)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	flush()
	return tokens, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseConnect builds a Connect from connect's arguments.
func parseConnect(tokens []string) (command.Connect, error) {
	fs := newFlagSet("connect")
	name := fs.StringP("name", "n", "", "dataset name")
	format := fs.StringP("format", "f", "", "file format")
	ext := fs.String("ext", "", "file extension inside a directory")
	comp := fs.String("compression", "", "compression codec")
	if err := fs.Parse(tokens); err != nil {
		return command.Connect{}, fmt.Errorf("connect: %w", err)
	}
	if fs.NArg() != 1 {
		return command.Connect{}, errConnectUsage
	}
	source := fs.Arg(0)

	conn, err := descriptor(source, *format, *ext, *comp)
	if err != nil {
		return command.Connect{}, err
	}
	if *name == "" {
		*name = engine.DefaultName(source)
	}
	return command.NewConnect(*name, conn)
}

// descriptor infers the dataset kind of source, overridden by any explicit
// format, extension or compression. The compression implied by the file
// suffix holds unless --compression is given.
func descriptor(source, format, ext, comp string) (engine.DatasetConn, error) {
	if format == "" && ext == "" && comp == "" {
		return engine.ParseDescriptor(source)
	}

	opts := engine.FileOpts{Filename: source, Ext: ext, Compression: engine.CompressionOf(source)}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		opts.Ext = "." + ext
	}
	if format == "" {
		inferred, err := engine.ParseDescriptor(source)
		if err != nil {
			return nil, fmt.Errorf("%w; pass --format", err)
		}
		if _, ok := inferred.(engine.RelationalConn); ok {
			return nil, errors.New("--ext and --compression apply to files only")
		}
		format = inferred.Kind()
	}
	if comp != "" {
		c, err := engine.ParseCompression(comp)
		if err != nil {
			return nil, err
		}
		opts.Compression = c
	}
	return engine.NewFileConn(format, opts)
}

// parseHead builds a Head from head's arguments.
func parseHead(tokens []string) (command.Head, error) {
	fs := newFlagSet("head")
	rows := fs.IntP("rows", "n", engine.DefaultHeadRows, "rows to show")
	if err := fs.Parse(tokens); err != nil {
		return command.Head{}, fmt.Errorf("head: %w", err)
	}
	if fs.NArg() != 1 {
		return command.Head{}, errHeadUsage
	}
	h, err := command.NewHead(fs.Arg(0))
	if err != nil {
		return command.Head{}, err
	}
	return h.WithRows(*rows)
}

// singleName returns the only token of a one-argument command.
func singleName(verb string, tokens []string) (string, error) {
	if len(tokens) != 1 {
		return "", fmt.Errorf("usage: %s <name>", verb)
	}
	return tokens[0], nil
}
