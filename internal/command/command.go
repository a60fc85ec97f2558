// Package command defines the commands the shell sends to the engine.
//
// Each command is an immutable value holding only its arguments. Execute
// runs it against a Backend and renders the result; it is the single
// extension point for new commands, the dispatch machinery only ever calls
// Execute.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bawdo/datashell/internal/engine"
	"github.com/bawdo/datashell/internal/render"
)

var (
	ErrEmptyName  = errors.New("dataset name must not be empty")
	ErrEmptyQuery = errors.New("query must not be empty")
)

// Command is one unit of work for the engine.
type Command interface {
	// Name is the shell verb, used in logs.
	Name() string
	Execute(ctx context.Context, b engine.Backend) (string, error)
}

var (
	_ Command = Connect{}
	_ Command = List{}
	_ Command = Schema{}
	_ Command = Describe{}
	_ Command = Head{}
	_ Command = Query{}
)

func show(ctx context.Context, d render.Displayable, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return d.Display(ctx)
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// Connect registers a data source under a name.
type Connect struct {
	opts engine.ConnectOpts
}

// NewConnect validates the name and source of a connect.
func NewConnect(name string, conn engine.DatasetConn) (Connect, error) {
	name, err := validName(name)
	if err != nil {
		return Connect{}, err
	}
	if conn == nil {
		return Connect{}, errors.New("connect needs a source")
	}
	return Connect{opts: engine.ConnectOpts{Name: name, Conn: conn}}, nil
}

func (c Connect) Name() string { return "connect" }

// Opts returns the descriptor this command registers.
func (c Connect) Opts() engine.ConnectOpts { return c.opts }

func (c Connect) Execute(ctx context.Context, b engine.Backend) (string, error) {
	d, err := b.Connect(ctx, c.opts)
	return show(ctx, d, err)
}

// List enumerates registered datasets.
type List struct{}

func (List) Name() string { return "list" }

func (List) Execute(ctx context.Context, b engine.Backend) (string, error) {
	d, err := b.List(ctx)
	return show(ctx, d, err)
}

// Schema shows the columns of a dataset.
type Schema struct {
	dataset string
}

func NewSchema(name string) (Schema, error) {
	name, err := validName(name)
	return Schema{dataset: name}, err
}

func (Schema) Name() string { return "schema" }

func (s Schema) Execute(ctx context.Context, b engine.Backend) (string, error) {
	d, err := b.Schema(ctx, s.dataset)
	return show(ctx, d, err)
}

// Describe computes summary statistics of a dataset.
type Describe struct {
	dataset string
}

func NewDescribe(name string) (Describe, error) {
	name, err := validName(name)
	return Describe{dataset: name}, err
}

func (Describe) Name() string { return "describe" }

func (c Describe) Execute(ctx context.Context, b engine.Backend) (string, error) {
	d, err := b.Describe(ctx, c.dataset)
	return show(ctx, d, err)
}

// Head shows the first rows of a dataset.
type Head struct {
	dataset string
	n       int
}

// NewHead builds a head of engine.DefaultHeadRows rows.
func NewHead(name string) (Head, error) {
	name, err := validName(name)
	return Head{dataset: name, n: engine.DefaultHeadRows}, err
}

// WithRows returns a copy of h that shows n rows.
func (h Head) WithRows(n int) (Head, error) {
	if n < 0 {
		return h, fmt.Errorf("row count must not be negative, got %d", n)
	}
	h.n = n
	return h, nil
}

// Rows is the number of rows h will show.
func (h Head) Rows() int { return h.n }

func (Head) Name() string { return "head" }

func (h Head) Execute(ctx context.Context, b engine.Backend) (string, error) {
	d, err := b.Head(ctx, h.dataset, h.n)
	return show(ctx, d, err)
}

// Query runs arbitrary SQL.
type Query struct {
	text string
}

func NewQuery(text string) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, ErrEmptyQuery
	}
	return Query{text: text}, nil
}

func (Query) Name() string { return "sql" }

func (q Query) Execute(ctx context.Context, b engine.Backend) (string, error) {
	d, err := b.Query(ctx, q.text)
	return show(ctx, d, err)
}
