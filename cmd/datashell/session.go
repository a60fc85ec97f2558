package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bawdo/datashell/internal/command"
	"github.com/bawdo/datashell/internal/dispatch"
	"github.com/bawdo/datashell/internal/engine"
)

// errReported marks a command whose failure was already printed as its reply.
var errReported = errors.New("command failed")

// submitter runs commands on the engine actor.
type submitter interface {
	SubmitContext(ctx context.Context, cmd command.Command) (string, bool)
}

// Session holds the shell state: the handle to the engine actor, the
// command registry and the datasets connected so far.
type Session struct {
	handle   submitter
	commands []commandEntry // sorted by prefix length desc
	datasets map[string]bool
	timeout  time.Duration // zero waits forever
	out      io.Writer     // default os.Stdout
}

// NewSession creates a session that submits through h.
func NewSession(h submitter) *Session {
	s := &Session{
		handle:   h,
		datasets: make(map[string]bool),
		out:      os.Stdout,
	}
	s.initCommands()
	return s
}

// Execute parses and runs a single shell command.
func (s *Session) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	lower := strings.ToLower(line)

	for _, cmd := range s.commands {
		if strings.HasSuffix(cmd.prefix, " ") {
			if strings.HasPrefix(lower, cmd.prefix) {
				return cmd.handler(line[len(cmd.prefix):])
			}
		} else if lower == cmd.prefix {
			return cmd.handler("")
		}
	}

	word := strings.Fields(line)[0]
	return fmt.Errorf("unknown command: %s (type 'help' for commands)", word)
}

// datasetNames returns the datasets connected in this session, sorted.
func (s *Session) datasetNames() []string {
	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// submit runs cmd on the actor and prints its reply. An engine error reply
// or a missing reply is returned as errReported.
func (s *Session) submit(cmd command.Command) error {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	out, ok := s.handle.SubmitContext(ctx, cmd)
	if !ok {
		_, _ = fmt.Fprintln(s.out, "  No response")
		return fmt.Errorf("%w: no response", errReported)
	}
	_, _ = fmt.Fprint(s.out, out)
	if dispatch.IsErrorReply(out) {
		return errReported
	}
	return nil
}

// --- Command handlers ---

func (s *Session) cmdConnect(args string) error {
	tokens, err := tokenize(args)
	if err != nil {
		return err
	}
	return s.connect(tokens)
}

func (s *Session) connect(tokens []string) error {
	c, err := parseConnect(tokens)
	if err != nil {
		return err
	}
	if err := s.submit(c); err != nil {
		return err
	}
	if _, relational := c.Opts().Conn.(engine.RelationalConn); !relational {
		for name := range s.datasets {
			if strings.EqualFold(name, c.Opts().Name) {
				delete(s.datasets, name)
			}
		}
		s.datasets[c.Opts().Name] = true
	}
	return nil
}

func (s *Session) cmdList() error {
	return s.submit(command.List{})
}

func (s *Session) cmdSchema(args string) error {
	tokens, err := tokenize(args)
	if err != nil {
		return err
	}
	name, err := singleName("schema", tokens)
	if err != nil {
		return err
	}
	c, err := command.NewSchema(name)
	if err != nil {
		return err
	}
	return s.submit(c)
}

func (s *Session) cmdDescribe(args string) error {
	tokens, err := tokenize(args)
	if err != nil {
		return err
	}
	name, err := singleName("describe", tokens)
	if err != nil {
		return err
	}
	c, err := command.NewDescribe(name)
	if err != nil {
		return err
	}
	return s.submit(c)
}

func (s *Session) cmdHead(args string) error {
	tokens, err := tokenize(args)
	if err != nil {
		return err
	}
	c, err := parseHead(tokens)
	if err != nil {
		return err
	}
	return s.submit(c)
}

// cmdSQL passes the rest of the line to the engine untouched.
func (s *Session) cmdSQL(args string) error {
	c, err := command.NewQuery(args)
	if err != nil {
		return fmt.Errorf("usage: sql <query>")
	}
	return s.submit(c)
}

func (s *Session) cmdHelp() {
	_, _ = fmt.Fprintln(s.out, `
  Data sources:
    connect <source>                  Register a file, directory or database URL
      -n, --name <name>               Dataset name (default: file name without extensions)
      -f, --format <csv|parquet|ndjson>  Format, required for directories
      --ext <ext>                     Extension of files inside a directory
      --compression <c>               none, gzip, bzip2, xz or zstd
    list                              Show registered datasets

  Inspection:
    schema <name>                     Column names and types
    describe <name>                   Summary statistics per column
    head <name> [-n rows]             First rows (default 5)

  Queries:
    sql <query>                       Run any SQL; datasets are tables

  Other:
    help                              Show this help
    exit, quit                        Leave the shell

  Examples:
    connect data/trips.csv.gz
    connect logs/ --format ndjson --ext .jsonl -n events
    head trips -n 10
    sql SELECT city, count(*) FROM trips GROUP BY city`)
}
