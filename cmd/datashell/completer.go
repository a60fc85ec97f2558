package main

import (
	"strings"
)

// completionContext describes what kind of completion is appropriate.
type completionContext int

const (
	contextCommand     completionContext = iota // start of line or partial command
	contextNone                                 // free-form argument, nothing to offer
	contextDataset                              // after schema/describe/head
	contextConnectFlag                          // a partial flag after connect
	contextHeadFlag                             // a partial flag after head <name>
	contextCompression                          // after --compression
	contextFormat                               // after --format
)

var (
	connectFlags     = []string{"--compression", "--ext", "--format", "--name", "-f", "-n"}
	headFlags        = []string{"--rows", "-n"}
	compressionNames = []string{"bzip2", "gzip", "none", "xz", "zstd"}
	formatNames      = []string{"csv", "ndjson", "parquet"}
)

// replCompleter implements readline's AutoCompleter interface.
type replCompleter struct {
	sess *Session
}

// Do returns completion candidates for the current line/cursor position.
// length is the number of chars from end of line[:pos] that form the prefix being completed.
// newLine contains the suffixes to append for each candidate.
func (c *replCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	lineStr := string(line[:pos])
	ctx, prefix := c.parseContext(lineStr)

	var candidates []string
	switch ctx {
	case contextCommand:
		candidates = filterPrefix(c.sess.commandNames(), prefix)
	case contextDataset:
		candidates = filterPrefix(c.sess.datasetNames(), prefix)
	case contextConnectFlag:
		candidates = filterPrefix(connectFlags, prefix)
	case contextHeadFlag:
		candidates = filterPrefix(headFlags, prefix)
	case contextCompression:
		candidates = filterPrefix(compressionNames, prefix)
	case contextFormat:
		candidates = filterPrefix(formatNames, prefix)
	}

	for _, cand := range candidates {
		suffix := cand[len(prefix):]
		newLine = append(newLine, []rune(suffix+" "))
	}
	length = len([]rune(prefix))
	return
}

// parseContext examines the line up to cursor and determines what kind of
// completion is needed and the current prefix being typed.
func (c *replCompleter) parseContext(line string) (completionContext, string) {
	lower := strings.ToLower(line)

	for _, cmd := range c.sess.commands {
		if !strings.HasSuffix(cmd.prefix, " ") {
			continue // exact-match commands have no arg completion
		}
		if strings.HasPrefix(lower, cmd.prefix) {
			if cmd.completer == nil {
				return contextNone, ""
			}
			return cmd.completer(line[len(cmd.prefix):])
		}
	}

	return contextCommand, strings.TrimSpace(line)
}

// filterPrefix returns items that start with prefix (case-insensitive).
func filterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		result := make([]string, len(items))
		copy(result, items)
		return result
	}
	lowerPrefix := strings.ToLower(prefix)
	var result []string
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(item), lowerPrefix) {
			result = append(result, item)
		}
	}
	return result
}

// lastToken returns the last whitespace-separated token.
func lastToken(s string) string {
	if i := strings.LastIndexAny(s, " \t"); i >= 0 {
		return s[i+1:]
	}
	return s
}
