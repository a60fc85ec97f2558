package main

import (
	"sort"
	"strings"
)

// commandEntry maps a shell prefix to its handler and optional tab-completer.
type commandEntry struct {
	prefix    string
	handler   func(args string) error
	completer func(args string) (completionContext, string) // nil = no arg completion
	hidden    bool                                          // excluded from commandNames()
}

// initCommands builds the command registry and sorts by prefix length descending.
func (s *Session) initCommands() {
	s.commands = []commandEntry{
		{prefix: "connect ", handler: func(a string) error { return s.cmdConnect(a) }, completer: completeConnectArgs},
		{prefix: "connect", handler: func(_ string) error { return errConnectUsage }},
		{prefix: "list", handler: func(_ string) error { return s.cmdList() }},
		{prefix: "ls", handler: func(_ string) error { return s.cmdList() }, hidden: true},

		{prefix: "schema ", handler: func(a string) error { return s.cmdSchema(a) }, completer: completeDatasetArgs},
		{prefix: "schema", handler: func(_ string) error { return s.cmdSchema("") }},
		{prefix: "describe ", handler: func(a string) error { return s.cmdDescribe(a) }, completer: completeDatasetArgs},
		{prefix: "describe", handler: func(_ string) error { return s.cmdDescribe("") }},
		{prefix: "head ", handler: func(a string) error { return s.cmdHead(a) }, completer: completeHeadArgs},
		{prefix: "head", handler: func(_ string) error { return errHeadUsage }},

		{prefix: "sql ", handler: func(a string) error { return s.cmdSQL(a) }},
		{prefix: "sql", handler: func(_ string) error { return s.cmdSQL("") }},

		{prefix: "help", handler: func(_ string) error { s.cmdHelp(); return nil }},
		{prefix: "?", handler: func(_ string) error { s.cmdHelp(); return nil }, hidden: true},
	}

	// Sort by prefix length descending so longest prefixes match first.
	sort.SliceStable(s.commands, func(i, j int) bool {
		return len(s.commands[i].prefix) > len(s.commands[j].prefix)
	})
}

// commandNames derives the command name list from the registry for tab completion.
func (s *Session) commandNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, cmd := range s.commands {
		if cmd.hidden {
			continue
		}
		name := strings.TrimRight(cmd.prefix, " ")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	// exit/quit are handled by the shell loop, not Execute().
	for _, extra := range []string{"exit", "quit"} {
		if !seen[extra] {
			names = append(names, extra)
		}
	}
	sort.Strings(names)
	return names
}

// completeDatasetArgs completes the dataset name of schema and describe.
func completeDatasetArgs(args string) (completionContext, string) {
	if strings.Contains(strings.TrimLeft(args, " "), " ") {
		return contextNone, ""
	}
	return contextDataset, strings.TrimSpace(args)
}

// completeHeadArgs completes the dataset name, then head's flags.
func completeHeadArgs(args string) (completionContext, string) {
	if strings.Contains(strings.TrimLeft(args, " "), " ") {
		return completeFlag(args, contextHeadFlag)
	}
	return contextDataset, strings.TrimSpace(args)
}

// completeConnectArgs completes connect's flags and their values.
func completeConnectArgs(args string) (completionContext, string) {
	fields := strings.Fields(args)
	if strings.HasSuffix(args, " ") && len(fields) > 0 {
		switch fields[len(fields)-1] {
		case "--compression":
			return contextCompression, ""
		case "--format", "-f":
			return contextFormat, ""
		}
		return contextNone, ""
	}
	if len(fields) >= 2 {
		switch fields[len(fields)-2] {
		case "--compression":
			return contextCompression, fields[len(fields)-1]
		case "--format", "-f":
			return contextFormat, fields[len(fields)-1]
		}
	}
	return completeFlag(args, contextConnectFlag)
}

// completeFlag completes a partial flag name at the end of args.
func completeFlag(args string, flagCtx completionContext) (completionContext, string) {
	last := lastToken(args)
	if strings.HasPrefix(last, "-") {
		return flagCtx, last
	}
	return contextNone, ""
}
