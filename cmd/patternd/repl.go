package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/dotsetgreg/patternd/pkg/memory"
)

const replHelp = `Commands:
  :stats               engine counters
  :consolidate         run a consolidation cycle now
  :insights [entity]   insight for entity (default: session entity)
  :export [entity]     transfer record for entity
  :patterns            long-term patterns
  :knowledge           semantic-tier knowledge
  :report              category report
  :help                this help
  exit | quit          leave`

func interactiveMode(w io.Writer, engine *memory.Engine, entity string) {
	prompt := fmt.Sprintf("%s %s> ", appName, entity)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".patternd_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(w, "Error initializing readline: %v\n", err)
		fmt.Fprintln(w, "Falling back to simple input mode...")
		simpleInteractiveMode(w, os.Stdin, engine, entity)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Fprintln(w, "\nGoodbye!")
				return
			}
			fmt.Fprintf(w, "Error reading input: %v\n", err)
			continue
		}
		if !handleReplLine(w, engine, entity, line) {
			fmt.Fprintln(w, "Goodbye!")
			return
		}
	}
}

func simpleInteractiveMode(w io.Writer, in io.Reader, engine *memory.Engine, entity string) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(w, "%s %s> ", appName, entity)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				fmt.Fprintln(w, "\nGoodbye!")
				return
			}
			fmt.Fprintf(w, "Error reading input: %v\n", err)
			continue
		}
		if !handleReplLine(w, engine, entity, line) {
			fmt.Fprintln(w, "Goodbye!")
			return
		}
	}
}

// handleReplLine processes one input line. It returns false when the
// session should end.
func handleReplLine(w io.Writer, engine *memory.Engine, entity, line string) bool {
	input := strings.TrimSpace(line)
	switch {
	case input == "":
		return true
	case input == "exit" || input == "quit":
		return false
	case strings.HasPrefix(input, "{"):
		engine.ObserveJSON([]byte(input))
		return true
	case strings.HasPrefix(input, ":"):
		replCommand(w, engine, entity, input)
		return true
	}

	engine.Observe(memory.Observation{
		EntityID: entity,
		Message:  input,
		Payload:  memory.UserMessage{},
	})
	if memory.IsTravelRelated(input) {
		fmt.Fprintf(w, "(travel: %s)\n", memory.ClassifyQuery(input))
	}
	return true
}

func replCommand(w io.Writer, engine *memory.Engine, entity, input string) {
	fields := strings.Fields(strings.TrimPrefix(input, ":"))
	if len(fields) == 0 {
		fmt.Fprintln(w, replHelp)
		return
	}
	target := entity
	if len(fields) > 1 {
		target = fields[1]
	}

	var view any
	switch fields[0] {
	case "stats":
		view = engine.Stats()
	case "consolidate":
		view = engine.ConsolidateNow()
	case "insights":
		view = engine.Insights(target)
	case "export":
		view = engine.ExportForTransfer(target)
	case "patterns":
		view = engine.Patterns()
	case "knowledge":
		view = engine.Knowledge("")
	case "report":
		view = engine.Report()
	case "help":
		fmt.Fprintln(w, replHelp)
		return
	default:
		fmt.Fprintf(w, "Unknown command %q. Type :help for commands.\n", fields[0])
		return
	}
	if err := writeJSON(w, view); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}
