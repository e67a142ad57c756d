package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
// Console satisfies it; tests provide a lightweight stub.
type execIface interface {
	Scan(ctx context.Context) error
	Cancel(ctx context.Context) error
	Enter(ctx context.Context, code string) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Next(ctx context.Context) error
	Status(ctx context.Context) error
	Who(ctx context.Context) error
}

const helpText = "Available commands: scan, cancel, enter <code>, login, logout, next (again), status, who, exit"

// runREPL reads one command per line and dispatches it to a. It returns
// true when the operator typed exit or quit and false on end of input.
//
// Errors returned by command handlers are ignored here; handlers print
// their own operator messages.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, prompt bool) bool {
	for {
		if prompt {
			printlnFn(fmt.Sprintf("kiosk %s> ", statusFn()))
		}
		if !scanner.Scan() {
			return false
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "help", "?":
			printlnFn(helpText)

		case "scan", "s":
			_ = a.Scan(ctx)

		case "cancel":
			_ = a.Cancel(ctx)

		case "enter", "e":
			code := rawArgument(line)
			if strings.TrimSpace(code) == "" {
				printlnFn("Usage: enter <code>")
				continue
			}
			_ = a.Enter(ctx, code)

		case "login", "in":
			_ = a.Login(ctx)

		case "logout", "out":
			_ = a.Logout(ctx)

		case "next", "again":
			_ = a.Next(ctx)

		case "status":
			_ = a.Status(ctx)

		case "who":
			_ = a.Who(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return true

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

// rawArgument returns line after the command word and one separator,
// leaving the rest untouched.
func rawArgument(line string) string {
	line = strings.TrimLeftFunc(line, unicode.IsSpace)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	_, size := utf8.DecodeRuneInString(line[i:])
	return line[i+size:]
}
