// Package main provides a pointer plugin for macOS.
// It drives the pointer with cliclick, one request per line.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request represents one line from the plugin executor.
type Request struct {
	ID     uint64 `json:"id"`
	Action string `json:"action"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// Response represents one line back to the plugin executor.
type Response struct {
	ID        uint64 `json:"id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// commands maps actions to a program and its arguments. cliclick's "."
// means the current position.
var commands = map[string]func(req Request) []string{
	"move":         func(req Request) []string { return cliclick(fmt.Sprintf("m:%d,%d", req.X, req.Y)) },
	"click":        func(Request) []string { return cliclick("c:.") },
	"double_click": func(Request) []string { return []string{"osascript", "-l", "JavaScript", "-e", secondClick} },
	"mouse_down":   func(Request) []string { return cliclick("dd:.") },
	"mouse_up":     func(Request) []string { return cliclick("du:.") },
}

func cliclick(command string) []string {
	return []string{"cliclick", command}
}

// secondClick posts one left press at the cursor with a click count of two.
// The first click of the pair was already sent, and cliclick's dc would add
// two more presses.
const secondClick = `ObjC.import('CoreGraphics');
var p = $.CGEventGetLocation($.CGEventCreate(null));
[1, 2].forEach(function (type) {
	var e = $.CGEventCreateMouseEvent(null, type, p, 0);
	$.CGEventSetIntegerValueField(e, 1, 2);
	$.CGEventPost(0, e);
});`

func main() {
	out := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			out.Encode(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
			continue
		}
		out.Encode(handle(req))
	}
}

func handle(req Request) Response {
	command, ok := commands[req.Action]
	if !ok {
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	args := command(req)
	output, err := exec.Command(args[0], args[1:]...).CombinedOutput()
	msg := strings.TrimSpace(string(output))
	// cliclick only warns when the terminal lacks Accessibility access; the
	// event is silently dropped by the OS.
	if strings.Contains(strings.ToLower(msg), "accessibility") {
		return Response{ID: req.ID, Error: msg, ErrorKind: "denied"}
	}
	if err != nil {
		return Response{ID: req.ID, Error: fmt.Sprintf("%s %s failed: %v: %s", args[0], req.Action, err, msg)}
	}
	return Response{ID: req.ID, Success: true}
}
