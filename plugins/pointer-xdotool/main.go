// Package main provides a pointer plugin for X11.
// It moves and clicks the pointer by running xdotool, one request per line.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
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

// actionHandler builds the xdotool arguments for a request. double_click is
// a single press: the first click of the pair was already sent and X11 pairs
// presses by timing.
type actionHandler func(req Request) []string

var actionHandlers = map[string]actionHandler{
	"move": func(req Request) []string {
		return []string{"mousemove", "--sync", strconv.Itoa(req.X), strconv.Itoa(req.Y)}
	},
	"click":        func(Request) []string { return []string{"click", "1"} },
	"double_click": func(Request) []string { return []string{"click", "1"} },
	"mouse_down":   func(Request) []string { return []string{"mousedown", "1"} },
	"mouse_up":     func(Request) []string { return []string{"mouseup", "1"} },
}

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
	handler, ok := actionHandlers[req.Action]
	if !ok {
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	output, err := exec.Command("xdotool", handler(req)...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		resp := Response{ID: req.ID, Error: fmt.Sprintf("xdotool %s failed: %v: %s", req.Action, err, msg)}
		// XTEST refusals come back as BadAccess.
		if strings.Contains(msg, "BadAccess") {
			resp.ErrorKind = "denied"
		}
		return resp
	}
	return Response{ID: req.ID, Success: true}
}
