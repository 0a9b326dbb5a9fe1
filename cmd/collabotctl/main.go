// Command collabotctl is a thin JSON-RPC client over collabotd's socket
// transport: it connects, sends one request frame, prints the response,
// and exits. It carries no retry or reconnect logic of its own — it is
// a debugging and scripting aid, not a long-lived client.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8787/rpc", "collabotd socket URL")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	method := args[0]
	params, err := parseParams(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if len(params) > 0 {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal request: %v\n", err)
		os.Exit(1)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		fmt.Fprintf(os.Stderr, "send request: %v\n", err)
		os.Exit(1)
	}

	for {
		_, resp, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "read response: %v\n", err)
			os.Exit(1)
		}
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(resp, &envelope); err != nil {
			fmt.Fprintf(os.Stderr, "malformed response: %v\n", err)
			os.Exit(1)
		}
		// Lifecycle broadcasts (session:init, warnings, etc.) share the
		// socket with RPC replies; skip anything that isn't keyed by
		// this request's id before printing the first real reply.
		if _, ok := envelope["id"]; !ok {
			continue
		}
		printPretty(resp)
		return
	}
}

// parseParams turns "key=value" CLI arguments into a params object. A
// bare "key" (no "=") is treated as a boolean true flag; a value
// containing commas becomes a string array, for params like
// create_project's roles.
func parseParams(args []string) (map[string]interface{}, error) {
	params := make(map[string]interface{})
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			params[key] = true
			continue
		}
		if strings.Contains(value, ",") {
			params[key] = strings.Split(value, ",")
			continue
		}
		params[key] = value
	}
	return params, nil
}

func printPretty(raw []byte) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(string(pretty))
}

func usage() {
	fmt.Fprintf(os.Stderr, `collabotctl - talk to a running collabotd over its JSON-RPC socket

Usage:
  collabotctl [-addr ws://host:port/rpc] <method> [key=value ...]

Methods:
  submit_prompt content=... role=... taskSlug=... project=...
  draft role=... project=... task=...
  undraft
  get_draft_status
  kill_agent agentId=...
  list_agents
  list_tasks project=...
  get_task_context slug=... project=...
  list_projects
  create_project name=... description=... roles=...

`)
	flag.PrintDefaults()
}
