// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command lwla-sh provides an interactive shell to a lwla-svc service.
//
// Example session:
//
//	$> lwla-sh -addr localhost:9999
//	lwla>> configure samplerate=100000000 limit_samples=1000000
//	ok
//	lwla>> start run=42
//	ok
//	lwla>> stop
//	ok
//	lwla>> quit
package main // import "github.com/go-sigrok/lwla/cmd/lwla-sh"

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
)

func main() {
	var (
		addr = flag.String("addr", "localhost:9999", "lwla-svc [addr]:port to dial")
	)

	log.SetPrefix("lwla-sh: ")
	log.SetFlags(0)

	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("could not dial lwla-svc %q: %+v", *addr, err)
	}
	defer conn.Close()

	cli := &client{conn: conn}

	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)

	hist := filepath.Join(os.TempDir(), ".lwla_sh_history")
	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("lwla>> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				return
			}
			log.Fatalf("could not read line: %+v", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		msg, err := cli.exec(line)
		if err != nil {
			log.Printf("%+v", err)
			continue
		}
		fmt.Println(msg)

		if line == "quit" {
			return
		}
	}
}

type client struct {
	conn net.Conn
}

// exec parses and runs one shell command line.
func (cli *client) exec(line string) (string, error) {
	fields := strings.Fields(line)
	name := fields[0]

	switch name {
	case "configure", "start":
		args, err := parseArgs(fields[1:])
		if err != nil {
			return "", fmt.Errorf("could not parse %q: %w", line, err)
		}
		return cli.send(name, args)
	case "stop", "quit":
		if len(fields) != 1 {
			return "", fmt.Errorf("command %q takes no argument", name)
		}
		return cli.send(name, nil)
	case "help":
		return helpMsg, nil
	default:
		return "", fmt.Errorf("unknown command %q", name)
	}
}

const helpMsg = `commands:
  configure key=value ...  configure the next capture
  start run=N              start a capture
  stop                     stop the running capture
  quit                     shut the service down
  help                     display this help`

func (cli *client) send(name string, args map[string]interface{}) (string, error) {
	req := struct {
		Name string                 `json:"name"`
		Args map[string]interface{} `json:"args,omitempty"`
	}{Name: name, Args: args}

	err := json.NewEncoder(cli.conn).Encode(req)
	if err != nil {
		return "", fmt.Errorf("could not send %q command: %w", name, err)
	}

	var reply struct {
		Msg string `json:"msg"`
	}
	err = json.NewDecoder(cli.conn).Decode(&reply)
	if err != nil {
		return "", fmt.Errorf("could not read %q reply: %w", name, err)
	}
	if reply.Msg != "ok" {
		return "", fmt.Errorf("command %q failed: %s", name, reply.Msg)
	}

	return reply.Msg, nil
}

// parseArgs converts key=value pairs to a JSON-encodable argument map.
func parseArgs(fields []string) (map[string]interface{}, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	args := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		k, v, ok := strings.Cut(field, "=")
		if !ok || k == "" || v == "" {
			return nil, errors.New("arguments must be key=value pairs")
		}
		switch {
		case v == "true" || v == "false":
			args[k] = v == "true"
		default:
			u, err := strconv.ParseUint(v, 0, 64)
			if err == nil {
				args[k] = u
				break
			}
			args[k] = v
		}
	}
	return args, nil
}
