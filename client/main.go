package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

var errQuit = errors.New("quit")

const usage = "commands: create N | join CODE | pick N | reverse | reset | quit"

// parseLine turns one line of user input into a command frame.
func parseLine(line string) ([]byte, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	var cmd map[string]any
	switch strings.ToLower(fields[0]) {
	case "create":
		n := 9
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("bad max number %q", fields[1])
			}
			n = v
		}
		cmd = map[string]any{"type": "create", "maxNumber": n}
	case "join":
		if len(fields) < 2 {
			return nil, errors.New("join needs a room code")
		}
		cmd = map[string]any{"type": "join", "code": fields[1]}
	case "pick":
		if len(fields) < 2 {
			return nil, errors.New("pick needs a number")
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bad number %q", fields[1])
		}
		cmd = map[string]any{"type": "submit_number", "number": v}
	case "reverse":
		cmd = map[string]any{"type": "reverse"}
	case "reset":
		cmd = map[string]any{"type": "reset"}
	case "quit", "exit":
		return nil, errQuit
	default:
		return nil, fmt.Errorf("unknown command %q (%s)", fields[0], usage)
	}
	return json.Marshal(cmd)
}

func main() {
	addr := pflag.String("url", "ws://localhost:8080/ws", "server websocket URL")
	pflag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	log.Printf("Connecting to %s", *addr)

	c, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- %s", message)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	log.Println(usage)

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			closeConn(c, done)
			return
		case line, ok := <-lines:
			if !ok {
				closeConn(c, done)
				return
			}
			frame, err := parseLine(line)
			if errors.Is(err, errQuit) {
				closeConn(c, done)
				return
			}
			if err != nil {
				log.Println(err)
				continue
			}
			if frame == nil {
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> %s", frame)
		}
	}
}

func closeConn(c *websocket.Conn, done <-chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("Write close error:", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
