package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Client -> server command types.
const (
	CmdCreate       = "create"
	CmdJoin         = "join"
	CmdSubmitNumber = "submit_number"
	CmdReverse      = "reverse"
	CmdReset        = "reset"
)

// Server -> client event types.
const (
	EvtRoomCreated      = "room_created"
	EvtRoomJoined       = "room_joined"
	EvtPlayerJoined     = "player_joined"
	EvtGameStart        = "game_start"
	EvtPlayerReady      = "player_ready"
	EvtGameResult       = "game_result"
	EvtReverseActivated = "reverse_activated"
	EvtGameReset        = "game_reset"
	EvtPlayerLeft       = "player_left"
	EvtError            = "error"
)

// Legal bounds for a room's maxNumber.
const (
	MinNumber = 2
	MaxNumber = 9
)

var (
	ErrMalformedFrame  = errors.New("malformed frame")
	ErrUnknownCommand  = errors.New("unknown command type")
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrInvalidNumber   = errors.New("number must be an integer")
)

// Command is a decoded client frame. Only the fields relevant to Type are set.
type Command struct {
	Type      string
	MaxNumber int
	Code      string
	Number    int
}

type rawCommand struct {
	Type      *string         `json:"type"`
	MaxNumber json.RawMessage `json:"maxNumber"`
	Code      json.RawMessage `json:"code"`
	Number    json.RawMessage `json:"number"`
}

// DecodeCommand parses one JSON object into a Command.
func DecodeCommand(data []byte) (Command, error) {
	var raw rawCommand
	if err := json.Unmarshal(data, &raw); err != nil || raw.Type == nil {
		return Command{}, ErrMalformedFrame
	}

	cmd := Command{Type: *raw.Type}
	switch cmd.Type {
	case CmdCreate:
		n, err := decodeInt(raw.MaxNumber)
		if err != nil {
			return Command{}, ErrMalformedFrame
		}
		cmd.MaxNumber = ClampMaxNumber(n)
	case CmdJoin:
		var code string
		if len(raw.Code) == 0 || json.Unmarshal(raw.Code, &code) != nil {
			return Command{}, ErrInvalidRoomCode
		}
		cmd.Code = code
	case CmdSubmitNumber:
		n, err := decodeInt(raw.Number)
		if err != nil {
			return Command{}, ErrInvalidNumber
		}
		cmd.Number = n
	case CmdReverse, CmdReset:
	default:
		return Command{}, ErrUnknownCommand
	}
	return cmd, nil
}

// SplitFrames splits a text message into its newline-delimited JSON objects,
// skipping blank lines.
func SplitFrames(message []byte) [][]byte {
	var frames [][]byte
	for _, line := range bytes.Split(message, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			frames = append(frames, line)
		}
	}
	return frames
}

func decodeInt(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, ErrMalformedFrame
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, err
	}
	i, err := n.Int64()
	if err != nil {
		return 0, err
	}
	return int(i), nil
}

// ClampMaxNumber forces n into [MinNumber, MaxNumber].
func ClampMaxNumber(n int) int {
	return max(MinNumber, min(MaxNumber, n))
}

// NormalizeCode trims surrounding whitespace and upper-cases a room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Event is a server -> client message.
type Event interface {
	EventType() string
}

type RoomCreated struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	PlayerID  string `json:"playerId"`
	MaxNumber int    `json:"maxNumber"`
}

type RoomJoined struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	PlayerID  string `json:"playerId"`
	MaxNumber int    `json:"maxNumber"`
}

type PlayerJoined struct {
	Type        string `json:"type"`
	PlayerCount int    `json:"playerCount"`
}

type GameStart struct {
	Type      string `json:"type"`
	MaxNumber int    `json:"maxNumber"`
}

type PlayerReady struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// GameResult carries CanReverse only for mismatches.
type GameResult struct {
	Type       string `json:"type"`
	Match      bool   `json:"match"`
	Numbers    [2]int `json:"numbers"`
	CanReverse *bool  `json:"canReverse,omitempty"`
}

type ReverseActivated struct {
	Type         string `json:"type"`
	NewMaxNumber int    `json:"newMaxNumber"`
}

type GameReset struct {
	Type      string `json:"type"`
	MaxNumber int    `json:"maxNumber"`
}

type PlayerLeft struct {
	Type        string `json:"type"`
	PlayerCount int    `json:"playerCount"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (RoomCreated) EventType() string      { return EvtRoomCreated }
func (RoomJoined) EventType() string       { return EvtRoomJoined }
func (PlayerJoined) EventType() string     { return EvtPlayerJoined }
func (GameStart) EventType() string        { return EvtGameStart }
func (PlayerReady) EventType() string      { return EvtPlayerReady }
func (GameResult) EventType() string       { return EvtGameResult }
func (ReverseActivated) EventType() string { return EvtReverseActivated }
func (GameReset) EventType() string        { return EvtGameReset }
func (PlayerLeft) EventType() string       { return EvtPlayerLeft }
func (ErrorEvent) EventType() string       { return EvtError }

func NewRoomCreated(code, playerID string, maxNumber int) RoomCreated {
	return RoomCreated{Type: EvtRoomCreated, Code: code, PlayerID: playerID, MaxNumber: maxNumber}
}

func NewRoomJoined(code, playerID string, maxNumber int) RoomJoined {
	return RoomJoined{Type: EvtRoomJoined, Code: code, PlayerID: playerID, MaxNumber: maxNumber}
}

func NewPlayerJoined(count int) PlayerJoined {
	return PlayerJoined{Type: EvtPlayerJoined, PlayerCount: count}
}

func NewGameStart(maxNumber int) GameStart {
	return GameStart{Type: EvtGameStart, MaxNumber: maxNumber}
}

func NewPlayerReady(playerID string) PlayerReady {
	return PlayerReady{Type: EvtPlayerReady, PlayerID: playerID}
}

func NewMatchResult(numbers [2]int) GameResult {
	return GameResult{Type: EvtGameResult, Match: true, Numbers: numbers}
}

func NewMismatchResult(numbers [2]int, canReverse bool) GameResult {
	return GameResult{Type: EvtGameResult, Numbers: numbers, CanReverse: &canReverse}
}

func NewReverseActivated(newMax int) ReverseActivated {
	return ReverseActivated{Type: EvtReverseActivated, NewMaxNumber: newMax}
}

func NewGameReset(maxNumber int) GameReset {
	return GameReset{Type: EvtGameReset, MaxNumber: maxNumber}
}

func NewPlayerLeft(count int) PlayerLeft {
	return PlayerLeft{Type: EvtPlayerLeft, PlayerCount: count}
}

func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: EvtError, Message: message}
}
