// apps/go-server/internal/protocol/messages.go
//
// JSON wire types for the websocket protocol.
// Every frame is an envelope {type, ...fields}. Client frames are decoded
// into one flattened Inbound value; server frames are typed structs that
// embed Header.
//
// Notes:
//   - connect and chat also accept their fields nested under "data", the
//     shape older clients send.
//   - Encode never fails loudly: a marshal error is logged and yields nil.

package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeword/apps/go-server/internal/game"
	"github.com/robalobadob/snakeword/apps/go-server/internal/words"
)

// Client -> server types.
const (
	TypeConnect      = "connect"
	TypeDisconnect   = "disconnect"
	TypeChat         = "chat"
	TypeCreateRoom   = "create_room"
	TypeJoinRoom     = "join_room"
	TypeLeaveRoom    = "leave_room"
	TypeRoomList     = "room_list"
	TypePlayerReady  = "player_ready"
	TypePlayerColor  = "player_color"
	TypeStartGame    = "start_game"
	TypeGameInput    = "game_input"
	TypeSubmitWord   = "submit_word"
	TypeClearLetters = "clear_letters"
)

// Server -> client types.
const (
	TypeConnected        = "connected"
	TypePlayerJoined     = "player_joined"
	TypePlayerLeft       = "player_left"
	TypeChatBroadcast    = "chat_broadcast"
	TypeRoomJoined       = "room_joined"
	TypeRoomUpdated      = "room_updated"
	TypeRoomLeft         = "room_left"
	TypeRoomClosed       = "room_closed"
	TypeRoomListResponse = "room_list_response"
	TypeGameStarted      = "game_started"
	TypeGameState        = "game_state"
	TypeCrosswordState   = "crossword_state"
	TypeGameEnded        = "game_ended"
	TypeWordSubmitted    = "word_submitted"
	TypeError            = "error"
)

var ErrNoType = errors.New("protocol: message has no type")

// fields is the union of every client message's payload.
type fields struct {
	PlayerName string   `json:"playerName,omitempty"`
	Message    string   `json:"message,omitempty"`
	RoomName   string   `json:"roomName,omitempty"`
	GameMode   string   `json:"gameMode,omitempty"`
	MaxPlayers int      `json:"maxPlayers,omitempty"`
	IsPrivate  bool     `json:"isPrivate,omitempty"`
	RoomID     string   `json:"roomId,omitempty"`
	RoomCode   string   `json:"roomCode,omitempty"`
	IsReady    bool     `json:"isReady,omitempty"`
	Color      string   `json:"color,omitempty"`
	Direction  string   `json:"direction,omitempty"`
	Letters    []string `json:"letters,omitempty"`
}

// Inbound is a decoded client frame.
type Inbound struct {
	Type string `json:"type"`
	fields
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses one client frame. Fields found under "data" fill in
// anything the flat envelope left empty.
func Decode(b []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(b, &in); err != nil {
		return Inbound{}, err
	}
	if in.Type == "" {
		return Inbound{}, ErrNoType
	}
	if len(in.Data) > 0 && in.Data[0] == '{' {
		var nested fields
		if err := json.Unmarshal(in.Data, &nested); err == nil {
			in.fields = merge(in.fields, nested)
		}
	}
	return in, nil
}

func merge(a, b fields) fields {
	if a.PlayerName == "" {
		a.PlayerName = b.PlayerName
	}
	if a.Message == "" {
		a.Message = b.Message
	}
	if a.RoomName == "" {
		a.RoomName = b.RoomName
	}
	if a.GameMode == "" {
		a.GameMode = b.GameMode
	}
	if a.MaxPlayers == 0 {
		a.MaxPlayers = b.MaxPlayers
	}
	a.IsPrivate = a.IsPrivate || b.IsPrivate
	if a.RoomID == "" {
		a.RoomID = b.RoomID
	}
	if a.RoomCode == "" {
		a.RoomCode = b.RoomCode
	}
	a.IsReady = a.IsReady || b.IsReady
	if a.Color == "" {
		a.Color = b.Color
	}
	if a.Direction == "" {
		a.Direction = b.Direction
	}
	if len(a.Letters) == 0 {
		a.Letters = b.Letters
	}
	return a
}

// RoomRef is the room a frame addresses: roomId, else roomCode.
func (in Inbound) RoomRef() string {
	if in.RoomID != "" {
		return in.RoomID
	}
	return in.RoomCode
}

// ------------------------------ server frames -------------------------------

// Header is embedded in every server frame.
type Header struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func header(t string) Header { return Header{Type: t, Timestamp: time.Now().UnixMilli()} }

// PlayerView is a room member on the wire.
type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsReady     bool   `json:"isReady"`
	IsAlive     bool   `json:"isAlive"`
	IsConnected bool   `json:"isConnected"`
	JoinedAt    int64  `json:"joinedAt"`
	Color       string `json:"color"`
}

// RoomView is the full room on the wire.
type RoomView struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	Code           string                  `json:"code"`
	GameMode       game.Mode               `json:"gameMode"`
	HostPlayerID   string                  `json:"hostPlayerId"`
	Players        []PlayerView            `json:"players"`
	MaxPlayers     int                     `json:"maxPlayers"`
	IsGameActive   bool                    `json:"isGameActive"`
	IsPrivate      bool                    `json:"isPrivate"`
	CreatedAt      int64                   `json:"createdAt"`
	Config         game.Config             `json:"config"`
	GameState      *game.Snapshot          `json:"gameState,omitempty"`
	CrosswordState *game.CrosswordSnapshot `json:"crosswordState,omitempty"`
}

// RoomSummary is one row of the public room list.
type RoomSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Code           string    `json:"code"`
	GameMode       game.Mode `json:"gameMode"`
	HostPlayerName string    `json:"hostPlayerName"`
	PlayerCount    int       `json:"playerCount"`
	MaxPlayers     int       `json:"maxPlayers"`
	IsGameActive   bool      `json:"isGameActive"`
}

type Connected struct {
	Header
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type PlayerJoined struct {
	Header
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type PlayerLeft struct {
	Header
	PlayerID string `json:"playerId"`
}

type ChatBroadcast struct {
	Header
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

type RoomJoined struct {
	Header
	Room RoomView `json:"room"`
}

type RoomUpdated struct {
	Header
	Room RoomView `json:"room"`
}

type RoomLeft struct {
	Header
	RoomID string `json:"roomId"`
}

type RoomClosed struct {
	Header
	RoomID  string `json:"roomId"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type RoomList struct {
	Header
	Rooms []RoomSummary `json:"rooms"`
}

type GameStarted struct {
	Header
	RoomID string `json:"roomId"`
}

type GameState struct {
	Header
	RoomID    string        `json:"roomId"`
	GameState game.Snapshot `json:"gameState"`
}

type CrosswordState struct {
	Header
	RoomID         string                 `json:"roomId"`
	CrosswordState game.CrosswordSnapshot `json:"crosswordState"`
}

type GameEnded struct {
	Header
	RoomID      string       `json:"roomId"`
	Winner      string       `json:"winner,omitempty"`
	WinnerID    string       `json:"winnerId,omitempty"`
	FinalScores []game.Score `json:"finalScores"`
}

type WordSubmitted struct {
	Header
	RoomID    string         `json:"roomId"`
	PlayerID  string         `json:"playerId"`
	Result    words.Result   `json:"result"`
	Inventory game.Inventory `json:"inventory"`
}

type Error struct {
	Header
	Message string `json:"message"`
}

// Constructors stamp the header so callers cannot forget the type.

func NewConnected(id, name string) Connected {
	return Connected{header(TypeConnected), id, name}
}
func NewPlayerJoined(id, name string) PlayerJoined {
	return PlayerJoined{header(TypePlayerJoined), id, name}
}
func NewPlayerLeft(id string) PlayerLeft { return PlayerLeft{header(TypePlayerLeft), id} }
func NewChatBroadcast(id, name, msg string) ChatBroadcast {
	return ChatBroadcast{header(TypeChatBroadcast), id, name, msg}
}
func NewRoomJoined(r RoomView) RoomJoined   { return RoomJoined{header(TypeRoomJoined), r} }
func NewRoomUpdated(r RoomView) RoomUpdated { return RoomUpdated{header(TypeRoomUpdated), r} }
func NewRoomLeft(roomID string) RoomLeft    { return RoomLeft{header(TypeRoomLeft), roomID} }
func NewRoomClosed(roomID, reason, msg string) RoomClosed {
	return RoomClosed{header(TypeRoomClosed), roomID, reason, msg}
}
func NewRoomList(rooms []RoomSummary) RoomList {
	if rooms == nil {
		rooms = []RoomSummary{}
	}
	return RoomList{header(TypeRoomListResponse), rooms}
}
func NewGameStarted(roomID string) GameStarted { return GameStarted{header(TypeGameStarted), roomID} }
func NewGameState(roomID string, s game.Snapshot) GameState {
	return GameState{header(TypeGameState), roomID, s}
}
func NewCrosswordState(roomID string, c game.CrosswordSnapshot) CrosswordState {
	return CrosswordState{header(TypeCrosswordState), roomID, c}
}
func NewGameEnded(roomID string, res game.Result) GameEnded {
	scores := res.Scores
	if scores == nil {
		scores = []game.Score{}
	}
	return GameEnded{header(TypeGameEnded), roomID, res.WinnerName, res.WinnerID, scores}
}
func NewWordSubmitted(roomID, playerID string, r words.Result, inv game.Inventory) WordSubmitted {
	return WordSubmitted{header(TypeWordSubmitted), roomID, playerID, r, inv}
}
func NewError(msg string) Error { return Error{header(TypeError), msg} }

// Encode marshals a server frame.
func Encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("encode frame")
		return nil
	}
	return b
}
