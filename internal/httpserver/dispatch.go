// apps/go-server/internal/httpserver/dispatch.go
//
// Routes decoded client frames to the room manager and answers the sender.
// Validation and authorisation failures go back to the sender only as
// {type:"error"}; gameplay input that cannot apply is dropped silently.

package httpserver

import (
	"errors"

	"github.com/robalobadob/snakeword/apps/go-server/internal/game"
	"github.com/robalobadob/snakeword/apps/go-server/internal/protocol"
	"github.com/robalobadob/snakeword/apps/go-server/internal/room"
)

const startFailed = "Failed to start game. Make sure you are the host and at least one player is ready."

func (s *Server) dispatch(c *client, in protocol.Inbound) {
	if in.Type == protocol.TypeConnect {
		s.connect(c, in)
		return
	}
	if !c.registered {
		c.reply(protocol.NewError("Send a connect message first"))
		return
	}
	s.rooms.Touch(c.id)

	switch in.Type {
	case protocol.TypeDisconnect:
		c.Close()

	case protocol.TypeChat:
		s.fail(c, s.rooms.Chat(c.id, in.Message))

	case protocol.TypeCreateRoom:
		_, err := s.rooms.CreateRoom(c.id, in.RoomName, game.ParseMode(in.GameMode), in.MaxPlayers, in.IsPrivate)
		s.fail(c, err)

	case protocol.TypeJoinRoom:
		ref := in.RoomRef()
		if ref == "" {
			c.reply(protocol.NewError("Room id or code required"))
			return
		}
		_, err := s.rooms.JoinRoom(c.id, ref)
		s.fail(c, err)

	case protocol.TypeLeaveRoom:
		roomID := in.RoomID
		if roomID == "" {
			roomID = s.rooms.RoomOf(c.id)
		}
		if err := s.rooms.LeaveRoom(c.id, roomID); err != nil {
			s.fail(c, err)
			return
		}
		c.reply(protocol.NewRoomLeft(roomID))

	case protocol.TypeRoomList:
		c.reply(protocol.NewRoomList(summaries(s.rooms.ListPublicRooms())))

	case protocol.TypePlayerReady:
		s.fail(c, s.rooms.SetReady(c.id, in.RoomID, in.IsReady))

	case protocol.TypePlayerColor:
		s.fail(c, s.rooms.SetColor(c.id, in.RoomID, in.Color))

	case protocol.TypeStartGame:
		if err := s.rooms.StartGameByHost(c.id, in.RoomID); err != nil {
			c.log.Debug().Err(err).Msg("start refused")
			c.reply(protocol.NewError(startFailed))
		}

	case protocol.TypeGameInput:
		if err := s.rooms.RouteInput(c.id, in.RoomID, in.Direction); err != nil {
			c.log.Debug().Err(err).Str("direction", in.Direction).Msg("input ignored")
		}

	case protocol.TypeSubmitWord:
		// the result itself arrives as word_submitted
		_, err := s.rooms.SubmitWord(c.id, in.RoomID, in.Letters)
		s.fail(c, err)

	case protocol.TypeClearLetters:
		if err := s.rooms.ClearLetters(c.id, in.RoomID); err != nil {
			c.log.Debug().Err(err).Msg("clear ignored")
		}

	default:
		c.reply(protocol.NewError("Unknown message type: " + in.Type))
	}
}

// connect registers the socket under its display name, or renames it.
func (s *Server) connect(c *client, in protocol.Inbound) {
	if c.registered {
		if err := s.rooms.Rename(c.id, in.PlayerName); err != nil {
			s.fail(c, err)
			return
		}
		name, _ := s.rooms.Name(c.id)
		c.reply(protocol.NewConnected(c.id, name))
		return
	}

	c.registered = true
	name := room.DisplayName(in.PlayerName)
	// connected must precede a reclaimed seat's room_joined
	c.reply(protocol.NewConnected(c.id, name))
	reconnected := s.rooms.AddPlayer(c.id, name, c)
	if c.accountID != "" {
		s.rooms.BindAccount(c.id, c.accountID)
	}
	s.rooms.Broadcast(protocol.Encode(protocol.NewPlayerJoined(c.id, name)), c.id)
	c.log.Info().Str("name", name).Bool("reconnected", reconnected).Msg("player registered")
}

func (s *Server) fail(c *client, err error) {
	if err == nil {
		return
	}
	c.log.Debug().Err(err).Msg("request refused")
	c.reply(protocol.NewError(userMessage(err)))
}

// userMessage turns a manager error into text for the client.
func userMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrRoomClosed):
		return "Room not found"
	case errors.Is(err, room.ErrRoomFull):
		return "Room is full"
	case errors.Is(err, room.ErrNotInRoom):
		return "You are not in that room"
	case errors.Is(err, room.ErrBadColor):
		return "That colour is not available"
	case errors.Is(err, room.ErrColorTaken):
		return "Color already taken by another player"
	case errors.Is(err, room.ErrNoGame):
		return "No game in progress"
	case errors.Is(err, game.ErrWrongMode):
		return "Words can only be submitted in classic mode"
	case errors.Is(err, room.ErrUnknownPlayer), errors.Is(err, game.ErrUnknownPlayer):
		return "Unknown player"
	default:
		return "Request failed"
	}
}
