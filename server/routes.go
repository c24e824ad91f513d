package server

import (
	"github.com/juju/errors"

	"github.com/wireline/wireline/server/client"
	"github.com/wireline/wireline/server/identifiers"
	"github.com/wireline/wireline/server/logger"
	"github.com/wireline/wireline/server/message"
	"github.com/wireline/wireline/server/room"
)

// Application routes resolved by the server's own router. Room-scoped
// routes like /broadcast live in the room package instead.
const (
	RouteWhisper        = "/client/whisper"
	RouteRoomAdd        = "/room/add"
	RouteRoomDelete     = "/room/delete"
	RouteRoomEmpty      = "/room/empty"
	RouteRoomGet        = "/room/get"
	RouteRoomJoin       = "/room/join"
	RouteRoomLeave      = "/room/leave"
	RouteRoomClientBan  = "/room/client/ban"
	RouteRoomClientGet  = "/room/client/get"
	RouteRoomClientKick = "/room/client/kick"
)

// routeHandler resolves one application route for the sending client. A
// non-nil response is written back to the sender. Violations produce
// error-status responses, never disconnects.
type routeHandler func(c *client.Client, msg *message.Message) *message.Message

func (s *Server) routes() map[string]routeHandler {
	return map[string]routeHandler{
		RouteWhisper:        s.handleWhisper,
		RouteRoomAdd:        s.handleRoomAdd,
		RouteRoomDelete:     s.handleRoomDelete,
		RouteRoomEmpty:      s.handleRoomEmpty,
		RouteRoomGet:        s.handleRoomGet,
		RouteRoomJoin:       s.handleRoomJoin,
		RouteRoomLeave:      s.handleRoomLeave,
		RouteRoomClientBan:  s.handleRoomClientBan,
		RouteRoomClientGet:  s.handleRoomClientGet,
		RouteRoomClientKick: s.handleRoomClientKick,
	}
}

func errorResponse(route string, reason string) *message.Message {
	response := message.NewError(route, reason)

	return &response
}

func okResponse(route string, data interface{}) *message.Message {
	response := message.New(route, data)

	return &response
}

// handleWhisper delivers a direct message to one client. The sender
// identity is stamped into the payload so the target cannot be spoofed
// into trusting a forged "from" field.
func (s *Server) handleWhisper(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	target := msg.DataString("to")
	if target == "" {
		return errorResponse(RouteWhisper, "target client required")
	}

	targetClient, ok := s.clients.Get(identifiers.ClientID(target))
	if !ok {
		return errorResponse(RouteWhisper, "client not found: "+target)
	}

	data := map[string]interface{}{}

	for k, v := range msg.DataMap() {
		data[k] = v
	}

	data["from"] = c.ID().String()

	if err := targetClient.Write(message.New(RouteWhisper, data)); err != nil {
		s.log.Error("Whisper", errors.Trace(err), logger.Ctx{
			"client_id": c.ID(),
			"target_id": target,
		})

		return errorResponse(RouteWhisper, "failed to deliver to: "+target)
	}

	return nil
}

// handleRoomAdd creates a room owned by the sender and joins the sender
// to it.
func (s *Server) handleRoomAdd(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	name := msg.DataString("name")
	if name == "" {
		return errorResponse(RouteRoomAdd, "room name required")
	}

	r := room.New(room.Params{
		Log:        s.params.Log,
		Name:       identifiers.RoomID(name),
		Owner:      c.ID(),
		Password:   msg.DataString("password"),
		MaxClients: s.params.Config.RoomMaxClients,
	})

	if err := s.rooms.Add(r); err != nil {
		return errorResponse(RouteRoomAdd, errors.Cause(err).Error())
	}

	prometheusRoomsActive.Set(float64(s.rooms.Size()))

	if err := r.Join(c, msg.DataString("password")); err != nil {
		return errorResponse(RouteRoomAdd, errors.Cause(err).Error())
	}

	return okResponse(RouteRoomAdd, r.Summary())
}

func (s *Server) handleRoomDelete(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	r, response := s.ownedRoom(c, msg, RouteRoomDelete)
	if response != nil {
		return response
	}

	r.Clear()
	s.rooms.Remove(r.Name())

	prometheusRoomsActive.Set(float64(s.rooms.Size()))

	return okResponse(RouteRoomDelete, nil)
}

func (s *Server) handleRoomEmpty(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	r, response := s.ownedRoom(c, msg, RouteRoomEmpty)
	if response != nil {
		return response
	}

	r.Clear()

	return okResponse(RouteRoomEmpty, nil)
}

// handleRoomGet lists non-hidden rooms, paginated by the optional max
// and offset payload fields.
func (s *Server) handleRoomGet(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	summaries := s.rooms.Public()
	total := len(summaries)

	offset := msg.DataInt("offset")
	max := msg.DataInt("max")

	if offset < 0 || offset >= len(summaries) {
		summaries = nil
	} else {
		summaries = summaries[offset:]

		if max > 0 && max < len(summaries) {
			summaries = summaries[:max]
		}
	}

	return okResponse(RouteRoomGet, map[string]interface{}{
		"rooms": summaries,
		"total": total,
	})
}

func (s *Server) handleRoomJoin(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	r, response := s.namedRoom(msg, RouteRoomJoin)
	if response != nil {
		return response
	}

	if err := r.Join(c, msg.DataString("password")); err != nil {
		return errorResponse(RouteRoomJoin, errors.Cause(err).Error())
	}

	return okResponse(RouteRoomJoin, r.Summary())
}

func (s *Server) handleRoomLeave(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	r, response := s.namedRoom(msg, RouteRoomLeave)
	if response != nil {
		return response
	}

	if !r.ClientManager.Remove(c.ID()) {
		return errorResponse(RouteRoomLeave, "not a member of room: "+r.Name().String())
	}

	return okResponse(RouteRoomLeave, nil)
}

// handleRoomClientBan removes the target from the room and blocks it
// from rejoining, even with the right password.
func (s *Server) handleRoomClientBan(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	r, response := s.ownedRoom(c, msg, RouteRoomClientBan)
	if response != nil {
		return response
	}

	target := msg.DataString("id")
	if target == "" {
		return errorResponse(RouteRoomClientBan, "target client required")
	}

	r.Ban(identifiers.ClientID(target))

	return okResponse(RouteRoomClientBan, nil)
}

func (s *Server) handleRoomClientGet(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	r, response := s.namedRoom(msg, RouteRoomClientGet)
	if response != nil {
		return response
	}

	if !r.Has(c.ID()) {
		return errorResponse(RouteRoomClientGet, "not a member of room: "+r.Name().String())
	}

	return okResponse(RouteRoomClientGet, map[string]interface{}{
		"clients": r.SerializePage(msg.DataInt("max"), msg.DataInt("offset")),
		"total":   r.Size(),
	})
}

func (s *Server) handleRoomClientKick(c *client.Client, msg *message.Message) *message.Message {
	msg.SetDone()

	r, response := s.ownedRoom(c, msg, RouteRoomClientKick)
	if response != nil {
		return response
	}

	target := msg.DataString("id")
	if target == "" {
		return errorResponse(RouteRoomClientKick, "target client required")
	}

	if !r.ClientManager.Remove(identifiers.ClientID(target)) {
		return errorResponse(RouteRoomClientKick, "client not found in room: "+target)
	}

	return okResponse(RouteRoomClientKick, nil)
}

// namedRoom resolves the room named in the payload, or an error response
// for the caller to return.
func (s *Server) namedRoom(msg *message.Message, route string) (*room.Room, *message.Message) {
	name := msg.DataString("name")
	if name == "" {
		return nil, errorResponse(route, "room name required")
	}

	r, ok := s.rooms.Get(identifiers.RoomID(name))
	if !ok {
		return nil, errorResponse(route, "room not found: "+name)
	}

	return r, nil
}

// ownedRoom is namedRoom plus an ownership check against the sender.
func (s *Server) ownedRoom(c *client.Client, msg *message.Message, route string) (*room.Room, *message.Message) {
	r, response := s.namedRoom(msg, route)
	if response != nil {
		return nil, response
	}

	if !r.IsOwner(c.ID()) {
		return nil, errorResponse(route, "not the owner of room: "+r.Name().String())
	}

	return r, nil
}
