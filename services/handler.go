package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
)

// Inbound event names.
const (
	EventCreateRoom   = "create_room"
	EventJoinRoom     = "join_room"
	EventApproveJoin  = "approve_join"
	EventRejectJoin   = "reject_join"
	EventSetBet       = "set_bet"
	EventSetBalance   = "set_balance"
	EventKickPlayer   = "kick_player"
	EventSetReady     = "set_ready"
	EventRerollTicket = "reroll_ticket"
	EventStartGame    = "start_game"
	EventDrawNumber   = "draw_number"
	EventMarkNumber   = "mark_number"
	EventNoNumber     = "no_number"
	EventClaimBingo   = "claim_bingo"
	EventRestartGame  = "restart_game"
	EventReconnect    = "reconnect"
	EventChat         = "chat_message"
)

// Outbound event names.
const (
	EventWelcome     = "welcome"
	EventRoomState   = "room_state"
	EventJoinRequest = "join_request"
	EventApproved    = "approved"
	EventRejected    = "rejected"
	EventKicked      = "kicked"
	EventNumberDrawn = "number_drawn"
	EventGameEnded   = "game_ended"
	EventError       = "error"
)

type createRoomPayload struct {
	Name    string `json:"name" validate:"required,min=1,max=32"`
	Balance int    `json:"balance" validate:"gte=0"`
}

type joinRoomPayload struct {
	RoomID  string `json:"roomId" validate:"required,len=6"`
	Name    string `json:"name" validate:"required,min=1,max=32"`
	Balance int    `json:"balance" validate:"gte=0"`
}

type requestPayload struct {
	RoomID   string `json:"roomId" validate:"required,len=6"`
	SocketID string `json:"socketId" validate:"required"`
}

type roomPayload struct {
	RoomID string `json:"roomId" validate:"required,len=6"`
}

type setBetPayload struct {
	RoomID string `json:"roomId" validate:"required,len=6"`
	Bet    int    `json:"bet" validate:"gte=0"`
}

type setBalancePayload struct {
	RoomID   string `json:"roomId" validate:"required,len=6"`
	PlayerID string `json:"playerId" validate:"required"`
	Balance  int    `json:"balance" validate:"gte=0"`
}

type kickPayload struct {
	RoomID   string `json:"roomId" validate:"required,len=6"`
	PlayerID string `json:"playerId" validate:"required"`
}

type readyPayload struct {
	RoomID string `json:"roomId" validate:"required,len=6"`
	Ready  bool   `json:"ready"`
}

type markPayload struct {
	RoomID string `json:"roomId" validate:"required,len=6"`
	TurnID int    `json:"turnId" validate:"gte=1"`
	Row    int    `json:"row" validate:"gte=0,lte=8"`
	Col    int    `json:"col" validate:"gte=0,lte=8"`
}

type noNumberPayload struct {
	RoomID string `json:"roomId" validate:"required,len=6"`
	TurnID int    `json:"turnId" validate:"gte=1"`
}

type reconnectPayload struct {
	RoomID   string `json:"roomId" validate:"required,len=6"`
	PlayerID string `json:"playerId" validate:"required"`
}

type chatPayload struct {
	RoomID string `json:"roomId" validate:"required,len=6"`
	Text   string `json:"text" validate:"required,max=500"`
}

// ackResult is the acknowledgement body for request/response events.
type ackResult struct {
	OK       bool         `json:"ok"`
	Code     Code         `json:"code,omitempty"`
	Message  string       `json:"message,omitempty"`
	Room     *models.Room `json:"room,omitempty"`
	PlayerID string       `json:"playerId,omitempty"`
	Number   int          `json:"number,omitempty"`
}

// Dispatcher routes inbound events: rate limit, schema validation, the
// session operation, then fan-out and the debounced turn check.
type Dispatcher struct {
	hub         *Hub
	sessions    *Session
	coordinator *Coordinator
	limiter     Limiter
	validate    *validator.Validate
	log         *zap.SugaredLogger
}

func NewDispatcher(hub *Hub, sessions *Session, coordinator *Coordinator, limiter Limiter, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		hub:         hub,
		sessions:    sessions,
		coordinator: coordinator,
		limiter:     limiter,
		validate:    validator.New(),
		log:         log,
	}
}

// fail answers with the coded error, on the ack when one was requested,
// as an error event otherwise. Requests are never silently dropped.
func (d *Dispatcher) fail(c *Client, ev Event, err error) {
	code := CodeOf(err)
	msg := err.Error()
	var e *Error
	if asErr, ok := err.(*Error); ok {
		e = asErr
		msg = e.Message
	}
	if code == CodeInternal {
		d.log.Errorf("[Client %s] %s failed: %v", c.socketID, ev.Name, err)
		msg = "internal error"
	}
	if ev.AckID != 0 {
		c.Ack(ev.AckID, ackResult{OK: false, Code: code, Message: msg})
		return
	}
	c.Emit(EventError, &Error{Code: code, Message: msg})
}

// decode unmarshals and schema-checks a payload.
func (d *Dispatcher) decode(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return E(CodeValidation, "malformed payload: %v", err)
	}
	if err := d.validate.Struct(dst); err != nil {
		return E(CodeValidation, "invalid payload: %v", err)
	}
	return nil
}

// limitKey picks the admission identity: creation and join are limited
// per IP, everything else per socket.
func (d *Dispatcher) limitKey(c *Client, event string) string {
	if event == EventCreateRoom || event == EventJoinRoom {
		return c.ip
	}
	return c.socketID
}

// Dispatch handles one inbound event end to end.
func (d *Dispatcher) Dispatch(c *Client, ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	allowed, err := d.limiter.Allow(ctx, d.limitKey(c, ev.Name), ev.Name)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	if !allowed {
		d.fail(c, ev, E(CodeTooFast, "you're doing that too fast, slow down"))
		return
	}

	switch ev.Name {
	case EventCreateRoom:
		d.createRoom(ctx, c, ev)
	case EventJoinRoom:
		d.joinRoom(ctx, c, ev)
	case EventApproveJoin:
		d.approveJoin(ctx, c, ev)
	case EventRejectJoin:
		d.rejectJoin(ctx, c, ev)
	case EventSetBet:
		d.setBet(ctx, c, ev)
	case EventSetBalance:
		d.setBalance(ctx, c, ev)
	case EventKickPlayer:
		d.kickPlayer(ctx, c, ev)
	case EventSetReady:
		d.setReady(ctx, c, ev)
	case EventRerollTicket:
		d.rerollTicket(ctx, c, ev)
	case EventStartGame:
		d.startGame(ctx, c, ev)
	case EventDrawNumber:
		d.drawNumber(ctx, c, ev)
	case EventMarkNumber:
		d.markNumber(ctx, c, ev)
	case EventNoNumber:
		d.noNumber(ctx, c, ev)
	case EventClaimBingo:
		d.claimBingo(ctx, c, ev)
	case EventRestartGame:
		d.restartGame(ctx, c, ev)
	case EventReconnect:
		d.reconnect(ctx, c, ev)
	case EventChat:
		d.chat(ctx, c, ev)
	default:
		d.fail(c, ev, E(CodeValidation, "unknown event %q", ev.Name))
	}
}

func (d *Dispatcher) createRoom(ctx context.Context, c *Client, ev Event) {
	var p createRoomPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.CreateRoom(ctx, c.socketID, p.Name, p.Balance)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	d.hub.JoinRoom(c, room.ID)
	c.Ack(ev.AckID, ackResult{OK: true, Room: room, PlayerID: room.HostID})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) joinRoom(ctx context.Context, c *Client, ev Event) {
	var p joinRoomPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.Join(ctx, p.RoomID, c.socketID, p.Name, p.Balance)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	d.hub.JoinRoom(c, room.ID)
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastRoom(room.ID, EventJoinRequest, room.Requests)
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) approveJoin(ctx context.Context, c *Client, ev Event) {
	var p requestPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, player, err := d.sessions.Approve(ctx, p.RoomID, c.socketID, p.SocketID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	if joined := d.hub.Client(player.SocketID); joined != nil {
		joined.Emit(EventApproved, ackResult{OK: true, Room: room, PlayerID: player.ID})
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) rejectJoin(ctx context.Context, c *Client, ev Event) {
	var p requestPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.Reject(ctx, p.RoomID, c.socketID, p.SocketID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	if rejected := d.hub.Client(p.SocketID); rejected != nil {
		rejected.Emit(EventRejected, ackResult{OK: false, Code: CodeRequestNotFound, Message: "join request rejected"})
	}
	d.hub.LeaveRoom(p.SocketID, p.RoomID)
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) setBet(ctx context.Context, c *Client, ev Event) {
	var p setBetPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.SetBet(ctx, p.RoomID, c.socketID, p.Bet)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) setBalance(ctx context.Context, c *Client, ev Event) {
	var p setBalancePayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.SetBalance(ctx, p.RoomID, c.socketID, p.PlayerID, p.Balance)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) kickPlayer(ctx context.Context, c *Client, ev Event) {
	var p kickPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, kickedSocket, err := d.sessions.Kick(ctx, p.RoomID, c.socketID, p.PlayerID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	if kicked := d.hub.Client(kickedSocket); kicked != nil {
		kicked.Emit(EventKicked, ackResult{OK: false, Message: "you were removed from the room"})
	}
	d.hub.LeaveRoom(kickedSocket, p.RoomID)
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) setReady(ctx context.Context, c *Client, ev Event) {
	var p readyPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.SetReady(ctx, p.RoomID, c.socketID, p.Ready)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) rerollTicket(ctx context.Context, c *Client, ev Event) {
	var p roomPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.RerollTicket(ctx, p.RoomID, c.socketID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) startGame(ctx context.Context, c *Client, ev Event) {
	var p roomPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.StartGame(ctx, p.RoomID, c.socketID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) drawNumber(ctx context.Context, c *Client, ev Event) {
	var p roomPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.Draw(ctx, p.RoomID, c.socketID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Number: room.Game.Current})
	d.hub.BroadcastRoom(room.ID, EventNumberDrawn, room.Game)
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) markNumber(ctx context.Context, c *Client, ev Event) {
	var p markPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.Mark(ctx, p.RoomID, c.socketID, p.TurnID, p.Row, p.Col)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
	d.coordinator.Schedule(room.ID)
}

func (d *Dispatcher) noNumber(ctx context.Context, c *Client, ev Event) {
	var p noNumberPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.NoNumber(ctx, p.RoomID, c.socketID, p.TurnID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
	d.coordinator.Schedule(room.ID)
}

func (d *Dispatcher) claimBingo(ctx context.Context, c *Client, ev Event) {
	var p roomPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.Bingo(ctx, p.RoomID, c.socketID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastRoom(room.ID, EventGameEnded, room.Winner)
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) restartGame(ctx context.Context, c *Client, ev Event) {
	var p roomPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.Restart(ctx, p.RoomID, c.socketID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true, Room: room})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) reconnect(ctx context.Context, c *Client, ev Event) {
	var p reconnectPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.Reconnect(ctx, p.RoomID, p.PlayerID, c.socketID)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	d.hub.JoinRoom(c, room.ID)
	c.Ack(ev.AckID, ackResult{OK: true, Room: room, PlayerID: p.PlayerID})
	d.hub.BroadcastState(room)
}

func (d *Dispatcher) chat(ctx context.Context, c *Client, ev Event) {
	var p chatPayload
	if err := d.decode(ev.Payload, &p); err != nil {
		d.fail(c, ev, err)
		return
	}
	room, err := d.sessions.SendMessage(ctx, p.RoomID, c.socketID, p.Text)
	if err != nil {
		d.fail(c, ev, err)
		return
	}
	c.Ack(ev.AckID, ackResult{OK: true})
	d.hub.BroadcastRoom(room.ID, EventChat, room.Messages[len(room.Messages)-1])
}

// HandleDisconnect runs the disconnect lifecycle: the player stays in the
// room for a later reconnect, only the transport goes away.
func (d *Dispatcher) HandleDisconnect(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room, err := d.sessions.Disconnect(ctx, c.socketID)
	if err != nil {
		d.log.Warnf("[Client %s] disconnect: %v", c.socketID, err)
	}
	d.hub.remove(c)
	if room != nil {
		d.hub.BroadcastState(room)
	}
}
