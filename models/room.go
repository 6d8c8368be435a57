package models

import "time"

// Phase is the coarse lifecycle stage of a room.
type Phase string

const (
	PhaseLobby   Phase = "LOBBY"
	PhasePlaying Phase = "PLAYING"
	PhaseEnded   Phase = "ENDED"

	// PhaseTicketPick is a legacy stage kept so old snapshots still decode;
	// no current transition produces it.
	PhaseTicketPick Phase = "TICKET_PICK"
)

// Response is a player's answer to the current turn.
type Response string

const (
	ResponseMarked   Response = "MARKED"
	ResponseNoNumber Response = "NO_NUMBER"
)

// MaxMessages caps the in-room chat log.
const MaxMessages = 100

// WaitingEntry names a player one number away from completing a row.
type WaitingEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Numbers  []int  `json:"numbers"`
}

// GameState is one round's turn state. Destroyed and recreated on restart.
type GameState struct {
	TurnID    int                 `json:"turnId"`
	Current   int                 `json:"current"`
	Drawn     []int               `json:"drawn"`
	Responses map[string]Response `json:"responses"`
	Waiting   []WaitingEntry      `json:"waiting"`
}

// Winner records the accepted bingo claim of a round.
type Winner struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Row      int    `json:"row"`
	Prize    int    `json:"prize"`
}

// Message is one chat entry in the room log.
type Message struct {
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

// Room is the unit of atomicity: every mutation reads the whole room,
// changes an in-memory copy and writes the snapshot back.
type Room struct {
	ID                 string         `json:"id"`
	Phase              Phase          `json:"phase"`
	HostID             string         `json:"hostId"`
	Players            []*Player      `json:"players"`
	Requests           []*JoinRequest `json:"requests"`
	Game               *GameState     `json:"game,omitempty"`
	Bet                int            `json:"bet"`
	LastActivity       time.Time      `json:"lastActivity"`
	HostDisconnectedAt *time.Time     `json:"hostDisconnectedAt,omitempty"`
	Winner             *Winner        `json:"winner,omitempty"`
	Messages           []Message      `json:"messages"`
	ServerID           string         `json:"serverId"`

	// Version backs the store's conditional write; it holds the value
	// observed at read time and is bumped by a successful Set.
	Version int64 `json:"version"`
}

// Player finds a member by stable id.
func (r *Room) Player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerBySocket finds a member by current transport id.
func (r *Room) PlayerBySocket(socketID string) *Player {
	for _, p := range r.Players {
		if p.SocketID == socketID {
			return p
		}
	}
	return nil
}

// Request finds a pending join request by socket id.
func (r *Room) Request(socketID string) *JoinRequest {
	for _, req := range r.Requests {
		if req.SocketID == socketID {
			return req
		}
	}
	return nil
}

// RemoveRequest drops a pending request; reports whether it existed.
func (r *Room) RemoveRequest(socketID string) bool {
	for i, req := range r.Requests {
		if req.SocketID == socketID {
			r.Requests = append(r.Requests[:i], r.Requests[i+1:]...)
			return true
		}
	}
	return false
}

// AddMessage appends to the chat log, trimming to the last MaxMessages.
func (r *Room) AddMessage(m Message) {
	r.Messages = append(r.Messages, m)
	if len(r.Messages) > MaxMessages {
		r.Messages = r.Messages[len(r.Messages)-MaxMessages:]
	}
}

// Touch refreshes the activity timestamp used by the janitor.
func (r *Room) Touch(now time.Time) {
	r.LastActivity = now
}

// Pending lists players who have not answered the current turn.
func (r *Room) Pending() []*Player {
	if r.Game == nil {
		return nil
	}
	var out []*Player
	for _, p := range r.Players {
		if p.RespondedTurn != r.Game.TurnID {
			out = append(out, p)
		}
	}
	return out
}
