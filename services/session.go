package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tuanpham2xx3/LOTOTET-sub000/game"
	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
	"github.com/tuanpham2xx3/LOTOTET-sub000/store"
)

const (
	// roomCodeAlphabet skips lookalike characters (0/O, 1/I/L).
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6

	// DefaultSocketTTL bounds socket->room associations in the store.
	DefaultSocketTTL = 12 * time.Hour
)

// Session implements every mutating game operation as one atomic
// read-modify-write cycle against the room store. Operations return coded
// errors, never panic.
type Session struct {
	store    store.RoomStore
	log      *zap.SugaredLogger
	serverID string
}

func NewSession(st store.RoomStore, log *zap.SugaredLogger, serverID string) *Session {
	return &Session{store: st, log: log, serverID: serverID}
}

// Store exposes the underlying room store for read-only collaborators.
func (s *Session) Store() store.RoomStore {
	return s.store
}

// withRoom runs fn inside a read-modify-write cycle, retrying on lost
// write races. Activity is touched on every successful mutation.
func (s *Session) withRoom(ctx context.Context, roomID string, fn func(*models.Room) error) (*models.Room, error) {
	for attempt := 0; attempt < 3; attempt++ {
		room, err := s.store.Get(ctx, roomID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, E(CodeRoomNotFound, "room %s not found", roomID)
		}
		if err != nil {
			return nil, err
		}
		if err := fn(room); err != nil {
			return nil, err
		}
		room.Touch(time.Now())
		err = s.store.Set(ctx, room)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
		s.log.Debugf("room %s write conflict, retrying (attempt %d)", roomID, attempt+1)
	}
	return nil, E(CodeInternal, "room %s is busy, try again", roomID)
}

func hostBySocket(room *models.Room, socketID string) (*models.Player, error) {
	p := room.PlayerBySocket(socketID)
	if p == nil {
		return nil, E(CodePlayerNotFound, "player not found in room %s", room.ID)
	}
	if !p.IsHost {
		return nil, E(CodeNotHost, "only the host can do that")
	}
	return p, nil
}

// newRoomCode draws collision-checked 6-character codes.
func (s *Session) newRoomCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		var b strings.Builder
		for i := 0; i < roomCodeLength; i++ {
			b.WriteByte(roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))])
		}
		code := b.String()
		exists, err := s.store.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("room code space exhausted")
}

// CreateRoom creates a room with the caller as approved host.
func (s *Session) CreateRoom(ctx context.Context, socketID, name string, balance int) (*models.Room, error) {
	code, err := s.newRoomCode(ctx)
	if err != nil {
		return nil, err
	}

	ticket, err := game.Generate()
	if err != nil {
		return nil, err
	}

	host := &models.Player{
		ID:       uuid.NewString(),
		SocketID: socketID,
		Name:     name,
		Balance:  balance,
		IsHost:   true,
		Ticket:   ticket,
	}

	room := &models.Room{
		ID:           code,
		Phase:        models.PhaseLobby,
		HostID:       host.ID,
		Players:      []*models.Player{host},
		LastActivity: time.Now(),
		ServerID:     s.serverID,
	}

	if err := s.store.Set(ctx, room); err != nil {
		return nil, err
	}
	if err := s.store.AssociateSocket(ctx, socketID, code, DefaultSocketTTL); err != nil {
		return nil, err
	}

	s.log.Infof("room %s created by %s", code, name)
	return room, nil
}

// Join files a pending request for host approval. A resubmission with the
// same name (refresh, retry) supersedes the earlier pending request.
func (s *Session) Join(ctx context.Context, roomID, socketID, name string, balance int) (*models.Room, error) {
	room, err := s.withRoom(ctx, roomID, func(r *models.Room) error {
		if r.Phase != models.PhaseLobby {
			return E(CodeInvalidPhase, "room %s is not accepting players", roomID)
		}
		for i := len(r.Requests) - 1; i >= 0; i-- {
			if r.Requests[i].Name == name {
				r.Requests = append(r.Requests[:i], r.Requests[i+1:]...)
			}
		}
		r.Requests = append(r.Requests, &models.JoinRequest{
			SocketID:  socketID,
			Name:      name,
			Balance:   balance,
			CreatedAt: time.Now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.AssociateSocket(ctx, socketID, roomID, DefaultSocketTTL); err != nil {
		return nil, err
	}
	return room, nil
}

// dedupeName suffixes _2, _3, ... until the name is unique in the room.
func dedupeName(room *models.Room, name string) string {
	taken := func(n string) bool {
		for _, p := range room.Players {
			if p.Name == n {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// Approve turns a pending request into a seated player with a fresh ticket.
func (s *Session) Approve(ctx context.Context, roomID, hostSocketID, reqSocketID string) (*models.Room, *models.Player, error) {
	var player *models.Player
	room, err := s.withRoom(ctx, roomID, func(r *models.Room) error {
		if _, err := hostBySocket(r, hostSocketID); err != nil {
			return err
		}
		req := r.Request(reqSocketID)
		if req == nil {
			return E(CodeRequestNotFound, "join request not found")
		}
		ticket, err := game.Generate()
		if err != nil {
			return err
		}
		player = &models.Player{
			ID:       uuid.NewString(),
			SocketID: req.SocketID,
			Name:     dedupeName(r, req.Name),
			Balance:  req.Balance,
			Ticket:   ticket,
		}
		r.Players = append(r.Players, player)
		r.RemoveRequest(reqSocketID)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Infof("room %s: approved %s", roomID, player.Name)
	return room, player, nil
}

// Reject drops a pending request and its transport association.
func (s *Session) Reject(ctx context.Context, roomID, hostSocketID, reqSocketID string) (*models.Room, error) {
	room, err := s.withRoom(ctx, roomID, func(r *models.Room) error {
		if _, err := hostBySocket(r, hostSocketID); err != nil {
			return err
		}
		if !r.RemoveRequest(reqSocketID) {
			return E(CodeRequestNotFound, "join request not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveSocket(ctx, reqSocketID); err != nil {
		s.log.Warnf("room %s: drop socket %s: %v", roomID, reqSocketID, err)
	}
	return room, nil
}

// SetBet changes the room's bet amount. Host-only, lobby-only.
func (s *Session) SetBet(ctx context.Context, roomID, socketID string, bet int) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		if _, err := hostBySocket(r, socketID); err != nil {
			return err
		}
		if r.Phase != models.PhaseLobby {
			return E(CodeInvalidPhase, "bet can only change in the lobby")
		}
		if bet < 0 {
			return E(CodeValidation, "bet must not be negative")
		}
		r.Bet = bet
		return nil
	})
}

// SetBalance updates a player's balance. Host-only.
func (s *Session) SetBalance(ctx context.Context, roomID, hostSocketID, playerID string, balance int) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		if _, err := hostBySocket(r, hostSocketID); err != nil {
			return err
		}
		if balance < 0 {
			return E(CodeValidation, "balance must not be negative")
		}
		p := r.Player(playerID)
		if p == nil {
			return E(CodePlayerNotFound, "player %s not found", playerID)
		}
		p.Balance = balance
		return nil
	})
}

// Kick removes a non-host player. Host-only, lobby-only. Returns the
// kicked player's socket so the connection layer can detach it.
func (s *Session) Kick(ctx context.Context, roomID, hostSocketID, playerID string) (*models.Room, string, error) {
	var kickedSocket string
	room, err := s.withRoom(ctx, roomID, func(r *models.Room) error {
		if _, err := hostBySocket(r, hostSocketID); err != nil {
			return err
		}
		if r.Phase != models.PhaseLobby {
			return E(CodeInvalidPhase, "players can only be kicked in the lobby")
		}
		if playerID == r.HostID {
			return E(CodeValidation, "the host cannot be kicked")
		}
		for i, p := range r.Players {
			if p.ID == playerID {
				kickedSocket = p.SocketID
				r.Players = append(r.Players[:i], r.Players[i+1:]...)
				return nil
			}
		}
		return E(CodePlayerNotFound, "player %s not found", playerID)
	})
	if err != nil {
		return nil, "", err
	}
	if kickedSocket != "" {
		if err := s.store.RemoveSocket(ctx, kickedSocket); err != nil {
			s.log.Warnf("room %s: drop socket %s: %v", roomID, kickedSocket, err)
		}
	}
	return room, kickedSocket, nil
}

// SetReady flips a player's readiness. Once ready, the ticket is locked.
func (s *Session) SetReady(ctx context.Context, roomID, socketID string, ready bool) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		if r.Phase != models.PhaseLobby {
			return E(CodeInvalidPhase, "readiness can only change in the lobby")
		}
		p := r.PlayerBySocket(socketID)
		if p == nil {
			return E(CodePlayerNotFound, "player not found in room %s", roomID)
		}
		p.Ready = ready
		return nil
	})
}

// RerollTicket regenerates a player's ticket. Lobby-only, blocked once
// the player marked ready.
func (s *Session) RerollTicket(ctx context.Context, roomID, socketID string) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		if r.Phase != models.PhaseLobby {
			return E(CodeInvalidPhase, "tickets can only be rerolled in the lobby")
		}
		p := r.PlayerBySocket(socketID)
		if p == nil {
			return E(CodePlayerNotFound, "player not found in room %s", roomID)
		}
		if p.Ready {
			return E(CodeValidation, "ticket is locked once ready")
		}
		ticket, err := game.Generate()
		if err != nil {
			return err
		}
		p.Ticket = ticket
		p.Marked = models.Marks{}
		return nil
	})
}

// StartGame moves LOBBY -> PLAYING: everyone ready, everyone funded,
// bets deducted atomically, pre-round balances recorded.
func (s *Session) StartGame(ctx context.Context, roomID, socketID string) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		if _, err := hostBySocket(r, socketID); err != nil {
			return err
		}
		if r.Phase != models.PhaseLobby {
			return E(CodeInvalidPhase, "game already started")
		}
		for _, p := range r.Players {
			if !p.Ready {
				return E(CodeNotReadyAll, "%s is not ready", p.Name)
			}
		}
		if r.Bet > 0 {
			for _, p := range r.Players {
				if p.Balance < r.Bet {
					return E(CodeInsufficientBalance, "%s cannot cover the bet of %d", p.Name, r.Bet)
				}
			}
		}
		for _, p := range r.Players {
			p.PreRoundBalance = p.Balance
			p.Balance -= r.Bet
			p.RespondedTurn = 0
		}
		r.Winner = nil
		r.Game = &models.GameState{
			TurnID:    0,
			Responses: make(map[string]models.Response),
		}
		r.Phase = models.PhasePlaying
		return nil
	})
}

// Draw advances to the next turn with a fresh uniformly drawn number.
// An empty socketID marks a system draw from the turn coordinator; human
// draws are host-only. Any turn after the first requires every player to
// have answered the current one.
func (s *Session) Draw(ctx context.Context, roomID, socketID string) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		if socketID != "" {
			if _, err := hostBySocket(r, socketID); err != nil {
				return err
			}
		}
		if r.Phase != models.PhasePlaying {
			return E(CodeInvalidPhase, "room %s is not playing", roomID)
		}
		g := r.Game
		if g.TurnID > 0 {
			if pending := r.Pending(); len(pending) > 0 {
				names := make([]string, len(pending))
				for i, p := range pending {
					names[i] = p.Name
				}
				return E(CodeWaitingPlayers, "waiting on players: %s", strings.Join(names, ", "))
			}
		}
		n, ok := game.DrawNumber(g.Drawn)
		if !ok {
			return E(CodeValidation, "all %d numbers have been drawn", models.MaxNumber)
		}
		g.TurnID++
		g.Current = n
		g.Drawn = append(g.Drawn, n)
		g.Responses = make(map[string]models.Response)
		for _, p := range r.Players {
			p.RespondedTurn = 0
		}
		return nil
	})
}

// turnGuards checks the shared mark/no-number preconditions.
func turnGuards(r *models.Room, socketID string, turnID int) (*models.Player, error) {
	if r.Phase != models.PhasePlaying {
		return nil, E(CodeInvalidPhase, "room %s is not playing", r.ID)
	}
	p := r.PlayerBySocket(socketID)
	if p == nil {
		return nil, E(CodePlayerNotFound, "player not found in room %s", r.ID)
	}
	g := r.Game
	if g.TurnID == 0 || turnID != g.TurnID {
		return nil, E(CodeTurnNotActive, "turn %d is not active", turnID)
	}
	if p.RespondedTurn == g.TurnID {
		return nil, E(CodeAlreadyResponded, "already answered turn %d", turnID)
	}
	return p, nil
}

// Mark records that the player found the active number in a cell.
func (s *Session) Mark(ctx context.Context, roomID, socketID string, turnID, row, col int) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		p, err := turnGuards(r, socketID, turnID)
		if err != nil {
			return err
		}
		if row < 0 || row >= models.TicketRows || col < 0 || col >= models.TicketCols {
			return E(CodeValidation, "cell (%d,%d) out of range", row, col)
		}
		if p.Ticket[row][col] != r.Game.Current {
			return E(CodeInvalidMark, "cell (%d,%d) does not hold %d", row, col, r.Game.Current)
		}
		p.Marked[row][col] = true
		p.RespondedTurn = turnID
		r.Game.Responses[p.ID] = models.ResponseMarked
		r.Game.Waiting = game.WaitingBoard(r.Players)
		return nil
	})
}

// NoNumber records that the player has no unmarked occurrence of the
// active number, after verifying the claim against their ticket.
func (s *Session) NoNumber(ctx context.Context, roomID, socketID string, turnID int) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		p, err := turnGuards(r, socketID, turnID)
		if err != nil {
			return err
		}
		if game.HasUnmarked(p.Ticket, p.Marked, r.Game.Current) {
			return E(CodeHaveNumber, "%d is on your ticket", r.Game.Current)
		}
		p.RespondedTurn = turnID
		r.Game.Responses[p.ID] = models.ResponseNoNumber
		return nil
	})
}

// Bingo settles a winning claim: complete marked row, prize of
// bet x player count, phase to ENDED.
func (s *Session) Bingo(ctx context.Context, roomID, socketID string) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		if r.Phase != models.PhasePlaying {
			return E(CodeInvalidPhase, "room %s is not playing", roomID)
		}
		p := r.PlayerBySocket(socketID)
		if p == nil {
			return E(CodePlayerNotFound, "player not found in room %s", roomID)
		}
		row := game.WinningRow(p.Ticket, p.Marked)
		if row < 0 {
			return E(CodeInvalidBingoClaim, "no completed row on your ticket")
		}
		prize := r.Bet * len(r.Players)
		p.Balance += prize
		r.Phase = models.PhaseEnded
		r.Winner = &models.Winner{
			PlayerID: p.ID,
			Name:     p.Name,
			Row:      row,
			Prize:    prize,
		}
		s.log.Infof("room %s: %s wins row %d for %d", roomID, p.Name, row, prize)
		return nil
	})
}

// Restart returns an ended room to the lobby with fresh tickets.
func (s *Session) Restart(ctx context.Context, roomID, socketID string) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		if _, err := hostBySocket(r, socketID); err != nil {
			return err
		}
		if r.Phase != models.PhaseEnded {
			return E(CodeInvalidPhase, "only an ended game can restart")
		}
		r.Game = nil
		r.Winner = nil
		for _, p := range r.Players {
			ticket, err := game.Generate()
			if err != nil {
				return err
			}
			p.Ticket = ticket
			p.Marked = models.Marks{}
			p.Ready = false
			p.RespondedTurn = 0
		}
		r.Phase = models.PhaseLobby
		return nil
	})
}

// Disconnect handles a dropped transport: pending requests for the socket
// are removed, a host drop is timestamped, and the association is cleared.
// Players are never removed, so they can reconnect.
func (s *Session) Disconnect(ctx context.Context, socketID string) (*models.Room, error) {
	roomID, err := s.store.SocketRoom(ctx, socketID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	room, err := s.withRoom(ctx, roomID, func(r *models.Room) error {
		r.RemoveRequest(socketID)
		if p := r.PlayerBySocket(socketID); p != nil && p.IsHost {
			now := time.Now()
			r.HostDisconnectedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveSocket(ctx, socketID); err != nil {
		s.log.Warnf("drop socket %s: %v", socketID, err)
	}
	return room, nil
}

// Reconnect rebinds a previously issued player id to a new transport.
func (s *Session) Reconnect(ctx context.Context, roomID, playerID, socketID string) (*models.Room, error) {
	room, err := s.withRoom(ctx, roomID, func(r *models.Room) error {
		p := r.Player(playerID)
		if p == nil {
			return E(CodePlayerNotFound, "player %s not found in room %s", playerID, roomID)
		}
		p.SocketID = socketID
		if p.IsHost {
			r.HostDisconnectedAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.AssociateSocket(ctx, socketID, roomID, DefaultSocketTTL); err != nil {
		return nil, err
	}
	return room, nil
}

// SendMessage appends to the room chat log (capped at the last 100).
func (s *Session) SendMessage(ctx context.Context, roomID, socketID, text string) (*models.Room, error) {
	return s.withRoom(ctx, roomID, func(r *models.Room) error {
		p := r.PlayerBySocket(socketID)
		if p == nil {
			return E(CodePlayerNotFound, "player not found in room %s", roomID)
		}
		r.AddMessage(models.Message{
			PlayerID: p.ID,
			Name:     p.Name,
			Text:     text,
			SentAt:   time.Now(),
		})
		return nil
	})
}

// CleanupIdle deletes rooms idle past idleAfter or whose host has been
// gone past hostGone. Returns the number of rooms removed.
func (s *Session) CleanupIdle(ctx context.Context, idleAfter, hostGone time.Duration) (int, error) {
	rooms, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, r := range rooms {
		stale := now.Sub(r.LastActivity) > idleAfter
		abandoned := r.HostDisconnectedAt != nil && now.Sub(*r.HostDisconnectedAt) > hostGone
		if !stale && !abandoned {
			continue
		}
		if err := s.store.Delete(ctx, r.ID); err != nil {
			s.log.Warnf("cleanup room %s: %v", r.ID, err)
			continue
		}
		removed++
		s.log.Infof("cleaned up room %s (stale=%v abandoned=%v)", r.ID, stale, abandoned)
	}
	return removed, nil
}
