package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tuanpham2xx3/LOTOTET-sub000/game"
	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
	"github.com/tuanpham2xx3/LOTOTET-sub000/services"
	"github.com/tuanpham2xx3/LOTOTET-sub000/store"
)

func newSession() *services.Session {
	return services.NewSession(store.NewMemory(), zap.NewNop().Sugar(), "srv-test")
}

// approve runs the join+approve flow for one player.
func approve(t *testing.T, ctx context.Context, s *services.Session, roomID, socketID, name string, balance int) *models.Player {
	t.Helper()
	_, err := s.Join(ctx, roomID, socketID, name, balance)
	require.NoError(t, err)
	_, player, err := s.Approve(ctx, roomID, "host-sock", socketID)
	require.NoError(t, err)
	return player
}

// respond answers the current turn for one player: mark when the active
// number is on their ticket, no-number otherwise.
func respond(t *testing.T, ctx context.Context, s *services.Session, roomID, socketID string) {
	t.Helper()
	room, err := s.Store().Get(ctx, roomID)
	require.NoError(t, err)
	p := room.PlayerBySocket(socketID)
	require.NotNil(t, p)
	g := room.Game

	if r, c, ok := p.Ticket.Find(g.Current); ok {
		_, err = s.Mark(ctx, roomID, socketID, g.TurnID, r, c)
	} else {
		_, err = s.NoNumber(ctx, roomID, socketID, g.TurnID)
	}
	require.NoError(t, err)
}

func TestCreateRoom(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "chủ phòng", 100000)
	require.NoError(t, err)

	assert.Len(t, room.ID, 6)
	for _, ch := range room.ID {
		assert.NotContains(t, "0O1IL", string(ch), "ambiguous character in room code")
	}
	assert.Equal(t, models.PhaseLobby, room.Phase)
	require.Len(t, room.Players, 1)

	host := room.Players[0]
	assert.True(t, host.IsHost)
	assert.Equal(t, host.ID, room.HostID)
	assert.Equal(t, 100000, host.Balance)
	assert.NoError(t, game.Validate(host.Ticket))

	// The host's socket is associated with the room.
	roomID, err := s.Store().SocketRoom(ctx, "host-sock")
	require.NoError(t, err)
	assert.Equal(t, room.ID, roomID)
}

func TestJoinAndApprove(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)

	got, err := s.Join(ctx, room.ID, "p1-sock", "bình", 5000)
	require.NoError(t, err)
	require.Len(t, got.Requests, 1)
	assert.Equal(t, "bình", got.Requests[0].Name)

	// Approval by a non-host is rejected.
	_, _, err = s.Approve(ctx, room.ID, "p1-sock", "p1-sock")
	assert.Equal(t, services.CodePlayerNotFound, services.CodeOf(err))

	got, player, err := s.Approve(ctx, room.ID, "host-sock", "p1-sock")
	require.NoError(t, err)
	assert.Empty(t, got.Requests)
	assert.Len(t, got.Players, 2)
	assert.Equal(t, "bình", player.Name)
	assert.Equal(t, 5000, player.Balance)
	assert.False(t, player.IsHost)
	assert.NoError(t, game.Validate(player.Ticket))
}

func TestJoinSupersedesSameName(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)

	_, err = s.Join(ctx, room.ID, "old-sock", "bình", 0)
	require.NoError(t, err)
	got, err := s.Join(ctx, room.ID, "new-sock", "bình", 0)
	require.NoError(t, err)

	require.Len(t, got.Requests, 1, "resubmission must supersede the earlier request")
	assert.Equal(t, "new-sock", got.Requests[0].SocketID)
}

func TestApproveDedupesNames(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "minh", 0)
	require.NoError(t, err)

	p1 := approve(t, ctx, s, room.ID, "p1-sock", "minh", 0)
	p2 := approve(t, ctx, s, room.ID, "p2-sock", "minh", 0)

	assert.Equal(t, "minh_2", p1.Name)
	assert.Equal(t, "minh_3", p2.Name)
}

func TestRejectJoin(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	_, err = s.Join(ctx, room.ID, "p1-sock", "bình", 0)
	require.NoError(t, err)

	got, err := s.Reject(ctx, room.ID, "host-sock", "p1-sock")
	require.NoError(t, err)
	assert.Empty(t, got.Requests)

	_, err = s.Reject(ctx, room.ID, "host-sock", "p1-sock")
	assert.Equal(t, services.CodeRequestNotFound, services.CodeOf(err))
}

func TestJoinOutsideLobby(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	_, err = s.SetReady(ctx, room.ID, "host-sock", true)
	require.NoError(t, err)
	_, err = s.StartGame(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	_, err = s.Join(ctx, room.ID, "late-sock", "trễ", 0)
	assert.Equal(t, services.CodeInvalidPhase, services.CodeOf(err))
}

func TestKickGuards(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	p1 := approve(t, ctx, s, room.ID, "p1-sock", "bình", 0)

	// Non-host cannot kick.
	_, _, err = s.Kick(ctx, room.ID, "p1-sock", room.HostID)
	assert.Equal(t, services.CodeNotHost, services.CodeOf(err))

	// The host cannot be kicked.
	_, _, err = s.Kick(ctx, room.ID, "host-sock", room.HostID)
	assert.Equal(t, services.CodeValidation, services.CodeOf(err))

	got, kickedSocket, err := s.Kick(ctx, room.ID, "host-sock", p1.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1-sock", kickedSocket)
	assert.Len(t, got.Players, 1)
}

func TestStartGameRequiresReady(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	approve(t, ctx, s, room.ID, "p1-sock", "bình", 0)
	_, err = s.SetReady(ctx, room.ID, "host-sock", true)
	require.NoError(t, err)

	_, err = s.StartGame(ctx, room.ID, "host-sock")
	assert.Equal(t, services.CodeNotReadyAll, services.CodeOf(err))
}

func TestStartGameInsufficientBalance(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 100000)
	require.NoError(t, err)
	approve(t, ctx, s, room.ID, "p1-sock", "bình", 500)

	_, err = s.SetBet(ctx, room.ID, "host-sock", 10000)
	require.NoError(t, err)
	for _, sock := range []string{"host-sock", "p1-sock"} {
		_, err = s.SetReady(ctx, room.ID, sock, true)
		require.NoError(t, err)
	}

	_, err = s.StartGame(ctx, room.ID, "host-sock")
	assert.Equal(t, services.CodeInsufficientBalance, services.CodeOf(err))

	// A failed start must not touch any balance.
	got, err := s.Store().Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseLobby, got.Phase)
	assert.Equal(t, 100000, got.Players[0].Balance)
	assert.Equal(t, 500, got.Players[1].Balance)
}

func TestDrawUniqueness(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	_, err = s.SetReady(ctx, room.ID, "host-sock", true)
	require.NoError(t, err)
	_, err = s.StartGame(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	seen := make(map[int]bool)
	for i := 0; i < models.MaxNumber; i++ {
		got, err := s.Draw(ctx, room.ID, "host-sock")
		require.NoError(t, err)
		n := got.Game.Current
		assert.False(t, seen[n], "number %d drawn twice", n)
		seen[n] = true
		respond(t, ctx, s, room.ID, "host-sock")
	}

	_, err = s.Draw(ctx, room.ID, "host-sock")
	require.Error(t, err, "draw after the universe is exhausted")
}

func TestDrawWaitsForPending(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	approve(t, ctx, s, room.ID, "p1-sock", "bình", 0)
	for _, sock := range []string{"host-sock", "p1-sock"} {
		_, err = s.SetReady(ctx, room.ID, sock, true)
		require.NoError(t, err)
	}
	_, err = s.StartGame(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	// First draw needs no responses.
	_, err = s.Draw(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	// Second draw is blocked while anyone is pending, naming them.
	respond(t, ctx, s, room.ID, "host-sock")
	_, err = s.Draw(ctx, room.ID, "host-sock")
	require.Error(t, err)
	assert.Equal(t, services.CodeWaitingPlayers, services.CodeOf(err))
	assert.Contains(t, err.Error(), "bình")

	respond(t, ctx, s, room.ID, "p1-sock")
	_, err = s.Draw(ctx, room.ID, "host-sock")
	assert.NoError(t, err)
}

func TestTurnGuards(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	_, err = s.SetReady(ctx, room.ID, "host-sock", true)
	require.NoError(t, err)
	_, err = s.StartGame(ctx, room.ID, "host-sock")
	require.NoError(t, err)
	got, err := s.Draw(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	current := got.Game.Current
	host := got.Players[0]

	// Stale turn id.
	_, err = s.NoNumber(ctx, room.ID, "host-sock", 99)
	assert.Equal(t, services.CodeTurnNotActive, services.CodeOf(err))

	// Marking a cell that doesn't hold the active number.
	var wrongRow, wrongCol int
	for r := 0; r < models.TicketRows; r++ {
		for c := 0; c < models.TicketCols; c++ {
			if host.Ticket[r][c] != 0 && host.Ticket[r][c] != current {
				wrongRow, wrongCol = r, c
			}
		}
	}
	_, err = s.Mark(ctx, room.ID, "host-sock", 1, wrongRow, wrongCol)
	assert.Equal(t, services.CodeInvalidMark, services.CodeOf(err))

	// A fake no-number claim while the number is on the ticket.
	if r, c, ok := host.Ticket.Find(current); ok {
		_, err = s.NoNumber(ctx, room.ID, "host-sock", 1)
		assert.Equal(t, services.CodeHaveNumber, services.CodeOf(err))
		_, err = s.Mark(ctx, room.ID, "host-sock", 1, r, c)
		require.NoError(t, err)
	} else {
		_, err = s.NoNumber(ctx, room.ID, "host-sock", 1)
		require.NoError(t, err)
	}

	// Answering twice.
	_, err = s.NoNumber(ctx, room.ID, "host-sock", 1)
	assert.Equal(t, services.CodeAlreadyResponded, services.CodeOf(err))
}

func TestBingoScenario(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "chủ", 100000)
	require.NoError(t, err)
	approve(t, ctx, s, room.ID, "p1-sock", "bình", 100000)
	approve(t, ctx, s, room.ID, "p2-sock", "cúc", 100000)

	_, err = s.SetBet(ctx, room.ID, "host-sock", 10000)
	require.NoError(t, err)

	sockets := []string{"host-sock", "p1-sock", "p2-sock"}
	for _, sock := range sockets {
		_, err = s.SetReady(ctx, room.ID, sock, true)
		require.NoError(t, err)
	}

	got, err := s.StartGame(ctx, room.ID, "host-sock")
	require.NoError(t, err)
	assert.Equal(t, models.PhasePlaying, got.Phase)
	for _, p := range got.Players {
		assert.Equal(t, 90000, p.Balance, "bet deducted at start")
		assert.Equal(t, 100000, p.PreRoundBalance)
	}

	// Play until somebody completes a row. Every number is unique, so at
	// most 90 turns are needed.
	var winnerSocket string
	for turn := 0; turn < models.MaxNumber && winnerSocket == ""; turn++ {
		_, err = s.Draw(ctx, room.ID, "host-sock")
		require.NoError(t, err)
		for _, sock := range sockets {
			respond(t, ctx, s, room.ID, sock)
		}
		got, err = s.Store().Get(ctx, room.ID)
		require.NoError(t, err)
		for _, p := range got.Players {
			if game.WinningRow(p.Ticket, p.Marked) >= 0 {
				winnerSocket = p.SocketID
				break
			}
		}
	}
	require.NotEmpty(t, winnerSocket, "someone must complete a row eventually")

	got, err = s.Bingo(ctx, room.ID, winnerSocket)
	require.NoError(t, err)

	assert.Equal(t, models.PhaseEnded, got.Phase)
	require.NotNil(t, got.Winner)
	assert.Equal(t, 30000, got.Winner.Prize, "bet x player count")

	winner := got.PlayerBySocket(winnerSocket)
	require.NotNil(t, winner)
	assert.Equal(t, winner.ID, got.Winner.PlayerID)
	// Net win over the pre-round balance: prize minus own bet.
	assert.Equal(t, winner.PreRoundBalance+20000, winner.Balance)
	for _, p := range got.Players {
		if p.ID != winner.ID {
			assert.Equal(t, p.PreRoundBalance-10000, p.Balance)
		}
	}

	// No further claims once the phase moved.
	_, err = s.Bingo(ctx, room.ID, "host-sock")
	assert.Equal(t, services.CodeInvalidPhase, services.CodeOf(err))
}

func TestBingoRejectsIncompleteRow(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	_, err = s.SetReady(ctx, room.ID, "host-sock", true)
	require.NoError(t, err)
	_, err = s.StartGame(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	_, err = s.Bingo(ctx, room.ID, "host-sock")
	assert.Equal(t, services.CodeInvalidBingoClaim, services.CodeOf(err))
}

func TestRestart(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	_, err = s.SetReady(ctx, room.ID, "host-sock", true)
	require.NoError(t, err)
	_, err = s.StartGame(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	// Restart only applies to an ended game.
	_, err = s.Restart(ctx, room.ID, "host-sock")
	assert.Equal(t, services.CodeInvalidPhase, services.CodeOf(err))

	// Mark everything and claim to reach ENDED.
	for i := 0; i < models.MaxNumber; i++ {
		_, err := s.Draw(ctx, room.ID, "host-sock")
		require.NoError(t, err)
		respond(t, ctx, s, room.ID, "host-sock")
		got, err := s.Store().Get(ctx, room.ID)
		require.NoError(t, err)
		if game.WinningRow(got.Players[0].Ticket, got.Players[0].Marked) >= 0 {
			break
		}
	}
	_, err = s.Bingo(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	got, err := s.Restart(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	assert.Equal(t, models.PhaseLobby, got.Phase)
	assert.Nil(t, got.Game)
	assert.Nil(t, got.Winner)
	for _, p := range got.Players {
		assert.False(t, p.Ready)
		assert.Equal(t, models.Marks{}, p.Marked)
		assert.NoError(t, game.Validate(p.Ticket))
	}
}

func TestDisconnectAndReconnect(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 7500)
	require.NoError(t, err)
	p1 := approve(t, ctx, s, room.ID, "p1-sock", "bình", 2500)
	_, err = s.SetReady(ctx, room.ID, "p1-sock", true)
	require.NoError(t, err)

	before, err := s.Store().Get(ctx, room.ID)
	require.NoError(t, err)
	snapshot := before.Player(p1.ID)

	// Disconnect keeps the player seated.
	got, err := s.Disconnect(ctx, "p1-sock")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotNil(t, got.Player(p1.ID))
	_, err = s.Store().SocketRoom(ctx, "p1-sock")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Reconnecting with the issued player id restores identical state.
	got, err = s.Reconnect(ctx, room.ID, p1.ID, "p1-new-sock")
	require.NoError(t, err)
	resumed := got.Player(p1.ID)
	require.NotNil(t, resumed)
	assert.Equal(t, "p1-new-sock", resumed.SocketID)
	assert.Equal(t, snapshot.Ticket, resumed.Ticket)
	assert.Equal(t, snapshot.Marked, resumed.Marked)
	assert.Equal(t, snapshot.Balance, resumed.Balance)
	assert.Equal(t, snapshot.Ready, resumed.Ready)

	// Unknown player ids are rejected.
	_, err = s.Reconnect(ctx, room.ID, "no-such-player", "x-sock")
	assert.Equal(t, services.CodePlayerNotFound, services.CodeOf(err))
}

func TestHostDisconnectTimestamp(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)

	got, err := s.Disconnect(ctx, "host-sock")
	require.NoError(t, err)
	require.NotNil(t, got.HostDisconnectedAt)

	got, err = s.Reconnect(ctx, room.ID, room.HostID, "host-new-sock")
	require.NoError(t, err)
	assert.Nil(t, got.HostDisconnectedAt)
}

func TestMessageLogCap(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)

	for i := 0; i < models.MaxMessages+5; i++ {
		_, err = s.SendMessage(ctx, room.ID, "host-sock", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	got, err := s.Store().Get(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, models.MaxMessages)
	assert.Equal(t, fmt.Sprintf("msg %d", models.MaxMessages+4), got.Messages[len(got.Messages)-1].Text)
	assert.Equal(t, "msg 5", got.Messages[0].Text)
}

func TestCleanupIdle(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	fresh, err := s.CreateRoom(ctx, "other-sock", "bình", 0)
	require.NoError(t, err)

	// Age the first room far past the idle threshold.
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, s.Store().TouchActivity(ctx, room.ID, old))

	removed, err := s.CleanupIdle(ctx, 2*time.Hour, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.Store().Get(ctx, room.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Store().Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestSetBetGuards(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	approve(t, ctx, s, room.ID, "p1-sock", "bình", 1000)

	_, err = s.SetBet(ctx, room.ID, "p1-sock", 100)
	assert.Equal(t, services.CodeNotHost, services.CodeOf(err))

	_, err = s.SetBet(ctx, room.ID, "host-sock", 100)
	require.NoError(t, err)

	for _, sock := range []string{"host-sock", "p1-sock"} {
		_, err = s.SetReady(ctx, room.ID, sock, true)
		require.NoError(t, err)
	}
	_, err = s.SetBalance(ctx, room.ID, "host-sock", room.HostID, 1000)
	require.NoError(t, err)
	_, err = s.StartGame(ctx, room.ID, "host-sock")
	require.NoError(t, err)

	_, err = s.SetBet(ctx, room.ID, "host-sock", 500)
	assert.Equal(t, services.CodeInvalidPhase, services.CodeOf(err))
}

func TestRerollTicket(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)
	before := room.Players[0].Ticket

	got, err := s.RerollTicket(ctx, room.ID, "host-sock")
	require.NoError(t, err)
	after := got.Players[0].Ticket
	assert.NoError(t, game.Validate(after))
	assert.NotEqual(t, before, after, "reroll should produce a different ticket")

	_, err = s.SetReady(ctx, room.ID, "host-sock", true)
	require.NoError(t, err)
	_, err = s.RerollTicket(ctx, room.ID, "host-sock")
	assert.Equal(t, services.CodeValidation, services.CodeOf(err), "ticket locked once ready")
}

func TestUnknownRoom(t *testing.T) {
	s := newSession()
	ctx := context.Background()

	_, err := s.Join(ctx, "ZZZZZZ", "sock", "ai đó", 0)
	assert.Equal(t, services.CodeRoomNotFound, services.CodeOf(err))

	_, err = s.Draw(ctx, "ZZZZZZ", "sock")
	assert.Equal(t, services.CodeRoomNotFound, services.CodeOf(err))
}
