package models

import "time"

// Player is a seated room member. The id is stable across reconnects;
// only SocketID changes when the transport does.
type Player struct {
	ID              string `json:"id"`
	SocketID        string `json:"socketId"`
	Name            string `json:"name"`
	Balance         int    `json:"balance"`
	IsHost          bool   `json:"isHost"`
	Ready           bool   `json:"ready"`
	Ticket          Ticket `json:"ticket"`
	Marked          Marks  `json:"marked"`
	RespondedTurn   int    `json:"respondedTurn"`
	PreRoundBalance int    `json:"preRoundBalance"`
}

// JoinRequest lives between a join attempt and the host's decision.
type JoinRequest struct {
	SocketID  string    `json:"socketId"`
	Name      string    `json:"name"`
	Balance   int       `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
}
