package streaming

import (
	"encoding/json"

	"github.com/oprtools/armytracker/internal/model"
)

// Message type constants matching the live feed protocol.
const (
	TypeStartBattle    = "start_battle"
	TypeEndBattle      = "end_battle"
	TypeAddUnit        = "add_unit"
	TypeAddObjective   = "add_objective"
	TypeWoundEvent     = "wound_event"
	TypeKillEvent      = "kill_event"
	TypeTokenEvent     = "token_event"
	TypeMoveEvent      = "move_event"
	TypeRoundEvent     = "round_event"
	TypeObjectiveState = "objective_state"
	TypePerformance    = "performance"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartBattlePayload carries battle and campaign data.
type StartBattlePayload struct {
	Battle   *model.Battle   `json:"battle"`
	Campaign *model.Campaign `json:"campaign"`
}
