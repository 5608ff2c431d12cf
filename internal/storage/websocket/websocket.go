package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams battle data over WebSocket to a live feed server.
// It implements storage.Backend but not storage.Exportable.
type Backend struct {
	conn            *connection
	cfg             Config
	nextObjectiveID atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	return &Backend{
		conn: newConnection(slog.Default()),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// StartBattle sends battle and campaign data and waits for server ack.
func (b *Backend) StartBattle(battle *model.Battle, campaign *model.Campaign) error {
	data, err := marshalEnvelope(streaming.TypeStartBattle, streaming.StartBattlePayload{Battle: battle, Campaign: campaign})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartBattle, ackTimeout)
}

// EndBattle sends end_battle and waits for server ack.
func (b *Backend) EndBattle() error {
	err := b.sendEnvelopeAndWait(streaming.TypeEndBattle, nil)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()
	b.nextObjectiveID.Store(0)

	return err
}

func (b *Backend) AddUnit(u *model.Unit) error {
	return b.sendEnvelope(streaming.TypeAddUnit, u)
}

// AddObjective assigns an auto-increment ID and sends the marker.
// Returns the assigned ID.
func (b *Backend) AddObjective(m *model.ObjectiveMarker) (uint, error) {
	id := uint(b.nextObjectiveID.Add(1))
	markerCopy := *m
	markerCopy.ID = id
	return id, b.sendEnvelope(streaming.TypeAddObjective, &markerCopy)
}

func (b *Backend) RecordWoundEvent(e *model.WoundEvent) error {
	return b.sendEnvelope(streaming.TypeWoundEvent, e)
}

func (b *Backend) RecordKillEvent(e *model.KillEvent) error {
	return b.sendEnvelope(streaming.TypeKillEvent, e)
}

func (b *Backend) RecordSpellTokenEvent(e *model.SpellTokenEvent) error {
	return b.sendEnvelope(streaming.TypeTokenEvent, e)
}

func (b *Backend) RecordMoveEvent(e *model.MoveEvent) error {
	return b.sendEnvelope(streaming.TypeMoveEvent, e)
}

func (b *Backend) RecordRoundEvent(e *model.RoundEvent) error {
	return b.sendEnvelope(streaming.TypeRoundEvent, e)
}

func (b *Backend) RecordObjectiveState(s *model.ObjectiveState) error {
	return b.sendEnvelope(streaming.TypeObjectiveState, s)
}

func (b *Backend) RecordPerformance(p *model.TrackerPerformance) error {
	return b.sendEnvelope(streaming.TypePerformance, p)
}
