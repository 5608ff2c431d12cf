package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/pkg/streaming"
)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for start_battle/end_battle.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			// Ack start_battle and end_battle.
			if env.Type == streaming.TypeStartBattle || env.Type == streaming.TypeEndBattle {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndBattle(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"})
	require.NoError(t, b.Init())
	defer b.Close()

	battle := &model.Battle{BattleName: "Breakthrough at Dawn", Tag: "league"}
	campaign := &model.Campaign{Name: "Summer League"}
	require.NoError(t, b.StartBattle(battle, campaign))

	require.NoError(t, b.EndBattle())

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartBattle, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndBattle, msgs[len(msgs)-1].Type)
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	battle := &model.Battle{BattleName: "B"}
	campaign := &model.Campaign{Name: "C"}
	require.NoError(t, b.StartBattle(battle, campaign))

	require.NoError(t, b.AddUnit(&model.Unit{SelectionID: "unit-01", Name: "Battle Brothers"}))
	require.NoError(t, b.RecordWoundEvent(&model.WoundEvent{UnitSelectionID: "unit-01", Damage: 1}))
	require.NoError(t, b.RecordSpellTokenEvent(&model.SpellTokenEvent{UnitSelectionID: "wizard-01", Delta: 3}))
	require.NoError(t, b.RecordMoveEvent(&model.MoveEvent{UnitSelectionID: "unit-01", Action: "advance"}))
	require.NoError(t, b.RecordRoundEvent(&model.RoundEvent{Round: 1}))
	require.NoError(t, b.RecordKillEvent(&model.KillEvent{UnitSelectionID: "unit-01"}))

	require.NoError(t, b.EndBattle())

	// Give a moment for all messages to arrive at server.
	time.Sleep(50 * time.Millisecond)

	msgs := ml.all()

	types := make(map[string]int)
	for _, m := range msgs {
		types[m.Type]++
	}

	assert.Equal(t, 1, types[streaming.TypeStartBattle])
	assert.Equal(t, 1, types[streaming.TypeEndBattle])
	assert.Equal(t, 1, types[streaming.TypeAddUnit])
	assert.Equal(t, 1, types[streaming.TypeWoundEvent])
	assert.Equal(t, 1, types[streaming.TypeTokenEvent])
	assert.Equal(t, 1, types[streaming.TypeMoveEvent])
	assert.Equal(t, 1, types[streaming.TypeRoundEvent])
	assert.Equal(t, 1, types[streaming.TypeKillEvent])
}

func TestAddObjectiveAssignsID(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	m1 := &model.ObjectiveMarker{Name: "objective-left"}
	m2 := &model.ObjectiveMarker{Name: "objective-right"}

	id1, err := b.AddObjective(m1)
	require.NoError(t, err)
	id2, err := b.AddObjective(m2)
	require.NoError(t, err)

	assert.Equal(t, uint(1), id1)
	assert.Equal(t, uint(2), id2)
}

func TestEnvelopeSerialization(t *testing.T) {
	payload := streaming.StartBattlePayload{
		Battle:   &model.Battle{BattleName: "B"},
		Campaign: &model.Campaign{Name: "C"},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	env := streaming.Envelope{Type: streaming.TypeStartBattle, Payload: raw}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, streaming.TypeStartBattle, decoded.Type)

	var sp streaming.StartBattlePayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &sp))
	assert.Equal(t, "B", sp.Battle.BattleName)
	assert.Equal(t, "C", sp.Campaign.Name)
}
