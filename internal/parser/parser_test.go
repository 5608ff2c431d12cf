package parser

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprtools/armytracker/internal/model"
)

func newTestParser() *Parser {
	p := NewParser(slog.Default(), "1.0.0", "2.0.0")
	return p
}

func TestNewParser(t *testing.T) {
	p := newTestParser()
	require.NotNil(t, p)
}

func TestParseUintFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"float with decimals", "32.00", 32, false},
		{"float with trailing zero", "30.0", 30, false},
		{"large integer", "65535", 65535, false},
		{"large float", "65535.00", 65535, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUintFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSetBattle(t *testing.T) {
	p := newTestParser()
	assert.Equal(t, uint(0), p.getBattleID())

	b := &model.Battle{}
	b.ID = 42
	p.SetBattle(b)
	assert.Equal(t, uint(42), p.getBattleID())
}

func TestParseBattle(t *testing.T) {
	p := newTestParser()

	campaignJSON := `{"name":"Summer League","system":"grimdark-future","pointsLimit":2000,"organizer":"Sam"}`
	battleJSON := `{"battleName":"Breakthrough at Dawn","missionName":"Breakthrough","system":"grimdark-future","pointsLimit":2000,"tableWidth":72,"tableHeight":48,"tag":"league","participants":[["Alice","Prime Brothers"],["Bob","Robot Legions"]]}`

	battle, campaign, err := p.ParseBattle([]string{campaignJSON, battleJSON})
	require.NoError(t, err)

	assert.Equal(t, "Summer League", campaign.Name)
	assert.Equal(t, "grimdark-future", campaign.System)
	assert.Equal(t, uint(2000), campaign.PointsLimit)
	assert.Equal(t, "Sam", campaign.Organizer)

	assert.Equal(t, "Breakthrough at Dawn", battle.BattleName)
	assert.Equal(t, "Breakthrough", battle.MissionName)
	assert.Equal(t, "grimdark-future", battle.System)
	assert.Equal(t, uint(2000), battle.PointsLimit)
	assert.Equal(t, float64(72), battle.TableWidth)
	assert.Equal(t, float64(48), battle.TableHeight)
	assert.Equal(t, "league", battle.Tag)
	assert.JSONEq(t, `[["Alice","Prime Brothers"],["Bob","Robot Legions"]]`, string(battle.Participants))
	assert.False(t, battle.StartTime.IsZero())
	assert.Equal(t, "1.0.0", battle.TrackerVersion)
	assert.Equal(t, "2.0.0", battle.ClientVersion)
}

func TestParseBattle_BadJSON(t *testing.T) {
	p := newTestParser()

	_, _, err := p.ParseBattle([]string{"not json", "{}"})
	assert.Error(t, err)

	_, _, err = p.ParseBattle([]string{"{}", "not json"})
	assert.Error(t, err)
}

func TestParseIntFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"negative integer", "-1", -1, false},
		{"float with decimals", "32.00", 32, false},
		{"negative float", "-1.00", -1, false},
		{"large integer", "65535", 65535, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

