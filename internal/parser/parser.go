package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"

	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/util"
)

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Table clients serialize all numbers as JSON floats.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// Parser provides pure []string -> model struct conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
	battle atomic.Pointer[model.Battle]

	// Static config set at creation time
	trackerVersion string
	clientVersion  string
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger, trackerVersion, clientVersion string) *Parser {
	p := &Parser{
		logger:         logger,
		trackerVersion: trackerVersion,
		clientVersion:  clientVersion,
	}
	return p
}

// SetClientVersion records the table client version reported during the
// connection handshake. Stamped onto battles parsed after it.
func (p *Parser) SetClientVersion(v string) {
	p.clientVersion = v
}

// SetBattle sets the current battle for BattleID lookups
func (p *Parser) SetBattle(b *model.Battle) {
	p.battle.Store(b)
}

func (p *Parser) getBattleID() uint {
	b := p.battle.Load()
	if b == nil {
		return 0
	}
	return b.ID
}

// ParseBattle parses battle and campaign data from raw args.
// Returns parsed battle + campaign. NO DB operations, NO cache resets, NO callbacks.
func (p *Parser) ParseBattle(data []string) (model.Battle, model.Campaign, error) {
	var battle model.Battle
	var campaign model.Campaign

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	// unmarshal data[0] -> campaign
	err := json.Unmarshal([]byte(data[0]), &campaign)
	if err != nil {
		return battle, campaign, fmt.Errorf("error unmarshalling campaign data: %w", err)
	}

	// unmarshal data[1] -> battle (via temp map for participants extraction)
	battleTemp := map[string]any{}
	if err = json.Unmarshal([]byte(data[1]), &battleTemp); err != nil {
		return battle, campaign, fmt.Errorf("error unmarshalling battle data: %w", err)
	}

	// participants come in as [player, armyName] pairs, stored as raw JSON
	if participants, ok := battleTemp["participants"]; ok {
		raw, err := json.Marshal(participants)
		if err != nil {
			return battle, campaign, fmt.Errorf("error remarshalling participants: %w", err)
		}
		battle.Participants = datatypes.JSON(raw)
	}

	battle.StartTime = time.Now()

	battle.BattleName = battleTemp["battleName"].(string)
	battle.MissionName = battleTemp["missionName"].(string)
	battle.System = battleTemp["system"].(string)
	battle.Tag = battleTemp["tag"].(string)
	battle.PointsLimit = uint(battleTemp["pointsLimit"].(float64))
	battle.TableWidth = battleTemp["tableWidth"].(float64)
	battle.TableHeight = battleTemp["tableHeight"].(float64)

	// received at client init and saved to local memory
	battle.TrackerVersion = p.trackerVersion
	battle.ClientVersion = p.clientVersion

	p.logger.Debug("Parsed battle data",
		"battleName", battle.BattleName,
		"campaignName", campaign.Name)

	return battle, campaign, nil
}
