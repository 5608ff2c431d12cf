// Package dashboard builds campaign overview data from the static JSON
// files a league organizer maintains alongside the tracker. The output
// is plain data; rendering belongs to the companion web viewer.
package dashboard

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Mission statuses as they appear in missions.json.
const (
	StatusUpcoming = "upcoming"
	StatusCurrent  = "current"
	StatusFinished = "finished"
)

// Campaign is the campaign header from campaign.json.
type Campaign struct {
	Name        string `json:"name"`
	System      string `json:"system"`
	Organizer   string `json:"organizer"`
	PointsLimit uint   `json:"pointsLimit"`
}

// Mission is a single campaign mission from missions.json.
type Mission struct {
	Number       int      `json:"number"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Winner       string   `json:"winner"`
	Participants []string `json:"participants"`
}

// Standing is one row of the campaign leaderboard.
type Standing struct {
	Player string `json:"player"`
	Wins   int    `json:"wins"`
	Played int    `json:"played"`
}

// CampaignSnapshot is the assembled overview for the dashboard.
type CampaignSnapshot struct {
	Campaign      Campaign  `json:"campaign"`
	Standings     []Standing `json:"standings"`
	Missions      []Mission  `json:"missions"`
	Current       *Mission   `json:"current,omitempty"`
	Upcoming      []Mission  `json:"upcoming"`
	TotalMissions int        `json:"totalMissions"`
	FinishedCount int        `json:"finishedCount"`
}

// LoadCampaign reads the campaign header from a JSON file.
func LoadCampaign(path string) (Campaign, error) {
	var c Campaign
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("error reading campaign file: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("error unmarshalling campaign file: %w", err)
	}
	return c, nil
}

// LoadMissions reads the mission list from a JSON file.
func LoadMissions(path string) ([]Mission, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading missions file: %w", err)
	}
	var missions []Mission
	if err := json.Unmarshal(raw, &missions); err != nil {
		return nil, fmt.Errorf("error unmarshalling missions file: %w", err)
	}
	return missions, nil
}

// BuildSnapshot assembles the campaign overview. Standings count only
// finished missions and sort by wins descending, ties broken by player
// name. Missions are ordered by number.
func BuildSnapshot(campaign Campaign, missions []Mission) CampaignSnapshot {
	ordered := make([]Mission, len(missions))
	copy(ordered, missions)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Number < ordered[j].Number
	})

	wins := map[string]int{}
	played := map[string]int{}
	finished := 0

	snapshot := CampaignSnapshot{
		Campaign:      campaign,
		Missions:      ordered,
		Upcoming:      []Mission{},
		TotalMissions: len(ordered),
	}

	for i := range ordered {
		m := ordered[i]
		switch m.Status {
		case StatusFinished:
			finished++
			for _, p := range m.Participants {
				played[p]++
			}
			if m.Winner != "" {
				wins[m.Winner]++
			}
		case StatusCurrent:
			if snapshot.Current == nil {
				snapshot.Current = &ordered[i]
			}
		case StatusUpcoming:
			snapshot.Upcoming = append(snapshot.Upcoming, m)
		}
	}
	snapshot.FinishedCount = finished

	standings := make([]Standing, 0, len(played))
	for player, n := range played {
		standings = append(standings, Standing{
			Player: player,
			Wins:   wins[player],
			Played: n,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Wins != standings[j].Wins {
			return standings[i].Wins > standings[j].Wins
		}
		return standings[i].Player < standings[j].Player
	})
	snapshot.Standings = standings

	return snapshot
}
