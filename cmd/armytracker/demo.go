package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/oprtools/armytracker/internal/dispatcher"
)

// dispatchDemoEvent dispatches an event through the dispatcher for demo/test purposes
func dispatchDemoEvent(command string, args []string) {
	if eventDispatcher == nil {
		return
	}
	eventDispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
}

func populateDemoData() {
	var (
		numBattles        int = 2
		numRounds         int = 4
		numSquadsPerArmy  int = 4
		woundsPerRound    int = 6
		tableWidth            = 72.0
		tableHeight           = 48.0

		players = []string{"Alice", "Bob"}

		armyNames = []string{"Sacred Crusaders", "Rotting Horde"}

		squadNames = []string{
			"Battle Brothers", "Assault Brothers", "Support Brothers",
			"Plague Walkers", "Rot Champions", "Swarm Riders",
			"Storm Guard", "Iron Sentinels",
		}

		heroNames = []string{
			"Captain Aurelius", "High Wizard Malik",
			"Plague Lord Vex", "Witch Queen Sorsha",
		}

		loadouts = []string{
			`["Rifle","CCW"]`, `["Heavy Rifle"]`, `["Pistol","Energy Sword"]`,
			`["Claws"]`, `["Spear","Shield"]`,
		}

		ruleSets = [][]string{
			{}, {"Fast"}, {"Slow"}, {"Fearless"}, {"Strider"},
		}

		actions = []string{"hold", "advance", "rush", "charge"}

		spells = []string{"Fireball", "Shield of Faith", "Curse", "Smite"}

		missionNames = []string{
			"Seize Ground", "The Relic", "Breakthrough", "Hold the Line",
		}

		objectiveNames = []string{"Alpha", "Bravo", "Charlie"}
	)

	randomPos := func() string {
		return fmt.Sprintf("[%.1f,%.1f]", rand.Float64()*tableWidth, rand.Float64()*tableHeight)
	}

	for b := 0; b < numBattles; b++ {
		campaignData := map[string]any{
			"name":        "Demo Campaign",
			"system":      "grimdark-future",
			"pointsLimit": 2000,
			"organizer":   "Demo Organizer",
		}
		campaignJSON, err := json.Marshal(campaignData)
		if err != nil {
			fmt.Println(err)
		}

		battleData := map[string]any{
			"battleName":  fmt.Sprintf("Demo Battle %d", b+1),
			"missionName": missionNames[b%len(missionNames)],
			"system":      "grimdark-future",
			"pointsLimit": 2000,
			"tableWidth":  tableWidth,
			"tableHeight": tableHeight,
			"tag":         "demo",
			"participants": [][]string{
				{players[0], armyNames[0]},
				{players[1], armyNames[1]},
			},
		}
		battleJSON, err := json.Marshal(battleData)
		if err != nil {
			fmt.Println(err)
		}

		dispatchDemoEvent(":NEW:BATTLE:", []string{string(campaignJSON), string(battleJSON)})

		// objectives go down before deployment
		for _, name := range objectiveNames {
			dispatchDemoEvent(":NEW:OBJECTIVE:", []string{name, randomPos(), ""})
		}

		// deploy both armies: squads plus one caster hero each
		type demoUnit struct {
			selectionID string
			caster      bool
			modelCount  int
		}
		units := []demoUnit{}
		idCounter := 1

		for side := 0; side < 2; side++ {
			for s := 0; s < numSquadsPerArmy; s++ {
				selectionID := fmt.Sprintf("u%d", idCounter)
				idCounter++

				modelCount := 3 + rand.Intn(3)
				models := make([][]any, 0, modelCount)
				for m := 0; m < modelCount; m++ {
					tough := m == modelCount-1 // sergeant carries Tough(3)
					maxHp := 1
					if tough {
						maxHp = 3
					}
					models = append(models, []any{
						fmt.Sprintf("%s-m%d", selectionID, m+1),
						fmt.Sprintf("%s %d", squadNames[(side*numSquadsPerArmy+s)%len(squadNames)], m+1),
						maxHp,
						false,
						tough,
						loadouts[rand.Intn(len(loadouts))],
					})
				}
				modelsJSON, err := json.Marshal(models)
				if err != nil {
					fmt.Println(err)
				}
				rulesJSON, err := json.Marshal(ruleSets[rand.Intn(len(ruleSets))])
				if err != nil {
					fmt.Println(err)
				}

				dispatchDemoEvent(":NEW:UNIT:", []string{
					"0",
					selectionID,
					squadNames[(side*numSquadsPerArmy+s)%len(squadNames)],
					armyNames[side],
					players[side],
					"0",
					strconv.Itoa(modelCount),
					string(rulesJSON),
					string(modelsJSON),
					"",
				})
				units = append(units, demoUnit{selectionID: selectionID, modelCount: modelCount})
			}

			// caster hero
			heroID := fmt.Sprintf("u%d", idCounter)
			idCounter++
			heroModels := [][]any{{
				heroID + "-m1",
				heroNames[side%len(heroNames)],
				4,
				true,
				true,
				loadouts[rand.Intn(len(loadouts))],
			}}
			heroModelsJSON, err := json.Marshal(heroModels)
			if err != nil {
				fmt.Println(err)
			}
			dispatchDemoEvent(":NEW:UNIT:", []string{
				"0",
				heroID,
				heroNames[side%len(heroNames)],
				armyNames[side],
				players[side],
				strconv.Itoa(1 + rand.Intn(2)),
				"1",
				`["Hero"]`,
				string(heroModelsJSON),
				"",
			})
			units = append(units, demoUnit{selectionID: heroID, caster: true, modelCount: 1})

			// attach the hero to the first squad of its army
			dispatchDemoEvent(":JOIN:HERO:", []string{
				units[side*(numSquadsPerArmy+1)].selectionID,
				heroID,
			})
		}

		for round := 1; round <= numRounds; round++ {
			roundStr := strconv.Itoa(round)
			dispatchDemoEvent(":ROUND:", []string{roundStr})

			for _, u := range units {
				dispatchDemoEvent(":MOVE:", []string{
					roundStr,
					u.selectionID,
					actions[rand.Intn(len(actions))],
					randomPos(),
					randomPos(),
				})

				if u.caster && rand.Intn(2) == 0 {
					dispatchDemoEvent(":TOKENS:", []string{
						roundStr,
						u.selectionID,
						"-1",
						spells[rand.Intn(len(spells))],
					})
				}
			}

			for i := 0; i < woundsPerRound; i++ {
				target := units[rand.Intn(len(units))]
				source := units[rand.Intn(len(units))]
				dispatchDemoEvent(":WOUND:", []string{
					roundStr,
					target.selectionID,
					strconv.Itoa(1 + rand.Intn(3)),
					source.selectionID,
				})
			}

			for _, name := range objectiveNames {
				if rand.Intn(2) == 0 {
					dispatchDemoEvent(":OBJECTIVE:", []string{
						roundStr,
						name,
						players[rand.Intn(len(players))],
					})
				}
			}

			dispatchDemoEvent(":METRIC:", []string{
				"battle_data",
				"demo_rounds",
				"tag::battle::" + strconv.Itoa(b+1),
				"field::int::round::" + roundStr,
			})
		}

		dispatchDemoEvent(":END:BATTLE:", []string{})
	}

	// Give dispatcher time to process buffered events
	time.Sleep(2 * time.Second)
}
