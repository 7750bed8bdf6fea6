package court

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Character is a single member of the court, parsed from the game's
// exported log data. Fields are mutated in place by action scripts.
type Character struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	House       string          `json:"house,omitempty"`
	Culture     string          `json:"culture,omitempty"`
	Faith       string          `json:"faith,omitempty"`
	Sex         string          `json:"sex,omitempty"`
	Age         int             `json:"age,omitempty"`
	Gold        int             `json:"gold,omitempty"`
	Personality string          `json:"personality,omitempty"`
	Landed      bool            `json:"landed,omitempty"`
	Traits      []string        `json:"traits,omitempty"`
	Opinions    map[int64]int   `json:"opinions,omitempty"` // opinion of other characters, by id
	Memories    []string        `json:"memories,omitempty"`
}

func (c *Character) HasTrait(trait string) bool {
	return slices.Contains(c.Traits, trait)
}

func (c *Character) AddTrait(trait string) {
	if !c.HasTrait(trait) {
		c.Traits = append(c.Traits, trait)
	}
}

func (c *Character) RemoveTrait(trait string) {
	c.Traits = slices.DeleteFunc(c.Traits, func(t string) bool { return t == trait })
}

// OpinionOf returns this character's opinion of another character.
// Unknown characters default to 0.
func (c *Character) OpinionOf(id int64) int {
	return c.Opinions[id]
}

func (c *Character) SetOpinion(id int64, value int) {
	if c.Opinions == nil {
		c.Opinions = make(map[int64]int)
	}
	c.Opinions[id] = value
}

func (c *Character) ImproveOpinion(id int64, delta int) {
	c.SetOpinion(id, c.OpinionOf(id)+delta)
}

func (c *Character) AddMemory(memory string) {
	c.Memories = append(c.Memories, memory)
}

// GameData is the shared aggregate of everything known about the running
// game session. Characters keeps strict insertion order: the game engine
// addresses characters by their position in this list, so it must never
// be re-sorted.
type GameData struct {
	SessionID  uuid.UUID    `json:"session_id"`
	PlayerID   int64        `json:"player_id"`
	Date       string       `json:"date,omitempty"`
	Characters []*Character `json:"characters"`
}

func NewGameData() *GameData {
	return &GameData{
		SessionID:  uuid.New(),
		Characters: make([]*Character, 0),
	}
}

// Character returns the character with the given id, or nil.
func (g *GameData) Character(id int64) *Character {
	for _, c := range g.Characters {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// AddCharacter appends a character, preserving insertion order. Adding a
// duplicate id is a caller bug.
func (g *GameData) AddCharacter(c *Character) error {
	if g.Character(c.ID) != nil {
		return fmt.Errorf("character %d already present", c.ID)
	}
	g.Characters = append(g.Characters, c)
	return nil
}

// Player returns the player-controlled character, or nil.
func (g *GameData) Player() *Character {
	return g.Character(g.PlayerID)
}

// Clone returns a deep copy of the aggregate. Used to run dry-run
// previews without persisting mutations.
func (g *GameData) Clone() *GameData {
	clone := &GameData{
		SessionID:  g.SessionID,
		PlayerID:   g.PlayerID,
		Date:       g.Date,
		Characters: make([]*Character, 0, len(g.Characters)),
	}
	for _, c := range g.Characters {
		cc := *c
		cc.Traits = slices.Clone(c.Traits)
		cc.Memories = slices.Clone(c.Memories)
		if c.Opinions != nil {
			cc.Opinions = maps.Clone(c.Opinions)
		}
		clone.Characters = append(clone.Characters, &cc)
	}
	return clone
}
