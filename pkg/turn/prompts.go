package turn

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/action/schema"
	"github.com/courtvoice/courtvoice/pkg/chat"
	"github.com/courtvoice/courtvoice/pkg/court"
)

// SelectionSystemPrompt frames the model as the acting character's
// decision-maker. The reply must be a bare JSON document; any prose
// forces the healing pipeline to dig the document out.
const SelectionSystemPrompt = `You are the decision-making mind of %s, a character in a medieval court. Based on the character's personality, relationships and current situation, decide which of the available actions the character takes right now.

RULES
- Choose zero or more actions from the AVAILABLE ACTIONS list. Choosing none is valid when no action fits the moment.
- Only use actions listed below. Never invent actions.
- When an action lists eligible targets, targetCharacterId must be one of those ids. Actions without targets take null.
- Fill every required argument. Respect the ranges and options given.
- Stay true to the character: a kind character rarely imprisons, a greedy one rarely gives gold away.
- Respond with ONLY a JSON object matching the provided schema. No prose, no explanation, no markdown.

CHARACTER SHEET
%s

AVAILABLE ACTIONS
%s`

// SelectionUserPrompt nudges providers that ignore response_format.
const SelectionUserPrompt = `Decide which actions %s takes now. Reply with a single JSON object of the form {"actions": [...]} and nothing else.`

// buildMessages assembles the chat exchange for one selection request.
func buildMessages(game *court.GameData, source *court.Character, available []schema.Available) []chat.Message {
	sheet := characterSheet(game, source)
	catalog := actionCatalog(game, available)

	return []chat.Message{
		{
			Role:    chat.RoleSystem,
			Content: fmt.Sprintf(SelectionSystemPrompt, source.Name, sheet, catalog),
		},
		{
			Role:    chat.RoleUser,
			Content: fmt.Sprintf(SelectionUserPrompt, source.Name),
		},
	}
}

// characterSheet renders the acting character and their view of the
// court as JSON. Opinions are expanded to names so the model does not
// have to cross-reference ids.
func characterSheet(game *court.GameData, source *court.Character) string {
	type opinion struct {
		CharacterID int64  `json:"characterId"`
		Name        string `json:"name"`
		Opinion     int    `json:"opinion"`
	}
	type sheet struct {
		Name        string    `json:"name"`
		House       string    `json:"house,omitempty"`
		Culture     string    `json:"culture,omitempty"`
		Faith       string    `json:"faith,omitempty"`
		Sex         string    `json:"sex,omitempty"`
		Age         int       `json:"age"`
		Gold        int       `json:"gold"`
		Landed      bool      `json:"landed"`
		Personality string    `json:"personality,omitempty"`
		Traits      []string  `json:"traits,omitempty"`
		Opinions    []opinion `json:"opinions,omitempty"`
		Memories    []string  `json:"recentMemories,omitempty"`
		Date        string    `json:"currentDate,omitempty"`
	}

	s := sheet{
		Name:        source.Name,
		House:       source.House,
		Culture:     source.Culture,
		Faith:       source.Faith,
		Sex:         source.Sex,
		Age:         source.Age,
		Gold:        source.Gold,
		Landed:      source.Landed,
		Personality: source.Personality,
		Traits:      source.Traits,
		Memories:    source.Memories,
		Date:        game.Date,
	}
	for id, value := range source.Opinions {
		if c := game.Character(id); c != nil {
			s.Opinions = append(s.Opinions, opinion{CharacterID: id, Name: c.Name, Opinion: value})
		}
	}

	data, err := json.Marshal(s)
	if err != nil {
		return source.Name
	}
	return string(data)
}

// actionCatalog renders the available actions as a readable list. The
// schema repeats the constraints formally; this copy gives the model the
// prose context it actually reasons over.
func actionCatalog(game *court.GameData, available []schema.Available) string {
	var sb strings.Builder
	for _, a := range available {
		fmt.Fprintf(&sb, "- %s", a.Signature)
		if a.Title != "" {
			fmt.Fprintf(&sb, " (%s)", a.Title)
		}
		if a.Description != "" {
			fmt.Fprintf(&sb, ": %s", a.Description)
		}
		sb.WriteString("\n")

		if a.RequiresTarget {
			sb.WriteString("  targets: ")
			sb.WriteString(targetList(game, a.TargetIDs))
			sb.WriteString("\n")
		}
		for _, spec := range a.Args {
			fmt.Fprintf(&sb, "  arg %s (%s", spec.Name, spec.Type)
			if spec.Required {
				sb.WriteString(", required")
			}
			sb.WriteString(")")
			if spec.Description != "" {
				fmt.Fprintf(&sb, ": %s", spec.Description)
			}
			sb.WriteString(argConstraints(spec))
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func targetList(game *court.GameData, ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if c := game.Character(id); c != nil {
			parts = append(parts, fmt.Sprintf("%d (%s)", id, c.Name))
		} else {
			parts = append(parts, fmt.Sprintf("%d", id))
		}
	}
	return strings.Join(parts, ", ")
}

func argConstraints(spec action.ArgumentSpec) string {
	var parts []string
	if spec.Min != nil {
		parts = append(parts, fmt.Sprintf("min %v", *spec.Min))
	}
	if spec.Max != nil {
		parts = append(parts, fmt.Sprintf("max %v", *spec.Max))
	}
	if spec.Step != nil {
		parts = append(parts, fmt.Sprintf("step %v", *spec.Step))
	}
	if len(spec.Options) > 0 {
		parts = append(parts, "one of "+strings.Join(spec.Options, "/"))
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ", ") + "]"
}
