package sandbox

import (
	"github.com/Shopify/go-lua"

	"github.com/courtvoice/courtvoice/pkg/court"
)

const (
	characterTypeName = "courtvoice.character"
	gameTypeName      = "courtvoice.game"
)

// registerDomainTypes installs the character and game metatables. Scripts
// receive live references: mutations made through these methods write
// straight to the shared aggregate.
func registerDomainTypes(l *lua.State) {
	lua.NewMetaTable(l, characterTypeName)
	l.NewTable()
	lua.SetFunctions(l, characterMethods, 0)
	l.SetField(-2, "__index")
	l.Pop(1)

	lua.NewMetaTable(l, gameTypeName)
	l.NewTable()
	lua.SetFunctions(l, gameMethods, 0)
	l.SetField(-2, "__index")
	l.Pop(1)
}

func pushCharacter(l *lua.State, c *court.Character) {
	if c == nil {
		l.PushNil()
		return
	}
	l.PushUserData(c)
	lua.SetMetaTableNamed(l, characterTypeName)
}

func pushGame(l *lua.State, g *court.GameData) {
	l.PushUserData(g)
	lua.SetMetaTableNamed(l, gameTypeName)
}

func checkCharacter(l *lua.State, index int) *court.Character {
	ud := lua.CheckUserData(l, index, characterTypeName)
	if c, ok := ud.(*court.Character); ok && c != nil {
		return c
	}
	lua.ArgumentError(l, index, "character expected")
	return nil
}

func checkGame(l *lua.State, index int) *court.GameData {
	ud := lua.CheckUserData(l, index, gameTypeName)
	if g, ok := ud.(*court.GameData); ok && g != nil {
		return g
	}
	lua.ArgumentError(l, index, "game expected")
	return nil
}

var characterMethods = []lua.RegistryFunction{
	{Name: "id", Function: characterID},
	{Name: "name", Function: characterName},
	{Name: "house", Function: characterHouse},
	{Name: "culture", Function: characterCulture},
	{Name: "faith", Function: characterFaith},
	{Name: "sex", Function: characterSex},
	{Name: "age", Function: characterAge},
	{Name: "gold", Function: characterGold},
	{Name: "add_gold", Function: characterAddGold},
	{Name: "is_landed", Function: characterIsLanded},
	{Name: "personality", Function: characterPersonality},
	{Name: "has_trait", Function: characterHasTrait},
	{Name: "add_trait", Function: characterAddTrait},
	{Name: "remove_trait", Function: characterRemoveTrait},
	{Name: "opinion_of", Function: characterOpinionOf},
	{Name: "set_opinion", Function: characterSetOpinion},
	{Name: "improve_opinion", Function: characterImproveOpinion},
	{Name: "add_memory", Function: characterAddMemory},
}

func characterID(l *lua.State) int {
	l.PushInteger(int(checkCharacter(l, 1).ID))
	return 1
}

func characterName(l *lua.State) int {
	l.PushString(checkCharacter(l, 1).Name)
	return 1
}

func characterHouse(l *lua.State) int {
	l.PushString(checkCharacter(l, 1).House)
	return 1
}

func characterCulture(l *lua.State) int {
	l.PushString(checkCharacter(l, 1).Culture)
	return 1
}

func characterFaith(l *lua.State) int {
	l.PushString(checkCharacter(l, 1).Faith)
	return 1
}

func characterSex(l *lua.State) int {
	l.PushString(checkCharacter(l, 1).Sex)
	return 1
}

func characterAge(l *lua.State) int {
	l.PushInteger(checkCharacter(l, 1).Age)
	return 1
}

func characterGold(l *lua.State) int {
	l.PushInteger(checkCharacter(l, 1).Gold)
	return 1
}

func characterAddGold(l *lua.State) int {
	c := checkCharacter(l, 1)
	c.Gold += lua.CheckInteger(l, 2)
	return 0
}

func characterIsLanded(l *lua.State) int {
	l.PushBoolean(checkCharacter(l, 1).Landed)
	return 1
}

func characterPersonality(l *lua.State) int {
	l.PushString(checkCharacter(l, 1).Personality)
	return 1
}

func characterHasTrait(l *lua.State) int {
	c := checkCharacter(l, 1)
	l.PushBoolean(c.HasTrait(lua.CheckString(l, 2)))
	return 1
}

func characterAddTrait(l *lua.State) int {
	checkCharacter(l, 1).AddTrait(lua.CheckString(l, 2))
	return 0
}

func characterRemoveTrait(l *lua.State) int {
	checkCharacter(l, 1).RemoveTrait(lua.CheckString(l, 2))
	return 0
}

func characterOpinionOf(l *lua.State) int {
	c := checkCharacter(l, 1)
	l.PushInteger(c.OpinionOf(int64(lua.CheckInteger(l, 2))))
	return 1
}

func characterSetOpinion(l *lua.State) int {
	c := checkCharacter(l, 1)
	c.SetOpinion(int64(lua.CheckInteger(l, 2)), lua.CheckInteger(l, 3))
	return 0
}

func characterImproveOpinion(l *lua.State) int {
	c := checkCharacter(l, 1)
	c.ImproveOpinion(int64(lua.CheckInteger(l, 2)), lua.CheckInteger(l, 3))
	return 0
}

func characterAddMemory(l *lua.State) int {
	checkCharacter(l, 1).AddMemory(lua.CheckString(l, 2))
	return 0
}

var gameMethods = []lua.RegistryFunction{
	{Name: "character", Function: gameCharacter},
	{Name: "characters", Function: gameCharacters},
	{Name: "player", Function: gamePlayer},
	{Name: "date", Function: gameDate},
	{Name: "character_count", Function: gameCharacterCount},
}

func gameCharacter(l *lua.State) int {
	g := checkGame(l, 1)
	pushCharacter(l, g.Character(int64(lua.CheckInteger(l, 2))))
	return 1
}

// gameCharacters returns the court as a Lua array in insertion order.
func gameCharacters(l *lua.State) int {
	g := checkGame(l, 1)
	l.CreateTable(len(g.Characters), 0)
	for i, c := range g.Characters {
		pushCharacter(l, c)
		l.RawSetInt(-2, i+1)
	}
	return 1
}

func gamePlayer(l *lua.State) int {
	pushCharacter(l, checkGame(l, 1).Player())
	return 1
}

func gameDate(l *lua.State) int {
	l.PushString(checkGame(l, 1).Date)
	return 1
}

func gameCharacterCount(l *lua.State) int {
	l.PushInteger(len(checkGame(l, 1).Characters))
	return 1
}
