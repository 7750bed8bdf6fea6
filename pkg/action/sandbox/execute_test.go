package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/court"
)

func loadDef(t *testing.T, source string) *action.Definition {
	t.Helper()
	def, err := ExtractDefinition(source, testLogger())
	require.NoError(t, err)
	return def
}

func execContext(g *court.GameData, sourceID int64, targetID *int64) *Context {
	ctx := &Context{
		GameData: g,
		Source:   g.Character(sourceID),
		Args:     map[string]any{},
		Language: "en",
		Log:      testLogger(),
	}
	if targetID != nil {
		ctx.Target = g.Character(*targetID)
	}
	return ctx
}

func twoCharacterGame(t *testing.T) *court.GameData {
	t.Helper()
	g := court.NewGameData()
	require.NoError(t, g.AddCharacter(&court.Character{ID: 1, Name: "Alfred", Gold: 50, Landed: true}))
	require.NoError(t, g.AddCharacter(&court.Character{ID: 2, Name: "Guthrum", Gold: 5}))
	return g
}

func TestExecuteMutatesSharedState(t *testing.T) {
	src := `
return {
    signature = "tax",
    description = "d",
    args = {},
    check = function(ctx) return true end,
    run = function(ctx)
        ctx.source:add_gold(10)
        ctx.target:add_gold(-10)
        ctx.target:add_trait("resentful")
        return "collected"
    end,
}
`
	g := twoCharacterGame(t)
	target := int64(2)
	res := Execute(loadDef(t, src), execContext(g, 1, &target))

	require.True(t, res.Success)
	require.NotNil(t, res.Feedback)
	assert.Equal(t, "collected", res.Feedback.Message)
	assert.Equal(t, action.SentimentNeutral, res.Feedback.Sentiment)

	assert.Equal(t, 60, g.Character(1).Gold)
	assert.Equal(t, -5, g.Character(2).Gold)
	assert.True(t, g.Character(2).HasTrait("resentful"))
}

func TestExecuteFeedbackShapes(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		language      string
		wantFeedback  bool
		wantMessage   string
		wantSentiment string
	}{
		{
			name:         "no return value",
			body:         `run = function(ctx) end`,
			wantFeedback: false,
		},
		{
			name:          "plain string",
			body:          `run = function(ctx) return "plain" end`,
			wantFeedback:  true,
			wantMessage:   "plain",
			wantSentiment: action.SentimentNeutral,
		},
		{
			name:          "structured with sentiment",
			body:          `run = function(ctx) return { message = "grim news", sentiment = "negative" } end`,
			wantFeedback:  true,
			wantMessage:   "grim news",
			wantSentiment: action.SentimentNegative,
		},
		{
			name:          "structured defaults to neutral",
			body:          `run = function(ctx) return { message = "fine" } end`,
			wantFeedback:  true,
			wantMessage:   "fine",
			wantSentiment: action.SentimentNeutral,
		},
		{
			name:          "language map exact match",
			body:          `run = function(ctx) return { en = "hello", fr = "bonjour" } end`,
			language:      "fr",
			wantFeedback:  true,
			wantMessage:   "bonjour",
			wantSentiment: action.SentimentNeutral,
		},
		{
			name:          "language map falls back to english",
			body:          `run = function(ctx) return { en = "hello", fr = "bonjour" } end`,
			language:      "de",
			wantFeedback:  true,
			wantMessage:   "hello",
			wantSentiment: action.SentimentNeutral,
		},
		{
			name:          "structured message map",
			body:          `run = function(ctx) return { message = { en = "sent", fr = "envoye" }, sentiment = "positive" } end`,
			language:      "en",
			wantFeedback:  true,
			wantMessage:   "sent",
			wantSentiment: action.SentimentPositive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `
return {
    signature = "fb",
    description = "d",
    args = {},
    check = function(ctx) return true end,
    ` + tt.body + `,
}
`
			g := twoCharacterGame(t)
			ctx := execContext(g, 1, nil)
			if tt.language != "" {
				ctx.Language = tt.language
			}
			res := Execute(loadDef(t, src), ctx)
			require.True(t, res.Success)
			if !tt.wantFeedback {
				assert.Nil(t, res.Feedback)
				return
			}
			require.NotNil(t, res.Feedback)
			assert.Equal(t, tt.wantMessage, res.Feedback.Message)
			assert.Equal(t, tt.wantSentiment, res.Feedback.Sentiment)
		})
	}
}

func TestExecuteScriptErrorBecomesResult(t *testing.T) {
	src := `
return {
    signature = "boom",
    description = "d",
    args = {},
    check = function(ctx) return true end,
    run = function(ctx) error("the script exploded") end,
}
`
	res := Execute(loadDef(t, src), execContext(twoCharacterGame(t), 1, nil))
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "the script exploded")
	assert.Nil(t, res.Feedback)
}

func TestExecuteEmit(t *testing.T) {
	src := `
return {
    signature = "emitter",
    description = "d",
    args = {},
    check = function(ctx) return true end,
    run = function(ctx)
        emit("add_gold = 5")
        emit("add_prestige = 5")
    end,
}
`
	g := twoCharacterGame(t)
	var emitted []string
	ctx := execContext(g, 1, nil)
	ctx.Emit = func(body string) { emitted = append(emitted, body) }

	res := Execute(loadDef(t, src), ctx)
	require.True(t, res.Success)
	assert.Equal(t, []string{"add_gold = 5", "add_prestige = 5"}, emitted)
}

func TestExecuteDryRunSuppressesEmit(t *testing.T) {
	src := `
return {
    signature = "emitter",
    description = "d",
    args = {},
    check = function(ctx) return true end,
    run = function(ctx)
        emit("add_gold = 5")
        return "would add gold"
    end,
}
`
	g := twoCharacterGame(t)
	var emitted []string
	ctx := execContext(g, 1, nil)
	ctx.Emit = func(body string) { emitted = append(emitted, body) }
	ctx.DryRun = true

	res := Execute(loadDef(t, src), ctx)
	require.True(t, res.Success)
	assert.Empty(t, emitted)
	assert.Equal(t, "would add gold", res.Feedback.Message)
}

func TestExecuteArgsAndLocale(t *testing.T) {
	src := `
return {
    signature = "echo",
    description = "d",
    args = {},
    check = function(ctx) return true end,
    run = function(ctx)
        return string.format("%s/%d/%s/%s", ctx.args.word, ctx.args.amount, tostring(ctx.args.flag), ctx.locale)
    end,
}
`
	g := twoCharacterGame(t)
	ctx := execContext(g, 1, nil)
	ctx.Args = map[string]any{"word": "hi", "amount": float64(3), "flag": true}
	ctx.Language = "fr"

	res := Execute(loadDef(t, src), ctx)
	require.True(t, res.Success)
	assert.Equal(t, "hi/3/true/fr", res.Feedback.Message)
}

func TestCheckReturnsTargets(t *testing.T) {
	src := `
return {
    signature = "targeted",
    description = "d",
    args = {},
    check = function(ctx)
        local ids = {}
        for _, c in ipairs(ctx.game:characters()) do
            if c:id() ~= ctx.source:id() then
                table.insert(ids, c:id())
            end
        end
        return true, ids
    end,
    run = function(ctx) end,
}
`
	g := twoCharacterGame(t)
	ok, targets, err := Check(loadDef(t, src), execContext(g, 1, nil))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{2}, targets)
}

func TestCheckFalse(t *testing.T) {
	src := `
return {
    signature = "never",
    description = "d",
    args = {},
    check = function(ctx) return false end,
    run = function(ctx) end,
}
`
	ok, targets, err := Check(loadDef(t, src), execContext(twoCharacterGame(t), 1, nil))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, targets)
}

func TestCheckErrorPropagates(t *testing.T) {
	src := `
return {
    signature = "broken",
    description = "d",
    args = {},
    check = function(ctx) error("check blew up") end,
    run = function(ctx) end,
}
`
	_, _, err := Check(loadDef(t, src), execContext(twoCharacterGame(t), 1, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check blew up")
}

func TestResolveDescriptionDynamic(t *testing.T) {
	src := `
return {
    signature = "desc",
    description = function(ctx)
        return "You hold " .. ctx.source:gold() .. " gold."
    end,
    args = {},
    check = function(ctx) return true end,
    run = function(ctx) end,
}
`
	g := twoCharacterGame(t)
	desc, err := ResolveDescription(loadDef(t, src), execContext(g, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, "You hold 50 gold.", desc)
}

func TestResolveDescriptionStatic(t *testing.T) {
	def := loadDef(t, validScript)
	desc, err := ResolveDescription(def, execContext(twoCharacterGame(t), 1, nil))
	require.NoError(t, err)
	assert.Equal(t, "Does a thing.", desc)
}

func TestResolveArgsDynamic(t *testing.T) {
	src := `
return {
    signature = "dyn_args",
    description = "d",
    args = function(ctx)
        return {
            { name = "amount", type = "number", description = "Gold.", required = true, min = 1, max = ctx.source:gold() },
        }
    end,
    check = function(ctx) return true end,
    run = function(ctx) end,
}
`
	g := twoCharacterGame(t)
	specs, err := ResolveArgs(loadDef(t, src), execContext(g, 1, nil))
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "amount", specs[0].Name)
	require.NotNil(t, specs[0].Max)
	assert.Equal(t, 50.0, *specs[0].Max)
}

func TestGameBindings(t *testing.T) {
	src := `
return {
    signature = "bindings",
    description = "d",
    args = {},
    check = function(ctx) return true end,
    run = function(ctx)
        local g = ctx.game
        return string.format("%d|%s|%s", g:character_count(), g:date(), g:player():name())
    end,
}
`
	g := twoCharacterGame(t)
	g.PlayerID = 2
	g.Date = "1067.1.1"

	res := Execute(loadDef(t, src), execContext(g, 1, nil))
	require.True(t, res.Success)
	assert.Equal(t, "2|1067.1.1|Guthrum", res.Feedback.Message)
}
