package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvoice/courtvoice/pkg/action"
)

func fptr(f float64) *float64 { return &f }

func testAvailable() []Available {
	return []Available{
		{
			Signature:   "give_gift",
			Title:       "Give Gift",
			Description: "Send gold to another character.",
			Args: []action.ArgumentSpec{
				{Name: "amount", Description: "Gold to send.", Type: action.ArgNumber, Required: true, Min: fptr(1), Max: fptr(100), Step: fptr(1)},
			},
			RequiresTarget: true,
			TargetIDs:      []int64{2, 3},
		},
		{
			Signature:   "pray",
			Description: "Spend the day in prayer.",
			Args: []action.ArgumentSpec{
				{Name: "devotion", Description: "How fervently.", Type: action.ArgEnum, Options: []string{"quiet", "public"}},
			},
		},
	}
}

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestBuildRequiresActions(t *testing.T) {
	_, err := Build(nil, ShapeFull)
	assert.ErrorContains(t, err, "no actions available")
}

func TestValidateAcceptsWellFormedResponse(t *testing.T) {
	built, err := Build(testAvailable(), ShapeFull)
	require.NoError(t, err)

	invocations, err := built.Validate(decode(t, `{
		"actions": [
			{"actionId": "give_gift", "targetCharacterId": 2, "args": {"amount": 50}},
			{"actionId": "pray", "targetCharacterId": null, "args": {"devotion": "quiet"}}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, invocations, 2)

	assert.Equal(t, "give_gift", invocations[0].ActionID)
	require.NotNil(t, invocations[0].TargetCharacterID)
	assert.Equal(t, int64(2), *invocations[0].TargetCharacterID)
	assert.Equal(t, float64(50), invocations[0].Args["amount"])

	assert.Equal(t, "pray", invocations[1].ActionID)
	assert.Nil(t, invocations[1].TargetCharacterID)
}

func TestValidateEmptyActions(t *testing.T) {
	built, err := Build(testAvailable(), ShapeFull)
	require.NoError(t, err)

	invocations, err := built.Validate(decode(t, `{"actions": []}`))
	require.NoError(t, err)
	assert.Empty(t, invocations)
}

func TestValidateRejections(t *testing.T) {
	built, err := Build(testAvailable(), ShapeFull)
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown action id",
			doc:  `{"actions": [{"actionId": "assassinate", "targetCharacterId": 2, "args": {}}]}`,
		},
		{
			name: "target outside allow-list",
			doc:  `{"actions": [{"actionId": "give_gift", "targetCharacterId": 99, "args": {"amount": 10}}]}`,
		},
		{
			name: "missing required target",
			doc:  `{"actions": [{"actionId": "give_gift", "args": {"amount": 10}}]}`,
		},
		{
			name: "target on untargeted action",
			doc:  `{"actions": [{"actionId": "pray", "targetCharacterId": 2, "args": {}}]}`,
		},
		{
			name: "missing required argument",
			doc:  `{"actions": [{"actionId": "give_gift", "targetCharacterId": 2, "args": {}}]}`,
		},
		{
			name: "argument above maximum",
			doc:  `{"actions": [{"actionId": "give_gift", "targetCharacterId": 2, "args": {"amount": 500}}]}`,
		},
		{
			name: "enum value not offered",
			doc:  `{"actions": [{"actionId": "pray", "targetCharacterId": null, "args": {"devotion": "loud"}}]}`,
		},
		{
			name: "unexpected extra property",
			doc:  `{"actions": [{"actionId": "pray", "targetCharacterId": null, "args": {}, "reason": "bored"}]}`,
		},
		{
			name: "missing actions key",
			doc:  `{"invocations": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := built.Validate(decode(t, tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestValidateStepReachability(t *testing.T) {
	available := []Available{
		{
			Signature:   "bid",
			Description: "Place a bid.",
			Args: []action.ArgumentSpec{
				{Name: "offer", Description: "Amount.", Type: action.ArgNumber, Required: true, Min: fptr(5), Max: fptr(50), Step: fptr(5)},
			},
		},
	}
	built, err := Build(available, ShapeFull)
	require.NoError(t, err)

	// 25 = 5 + 4*5, reachable.
	_, err = built.Validate(decode(t, `{"actions": [{"actionId": "bid", "targetCharacterId": null, "args": {"offer": 25}}]}`))
	assert.NoError(t, err)

	// 27 is off-step from the minimum.
	_, err = built.Validate(decode(t, `{"actions": [{"actionId": "bid", "targetCharacterId": null, "args": {"offer": 27}}]}`))
	assert.ErrorContains(t, err, "not reachable by stepping")
}

func TestMinimalShapeKeepsValidatorStrict(t *testing.T) {
	built, err := Build(testAvailable(), ShapeMinimal)
	require.NoError(t, err)

	// The advisory schema is loose.
	items := built.Schema["properties"].(map[string]any)["actions"].(map[string]any)["items"].(map[string]any)
	props := items["properties"].(map[string]any)
	assert.Contains(t, props["actionId"].(map[string]any), "enum")

	// The validator still enforces the full contract.
	_, err = built.Validate(decode(t, `{"actions": [{"actionId": "give_gift", "targetCharacterId": 99, "args": {"amount": 10}}]}`))
	assert.Error(t, err)
}

func TestFullSchemaShape(t *testing.T) {
	built, err := Build(testAvailable(), ShapeFull)
	require.NoError(t, err)

	// The document must round-trip through JSON for the provider request.
	data, err := json.Marshal(built.Schema)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"oneOf"`)
	assert.Contains(t, string(data), `"give_gift"`)
}

func TestShapeForModel(t *testing.T) {
	assert.Equal(t, ShapeMinimal, ShapeForModel("llama3.2"))
	assert.Equal(t, ShapeMinimal, ShapeForModel("Mistral-7B"))
	assert.Equal(t, ShapeMinimal, ShapeForModel("qwen2.5-coder"))
	assert.Equal(t, ShapeFull, ShapeForModel("claude-sonnet-4-5"))
	assert.Equal(t, ShapeFull, ShapeForModel("gpt-4o"))
}

func TestResolve(t *testing.T) {
	assert.Equal(t, ShapeFull, Resolve(ShapeFull, "llama3.2"))
	assert.Equal(t, ShapeMinimal, Resolve(ShapeMinimal, "gpt-4o"))
	assert.Equal(t, ShapeMinimal, Resolve(ShapeAuto, "llama3.2"))
	assert.Equal(t, ShapeFull, Resolve(ShapeAuto, "gpt-4o"))
}
