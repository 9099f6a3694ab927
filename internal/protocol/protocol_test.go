package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroomlabs/cardroom/internal/engine"
)

func TestEncodeDecodeEnvelope(t *testing.T) {
	frame, err := Encode(ActionPlayerAction, PlayerActionPayload{
		HandNumber: 4,
		Type:       engine.ActionRaise,
		Amount:     40,
	})
	require.NoError(t, err)

	env, err := DecodeEnvelope(frame)
	require.NoError(t, err)
	assert.Equal(t, ActionPlayerAction, env.Action)

	payload, err := DecodePayload[PlayerActionPayload](env)
	require.NoError(t, err)
	assert.Equal(t, 4, payload.HandNumber)
	assert.Equal(t, engine.ActionRaise, payload.Type)
	assert.Equal(t, 40, payload.Amount)
}

func TestDecodeEnvelopeRejectsMalformed(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}

func TestDecodePayloadEmptyIsZeroValue(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"action":"ready"}`))
	require.NoError(t, err)

	payload, err := DecodePayload[ChatPayload](env)
	require.NoError(t, err)
	assert.Empty(t, payload.Message)
}

func TestGameStatePayloadRoundTrip(t *testing.T) {
	payload := GameStatePayload{
		GameState: engine.ClientGameState{
			GameID:     "g1",
			HandNumber: 2,
			Stage:      engine.StageFlop,
		},
		Event: engine.NewPlayerActionEvent("p1", engine.ActionDetail{
			Type:   engine.ActionBet,
			Amount: 50,
		}),
		ActionRequest: &ActionRequest{
			ValidActions: []engine.ValidAction{{Type: engine.ActionFold}},
			TimeToActMs:  30000,
		},
	}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded GameStatePayload
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, payload.GameState.GameID, decoded.GameState.GameID)
	assert.Equal(t, payload.Event, decoded.Event)
	assert.Equal(t, payload.ActionRequest, decoded.ActionRequest)
}

func TestErrorFromEngineError(t *testing.T) {
	s := engine.NewState(engine.RoomConfig{MaxPlayers: 2})
	err := engine.ValidateAction(s, "ghost", engine.ActionFold, 0)
	require.Error(t, err)

	payload := ErrorFrom(err)
	assert.Equal(t, CodeNotInGame, payload.Code)
	assert.NotEmpty(t, payload.Message)
}

func TestErrorFromPlainError(t *testing.T) {
	payload := ErrorFrom(assert.AnError)
	assert.Equal(t, CodeInvalidMessage, payload.Code)
}
