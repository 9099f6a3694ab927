package server

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/protocol"
)

// Bot is an in-process call-station client. It speaks the same wire
// protocol through the same handler as a real socket: identify, join,
// ready, then answer every action request with call, else check, else
// fold. Useful for filling seats and for exercising the full message
// path in tests.
type Bot struct {
	name    string
	gameID  string
	handler *Handler
	logger  *log.Logger

	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewBot creates a bot that will seat itself in the given room. Call
// Start to begin.
func NewBot(name, gameID string, handler *Handler, logger *log.Logger) *Bot {
	return &Bot{
		name:    name,
		gameID:  gameID,
		handler: handler,
		logger:  logger.WithPrefix("bot." + name),
		frames:  make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// SendFrame enqueues an outbound frame for the bot to react to. A full
// buffer drops the frame; the bot only cares about the latest prompt.
func (b *Bot) SendFrame(data []byte) error {
	select {
	case <-b.done:
		return errBotClosed
	default:
	}
	select {
	case b.frames <- data:
	default:
		b.logger.Warn("dropping frame, bot buffer full")
	}
	return nil
}

// CloseSend stops the bot.
func (b *Bot) CloseSend() {
	b.once.Do(func() { close(b.done) })
}

type botClosedError struct{}

func (botClosedError) Error() string { return "bot closed" }

var errBotClosed = botClosedError{}

// Start runs the bot's reaction loop and kicks off the identify flow.
func (b *Bot) Start() {
	go b.loop()
	b.submit(protocol.ActionIdentify, protocol.IdentifyPayload{DisplayName: b.name})
}

func (b *Bot) submit(action string, payload any) {
	frame, err := protocol.Encode(action, payload)
	if err != nil {
		b.logger.Error("encode frame", "action", action, "error", err)
		return
	}
	b.handler.HandleFrame(b, frame)
}

func (b *Bot) loop() {
	for {
		select {
		case data := <-b.frames:
			b.react(data)
		case <-b.done:
			b.handler.Disconnected(b)
			return
		}
	}
}

func (b *Bot) react(data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		return
	}
	switch env.Action {
	case protocol.ActionIdentified:
		b.submit(protocol.ActionJoinGame, protocol.JoinGamePayload{GameID: b.gameID, Role: engine.RolePlayer})
	case protocol.ActionGameJoined:
		b.submit(protocol.ActionReady, nil)
	case protocol.ActionGameState:
		p, err := protocol.DecodePayload[protocol.GameStatePayload](env)
		if err != nil || p.ActionRequest == nil {
			return
		}
		b.act(p.GameState.HandNumber, p.ActionRequest.ValidActions)
	case protocol.ActionError:
		p, _ := protocol.DecodePayload[protocol.ErrorPayload](env)
		b.logger.Debug("server error", "code", p.Code, "message", p.Message)
	}
}

// act picks call over check over fold.
func (b *Bot) act(handNumber int, valid []engine.ValidAction) {
	choice := protocol.PlayerActionPayload{HandNumber: handNumber, Type: engine.ActionFold}
	for _, va := range valid {
		if va.Type == engine.ActionCheck {
			choice.Type = engine.ActionCheck
		}
	}
	for _, va := range valid {
		if va.Type == engine.ActionCall {
			choice.Type = engine.ActionCall
		}
	}
	b.submit(protocol.ActionPlayerAction, choice)
}
