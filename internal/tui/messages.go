package tui

import (
	"github.com/Iron-Ham/nchat/internal/event"
	"github.com/Iron-Ham/nchat/internal/protocol"
)

// protocolAddedMsg is sent by a pump before any of its protocol's events.
type protocolAddedMsg struct {
	proto protocol.Protocol
}

// protocolRemovedMsg is sent after a protocol's pump stopped.
type protocolRemovedMsg struct {
	name string
}

// eventMsg carries one protocol event into the event loop.
type eventMsg struct {
	ev protocol.Event
}

// sessionEventMsg carries an orchestrator bus event into the event loop.
type sessionEventMsg struct {
	ev event.Event
}
