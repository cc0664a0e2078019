// Package event provides a pub-sub event bus for session level
// notifications in nchat.
//
// The orchestrator publishes lifecycle events; the UI and the log
// subscriber consume them without either depending on the orchestrator.
// Chat data (chat lists, messages) does not travel on this bus: it flows
// from each protocol's outbox directly into the UI.
//
// # Event Categories
//
// Protocol lifecycle:
//   - [ProtocolStartedEvent], [ProtocolFailedEvent], [ProtocolStoppedEvent]
//
// Config:
//   - [ConfigSavedEvent], [ConfigChangedEvent]
//
// Session:
//   - [SessionShutdownEvent]
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publishing goroutine and a panicking handler does
// not stop delivery to the others.
//
// # Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeProtocolStarted, func(e event.Event) {
//	    started := e.(event.ProtocolStartedEvent)
//	    fmt.Println(started.Protocol)
//	})
//	bus.Publish(event.NewProtocolStartedEvent("telegram"))
package event
