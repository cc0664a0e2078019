package event

import "github.com/Iron-Ham/nchat/internal/logging"

// LogEvents subscribes a handler that writes every published event to
// logger. It returns the subscription ID.
func LogEvents(bus *Bus, logger *logging.Logger) string {
	return bus.SubscribeAll(func(e Event) {
		switch ev := e.(type) {
		case ProtocolStartedEvent:
			logger.Info("protocol started", "protocol", ev.Protocol)
		case ProtocolFailedEvent:
			logger.Error("protocol failed to start", "protocol", ev.Protocol, "error", errString(ev.Err))
		case ProtocolStoppedEvent:
			if ev.Err != nil {
				logger.Warn("protocol stopped with error", "protocol", ev.Protocol, "error", ev.Err.Error())
				return
			}
			logger.Info("protocol stopped", "protocol", ev.Protocol)
		case ConfigSavedEvent:
			if ev.Err != nil {
				logger.Error("config save failed", "path", ev.Path, "error", ev.Err.Error())
				return
			}
			logger.Info("config saved", "path", ev.Path)
		case ConfigChangedEvent:
			logger.Warn("config file changed on disk, it will be overwritten on exit", "path", ev.Path)
		case SessionShutdownEvent:
			logger.Info("session shutdown", "reason", ev.Reason)
		default:
			logger.Debug("event", "type", e.EventType())
		}
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
