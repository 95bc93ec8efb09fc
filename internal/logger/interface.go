package logger

// Logger is the logging dependency of long-lived components. Events carry
// the component name.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
}

// Component returns a Logger that tags every event with name.
func Component(name string) Logger {
	return componentLogger{name: name}
}

type componentLogger struct {
	name string
}

func (c componentLogger) Debug() *LogEvent { return &LogEvent{log.Debug().Str("component", c.name)} }
func (c componentLogger) Info() *LogEvent  { return &LogEvent{log.Info().Str("component", c.name)} }
func (c componentLogger) Warn() *LogEvent  { return &LogEvent{log.Warn().Str("component", c.name)} }
func (c componentLogger) Error() *LogEvent { return &LogEvent{log.Error().Str("component", c.name)} }
