package app

import (
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/fx/fxevent"
)

// eventLogger writes fx lifecycle events through zerolog. Graph construction
// is logged at debug; hooks, start and stop at info; failures at error.
type eventLogger struct {
	logger zerolog.Logger
}

var _ fxevent.Logger = (*eventLogger)(nil)

func (l *eventLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.Supplied:
		l.result(e.Err, "supply failed").Str("type", e.TypeName).Msg("supplied")
	case *fxevent.Provided:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("constructor", e.ConstructorName).Msg("provide failed")
			return
		}
		l.logger.Debug().
			Str("constructor", e.ConstructorName).
			Str("types", strings.Join(e.OutputTypeNames, ",")).
			Msg("provided")
	case *fxevent.Invoked:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("function", e.FunctionName).Str("trace", e.Trace).Msg("invoke failed")
			return
		}
		l.logger.Debug().Str("function", e.FunctionName).Msg("invoked")
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("callee", e.FunctionName).Str("caller", e.CallerName).Msg("start hook failed")
			return
		}
		l.logger.Info().Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("start hook executed")
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("callee", e.FunctionName).Str("caller", e.CallerName).Msg("stop hook failed")
			return
		}
		l.logger.Info().Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("stop hook executed")
	case *fxevent.Stopping:
		l.logger.Info().Str("signal", strings.ToUpper(e.Signal.String())).Msg("stopping")
	case *fxevent.RollingBack:
		l.logger.Error().Err(e.StartErr).Msg("start failed, rolling back")
	case *fxevent.RolledBack:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Msg("rollback failed")
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Msg("start failed")
			return
		}
		l.logger.Info().Msg("started")
	case *fxevent.Stopped:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Msg("stop failed")
			return
		}
		l.logger.Info().Msg("stopped")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Msg("custom logger initialization failed")
		}
	}
}

// result picks the level for events that only matter when they fail.
func (l *eventLogger) result(err error, failure string) *zerolog.Event {
	if err != nil {
		return l.logger.Error().Err(err).Str("failure", failure)
	}
	return l.logger.Debug()
}
