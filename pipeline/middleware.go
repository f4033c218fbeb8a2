package pipeline

import (
	"time"

	"github.com/replypipe/replypipe/analytics"
	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/logging"
)

// chain applies middlewares to a stage, outermost first.
func chain(s core.Stage, mws ...core.Middleware) core.Stage {
	for i := len(mws) - 1; i >= 0; i-- {
		s = mws[i](s)
	}
	return s
}

// withLogging logs stage entry and exit with duration.
func withLogging(logger *logging.PipelineLogger) core.Middleware {
	return func(next core.Stage) core.Stage {
		return core.StageFunc{
			StageName: next.Name(),
			Fn: func(tc *core.TurnContext) error {
				l := logger.WithTurn(tc.ConversationID, tc.TaskID)
				start := time.Now()
				err := next.Handle(tc)
				outcome := "ok"
				if err != nil {
					outcome = "error"
				}
				l.LogStage(next.Name(), time.Since(start), outcome, err)
				return err
			},
		}
	}
}

// withAnalytics records one fire-and-forget event per stage execution.
func withAnalytics(sink analytics.Sink) core.Middleware {
	return func(next core.Stage) core.Stage {
		return core.StageFunc{
			StageName: next.Name(),
			Fn: func(tc *core.TurnContext) error {
				start := time.Now()
				err := next.Handle(tc)

				ev := analytics.Event{
					Stage:          next.Name(),
					ConversationID: tc.ConversationID,
					TaskID:         tc.TaskID,
					Duration:       time.Since(start),
					Degraded:       tc.Degraded,
					Timestamp:      start,
				}
				if err != nil {
					ev.Outcome = "error"
					ev.Error = err.Error()
				} else {
					ev.Outcome = "ok"
				}
				sink.Record(ev)
				return err
			},
		}
	}
}

// withTracing opens one span per stage execution.
func withTracing(tracer *analytics.Tracer) core.Middleware {
	return func(next core.Stage) core.Stage {
		return core.StageFunc{
			StageName: next.Name(),
			Fn: func(tc *core.TurnContext) error {
				ctx, end := tracer.StartStage(tc.Context, next.Name(), tc.TaskID)
				prev := tc.Context
				tc.Context = ctx
				err := next.Handle(tc)
				tc.Context = prev
				end(err)
				return err
			},
		}
	}
}

// withCancellation aborts a stage before it starts when the turn budget has
// already been spent.
func withCancellation() core.Middleware {
	return func(next core.Stage) core.Stage {
		return core.StageFunc{
			StageName: next.Name(),
			Fn: func(tc *core.TurnContext) error {
				if err := tc.Err(); err != nil {
					return err
				}
				return next.Handle(tc)
			},
		}
	}
}
