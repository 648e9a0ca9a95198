/*
Package log provides structured logging for the federated analytics
orchestrator using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-scoped loggers and correlation-id helpers (request, context,
command, node) so that every log line emitted while serving one HTTP request
or driving one algorithm execution can be grepped back together.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	registryLog := log.WithComponent("registry")
	registryLog.Info().Int("nodes", len(nodes)).Msg("registry snapshot swapped")

Correlation loggers, composed as a request flows from the facade into the
executor and down to individual RPCs:

	reqLog := log.WithRequestID(requestID)
	ctxLog := reqLog.With().Str("context_id", contextID).Logger()
	cmdLog := ctxLog.With().Str("command_id", commandID).Logger()
	cmdLog.Debug().Str("node_id", nodeID).Msg("dispatching runUDF")

# Levels

Debug is for per-call tracing (RPC dispatch, registry diffs); Info is for
lifecycle events (algorithm started/finished, node joined/left); Warn is for
recoverable failures (a worker did not respond to a landscape scan); Error is
for failures a human should look at; Fatal exits the process and is reserved
for unrecoverable startup failures (bad config, no workers reachable at
start).
*/
package log
