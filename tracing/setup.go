package tracing

import (
	"contrib.go.opencensus.io/exporter/jaeger"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"
)

var log = logging.Logger("tracing")

// SetupJaegerTracing registers a jaeger exporter, sending every span to the
// agent at agentEndpoint.
func SetupJaegerTracing(serviceName string, agentEndpoint string) (*jaeger.Exporter, error) {
	je, err := jaeger.NewExporter(jaeger.Options{
		AgentEndpoint: agentEndpoint,
		ServiceName:   serviceName,
		OnError: func(err error) {
			log.Errorw("jaeger export failed", "error", err)
		},
	})
	if err != nil {
		return nil, xerrors.Errorf("creating jaeger exporter: %w", err)
	}

	trace.RegisterExporter(je)
	trace.ApplyConfig(trace.Config{
		DefaultSampler: trace.AlwaysSample(),
	})

	log.Infof("jaeger traces will be sent to agent %s", agentEndpoint)

	return je, nil
}

// Shutdown flushes buffered spans and unregisters the exporter.
func Shutdown(je *jaeger.Exporter) {
	je.Flush()
	trace.UnregisterExporter(je)
}
