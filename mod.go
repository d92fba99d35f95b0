// Package dcxml maps typed Go object graphs onto a schema-stable XML
// representation and back. The engine lives in the sub-packages: qname derives
// wire identities, contract describes the wire shape of each type, serializer
// walks the graphs.
package dcxml

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance. It is set to the info level
// by default so that the trace messages of the traversal stay silent.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(zerolog.InfoLevel)

// PromCollectors exposes the Prometheus collectors created in the packages of
// the module. They are not registered by default.
var PromCollectors []prometheus.Collector
