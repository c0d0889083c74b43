package webhook

import (
	"github.com/mattjoyce/gridlink/internal/command"
)

// Dispatcher runs a command against the grid. Implementations serialise
// access; the webhook server calls it from request goroutines.
type Dispatcher interface {
	Dispatch(cmd command.Command) command.Outcome
}

// Config holds webhook server configuration.
type Config struct {
	Listen    string
	Endpoints []EndpointConfig
}

// EndpointConfig defines a single webhook endpoint.
type EndpointConfig struct {
	Path string
	Kind command.Kind
	Name command.Name
	// Target is the addressed entity id. Empty means the request supplies
	// it as ?target=.
	Target          string
	Secret          string
	SignatureHeader string
	MaxBodySize     int64
}

// TriggerResponse is the JSON body of a dispatched hook.
type TriggerResponse struct {
	Command string          `json:"command"`
	Target  string          `json:"target"`
	Outcome command.Outcome `json:"outcome"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DefaultMaxBodySize applies when an endpoint sets no limit.
const DefaultMaxBodySize = 1 << 20
