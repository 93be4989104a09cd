// Package logging provides ports.Logger implementations: a ConsoleLogger
// writing text or JSON lines and Discard.
package logging

import (
	"context"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// Discard drops every line. It is the logger until the CLI installs one.
var Discard ports.Logger = discard{}

type discard struct{}

func (discard) Debug(context.Context, string, ...ports.Field) {}
func (discard) Info(context.Context, string, ...ports.Field)  {}
func (discard) Warn(context.Context, string, ...ports.Field)  {}
func (discard) Error(context.Context, string, ...ports.Field) {}

func (d discard) With(...ports.Field) ports.Logger { return d }
