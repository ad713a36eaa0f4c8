package client

import "github.com/kevinlinvk/bilifavdown/internal/types"

// Logger is the leveled logger the client and its pipeline report
// through. zap's SugaredLogger satisfies it directly.
type Logger = types.Logger

// NopLogger returns a logger that discards everything.
func NopLogger() Logger { return types.NopLogger() }
