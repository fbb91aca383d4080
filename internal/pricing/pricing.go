// Package pricing holds the process-wide pricing configuration. The configuration is an
// immutable snapshot which is swapped as a whole whenever it is refreshed, so request
// handlers never see a half-applied update.
package pricing

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/naughtygopher/errors"
)

// DefaultFactor is used when no factor is configured.
const DefaultFactor = 1.0

var ErrInvalidFactor = errors.Validation("pricing factor should be a finite number")

// Config is a read-only snapshot. Never modify a Config after handing it to a Holder.
type Config struct {
	Factor float64 `json:"factor"`
}

func (cfg Config) Validate() error {
	if math.IsNaN(cfg.Factor) || math.IsInf(cfg.Factor, 0) {
		return errors.Wrap(ErrInvalidFactor, fmt.Sprintf("'%v'", cfg.Factor))
	}
	return nil
}

// Holder serves the current Config to concurrent readers.
type Holder struct {
	current atomic.Pointer[Config]
}

func NewHolder(initial Config) (*Holder, error) {
	err := initial.Validate()
	if err != nil {
		return nil, err
	}

	hld := &Holder{}
	hld.current.Store(&initial)
	return hld, nil
}

// Snapshot returns a copy of the current configuration.
func (hld *Holder) Snapshot() Config {
	return *hld.current.Load()
}

func (hld *Holder) Factor() float64 {
	return hld.current.Load().Factor
}

// Replace validates cfg and swaps it in. An invalid cfg leaves the previous snapshot in place.
func (hld *Holder) Replace(cfg Config) error {
	err := cfg.Validate()
	if err != nil {
		return err
	}
	hld.current.Store(&cfg)
	return nil
}
