package build

import (
	"context"

	"github.com/tracklinkhq/tracklink/internal/models"
	"github.com/tracklinkhq/tracklink/internal/store"
)

// Engine binds build records to the persisted state of earlier builds of
// the same job. It stands in for the surrounding build engine's accessors:
// previous-build lookup and carry-forward state.
type Engine struct {
	Store store.Store
}

// Prepare populates rec.CarriedOver from the carry-forward set of the
// job's most recent earlier build. A missing previous build is not an
// error; the carried set just stays nil.
func (e *Engine) Prepare(ctx context.Context, rec *Record) error {
	prev, ok, err := e.Store.LatestBuildBefore(ctx, rec.Job, rec.Number)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	tokens, found, err := e.Store.CarryForward(ctx, rec.Job, prev)
	if err != nil {
		return err
	}
	if found {
		rec.CarriedOver = models.NewTokenSet(tokens...)
	}
	return nil
}
