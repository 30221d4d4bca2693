// Package adapters enumerates each source discriminant's remote listing
// into a uniform stream of models.VideoInfo records, grounded on the
// teacher's internal/ingestor SourceHandler/ChannelCallback shape.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
)

// VideoCallback is invoked for each enumerated video, in listing order
// (newest first), before the keyword filter stage runs. Returning an error
// stops enumeration and the error propagates to the caller.
type VideoCallback func(models.VideoInfo) error

// Adapter enumerates one source discriminant's remote listing. source is
// the concrete per-discriminant row (*models.SourceFavorite,
// *models.SourceCollection, ...); each implementation asserts its own type
// rather than sharing one source struct, since identity/pagination fields
// differ per discriminant and there is no polymorphic source table to hang
// a shared Go type off of.
type Adapter interface {
	Type() models.SourceType
	// Enumerate walks the remote listing newest-first, stopping either at
	// the natural end or at the incremental cut-off (the first item at or
	// before watermark). watermark is nil on a source's first-ever scan.
	Enumerate(ctx context.Context, client *platform.Client, source any, watermark *models.Time, callback VideoCallback) error
}

// envelope is the paged JSON shape every remote listing endpoint responds
// with: {code, message, data}. Non-zero code is classified per spec §6's
// remote-contract rule rather than surfaced as a generic error.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(body io.Reader) (envelope, error) {
	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return envelope{}, models.NewClassifiedError(models.KindMalformed, err)
	}
	if env.Code != 0 {
		return envelope{}, models.NewClassifiedError(
			models.ClassifyRemoteCode(env.Code),
			fmt.Errorf("%s (code %d)", env.Message, env.Code),
		)
	}
	return env, nil
}

// FilterStats tracks how many enumerated candidates the keyword filter
// stage accepted versus rejected in one enumeration pass.
type FilterStats struct {
	Accepted int
	Rejected int
}

// FilteringCallback wraps next with the source's keyword filter stage
// (§4.D): an item whose title fails filter.Accepts is counted as rejected
// and never reaches next.
func FilteringCallback(filter models.KeywordFilter, stats *FilterStats, next VideoCallback) VideoCallback {
	return func(info models.VideoInfo) error {
		if !filter.Accepts(info.Title) {
			stats.Rejected++
			return nil
		}
		stats.Accepted++
		return next(info)
	}
}

// olderThanWatermark reports the incremental cut-off condition: true once a
// listing item's own timestamp is at or before the source's watermark.
// A nil watermark never cuts off (first-ever scan enumerates everything the
// remote listing returns).
func olderThanWatermark(seen models.Time, watermark *models.Time) bool {
	if watermark == nil {
		return false
	}
	return !seen.After(*watermark)
}

// Registry resolves the adapter for a source discriminant, grounded on the
// teacher's internal/ingestor.HandlerFactory registration pattern.
type Registry struct {
	adapters map[models.SourceType]Adapter
}

// NewRegistry builds a registry from the five concrete adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.SourceType]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Type()] = a
	}
	return r
}

// Get returns the adapter registered for a source discriminant.
func (r *Registry) Get(t models.SourceType) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("adapters: no adapter registered for source type %q", t)
	}
	return a, nil
}
