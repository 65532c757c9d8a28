// Package cache stores computed share timelines keyed by share code.
//
// Entries live for a fixed TTL from the moment they are written. Reads never
// extend an entry; only an explicit Delete or expiry removes it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/showroom/internal/server/models"
)

type TimelineCache interface {
	Get(ctx context.Context, code string) (models.Timeline, bool, error)
	Set(ctx context.Context, code string, t models.Timeline) error
	Delete(ctx context.Context, codes ...string) error
}

func key(code string) string { return "timeline#" + code }

func encode(t models.Timeline) ([]byte, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("cache encode: %w", err)
	}
	return b, nil
}

func decode(b []byte) (models.Timeline, error) {
	t := models.Timeline{}
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return t, nil
}
