package extract

import (
	"github.com/use-agent/chronicle/models"
	"github.com/use-agent/chronicle/surface"
)

// Extractor is the production pool.Extractor: selector payloads in,
// normalized records out. Stateless and safe for concurrent use.
type Extractor struct{}

// Payload returns the injection payload for the item's kind.
func (Extractor) Payload(item models.WorkItem) (surface.Payload, error) {
	return PayloadFor(item)
}

// Normalize converts the item's raw completion message into its Record.
func (Extractor) Normalize(item models.WorkItem, msg models.Message) models.Record {
	return Normalize(item, msg)
}
