package catalog

import (
	"context"

	"aigen-library/internal/importer"
	"aigen-library/internal/logging"
)

var log = logging.Component("catalog")

// Sink stores import outcomes in a Catalog.
type Sink struct {
	catalog *Catalog
}

// NewSink returns an importer.OutcomeSink backed by c.
func NewSink(c *Catalog) *Sink {
	return &Sink{catalog: c}
}

// Accept saves o, replacing any earlier row for the same path.
func (s *Sink) Accept(ctx context.Context, o importer.Outcome) error {
	img := FromOutcome(o)
	if err := s.catalog.Save(ctx, img); err != nil {
		return err
	}
	log.Debug("Stored %s as #%d (%s)", img.RelativePath, img.ID, img.Status)
	return nil
}
