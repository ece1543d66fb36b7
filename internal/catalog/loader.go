package catalog

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("finitefield.org/mercadito/internal/catalog")

// Loader fetches, validates and publishes the catalog.
type Loader struct {
	Source  Source
	Holder  *Holder
	Logger  *zap.Logger
	Timeout time.Duration
	Now     func() time.Time
}

// Load fetches the document once and returns the validated catalog.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	if l.Source == nil {
		return nil, fmt.Errorf("catalog: no source configured")
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "catalog.Load")
	defer span.End()
	span.SetAttributes(attribute.String("catalog.source", l.Source.String()))

	raw, format, err := l.Source.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	doc, err := Decode(raw, format)
	if err == nil {
		err = doc.Validate()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid document")
		return nil, err
	}

	c := New(doc.ExchangeRate, doc.Products)
	c.Notice = doc.Notice
	if c.NoticeHTML, err = RenderNotice(doc.Notice); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notice failed")
		return nil, err
	}
	c.Source = l.Source.String()
	c.LoadedAt = l.now()

	span.SetAttributes(
		attribute.Int("catalog.products", c.Len()),
		attribute.String("catalog.rate", c.Rate.String()),
	)
	span.SetStatus(codes.Ok, "")
	return c, nil
}

// Run loads the catalog and publishes it to the holder. Failures are logged and
// not retried; the holder keeps serving an empty catalog.
func (l *Loader) Run(ctx context.Context) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := l.Load(ctx)
	if err != nil {
		logger.Error("catalog load failed", zap.Error(err), zap.String("source", l.sourceName()))
		return
	}
	if l.Holder != nil {
		l.Holder.Set(c)
	}
	logger.Info("catalog loaded",
		zap.String("source", c.Source),
		zap.Int("products", c.Len()),
		zap.String("rate", c.Rate.StringFixed(2)),
	)
}

func (l *Loader) sourceName() string {
	if l.Source == nil {
		return ""
	}
	return l.Source.String()
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}
