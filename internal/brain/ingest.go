package brain

import (
	"context"
	"strings"

	"github.com/iammorganparry/clive/apps/brain/internal/metrics"
	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/privacy"
)

// DefaultIngestSource labels documents ingested without a name.
const DefaultIngestSource = "document"

// IngestDocument mines text for question/answer pairs and learns each one.
// <private> blocks are dropped before mining.
// A pair that fails to learn is counted and skipped; the call itself only
// fails on cancellation.
func (b *Brain) IngestDocument(ctx context.Context, text, source string) (models.IngestResponse, error) {
	start := b.now()
	source = strings.TrimSpace(source)
	if source == "" {
		source = DefaultIngestSource
	}

	text, redacted := privacy.Redact(text)
	if redacted > 0 {
		b.logger.Debug("private blocks redacted", "source", source, "count", redacted)
	}
	pairs := b.extractor.ExtractPairs(text)
	resp := models.IngestResponse{ExtractedCount: len(pairs)}
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return resp, err
		}
		c := float64(p.Confidence)
		_, err := b.Learn(ctx, models.LearnRequest{
			Question:   p.Question,
			Answer:     p.Answer,
			Confidence: &c,
			Source:     "file:" + source,
		})
		if err != nil {
			resp.FailedCount++
			b.logger.Warn("learn extracted pair",
				"source", source,
				"mode", string(p.Mode),
				"error", err,
			)
			continue
		}
		resp.LearnedCount++
	}
	resp.Status = ingestStatus(resp)

	b.metrics.ObserveIngest(resp.LearnedCount, resp.FailedCount)
	if resp.FailedCount > 0 {
		b.metrics.ObserveError(metrics.ErrIngest)
	}

	durationMs := b.now().Sub(start).Milliseconds()
	if b.ingestLog != nil {
		rec := &models.IngestRecord{
			Source:     source,
			Extracted:  resp.ExtractedCount,
			Learned:    resp.LearnedCount,
			Failed:     resp.FailedCount,
			Status:     resp.Status,
			DurationMs: durationMs,
			CreatedAt:  b.now().Unix(),
		}
		if err := b.ingestLog.Record(rec); err != nil {
			b.logger.Warn("record ingest log", "source", source, "error", err)
		}
	}

	b.logger.Info("document ingested",
		"source", source,
		"extracted", resp.ExtractedCount,
		"learned", resp.LearnedCount,
		"failed", resp.FailedCount,
		"duration_ms", durationMs,
	)
	return resp, nil
}

func ingestStatus(r models.IngestResponse) models.IngestStatus {
	switch {
	case r.FailedCount == 0:
		return models.IngestSuccess
	case r.LearnedCount == 0:
		return models.IngestFailed
	default:
		return models.IngestPartial
	}
}
