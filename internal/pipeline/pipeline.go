// Package pipeline runs one uploaded study through decode, inference and
// the audit trail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"oncoscan/internal/inference"
	"oncoscan/internal/metrics"
	"oncoscan/internal/models"
	"oncoscan/internal/scan"
	"oncoscan/internal/storage"
)

// Recorder appends prediction records to the audit trail.
type Recorder interface {
	RecordPrediction(ctx context.Context, rec *models.PredictionRecord) error
}

type Request struct {
	UserID   uint
	Username string
	Filename string
	Data     []byte
}

type Result struct {
	AuditID        string  `json:"audit_id,omitempty"`
	UserID         uint    `json:"user_id"`
	Filename       string  `json:"filename"`
	Modality       string  `json:"scan_modality"`
	Prediction     string  `json:"prediction"`
	Confidence     float64 `json:"confidence"`
	Backend        string  `json:"backend"`
	ProcessingTime float64 `json:"processing_time_seconds"`
}

type Pipeline struct {
	manager  *inference.Manager
	uploads  storage.Store
	recorder Recorder
	metrics  *metrics.Metrics
	lg       *zap.SugaredLogger
	now      func() time.Time
}

func New(manager *inference.Manager, uploads storage.Store, recorder Recorder, m *metrics.Metrics, lg *zap.SugaredLogger) *Pipeline {
	if uploads == nil {
		uploads = storage.Discard{}
	}
	return &Pipeline{manager: manager, uploads: uploads, recorder: recorder, metrics: m, lg: lg, now: time.Now}
}

// Predict returns scan.ErrMalformedScan for undecodable input and an
// inference error when the backend fails. Storage and audit failures are
// logged and do not fail the request.
func (p *Pipeline) Predict(ctx context.Context, req Request) (Result, error) {
	start := p.now()
	if len(req.Data) == 0 {
		p.metrics.ObservePrediction("", metrics.OutcomeRejected, 0)
		return Result{}, fmt.Errorf("%w: empty payload", scan.ErrMalformedScan)
	}

	uri, err := p.uploads.Save(ctx, req.Filename, req.Data)
	if err != nil {
		p.metrics.UploadStoreFailed()
		p.lg.Warnw("upload store failed", "user", req.Username, "filename", req.Filename, "error", err)
	}

	sc, err := scan.Decode(req.Data, req.Filename)
	if err != nil {
		p.metrics.ObservePrediction("", metrics.OutcomeRejected, p.now().Sub(start))
		return Result{}, err
	}

	lease, err := p.manager.Acquire()
	if err != nil {
		p.metrics.ObservePrediction("", metrics.OutcomeError, p.now().Sub(start))
		return Result{}, err
	}
	backend := lease.Backend()
	pred, err := p.infer(ctx, backend, sc)
	lease.Release()
	elapsed := p.now().Sub(start)
	if err != nil {
		p.metrics.ObservePrediction(backend.Name(), metrics.OutcomeError, elapsed)
		return Result{}, err
	}
	p.metrics.ObservePrediction(backend.Name(), metrics.OutcomeOK, elapsed)

	rec := &models.PredictionRecord{
		UserID:         req.UserID,
		Username:       req.Username,
		Filename:       req.Filename,
		Modality:       sc.Modality,
		SizeBytes:      int64(len(req.Data)),
		SHA256:         storage.Digest(req.Data),
		StorageURI:     uri,
		BackendName:    backend.Name(),
		PrimaryFinding: pred.Finding,
		Probability:    pred.Probability,
		ProcessingMS:   elapsed.Milliseconds(),
	}
	// The id is only reported once the record is stored.
	auditID := ""
	if err := p.recorder.RecordPrediction(ctx, rec); err != nil {
		p.metrics.AuditWriteFailed()
		p.lg.Errorw("audit write failed", "user", req.Username, "filename", req.Filename, "error", err)
	} else {
		auditID = rec.ID
	}

	return Result{
		AuditID:        auditID,
		UserID:         req.UserID,
		Filename:       req.Filename,
		Modality:       sc.Modality,
		Prediction:     pred.Finding,
		Confidence:     pred.Probability,
		Backend:        backend.Name(),
		ProcessingTime: math.Round(elapsed.Seconds()*1000) / 1000,
	}, nil
}

func (p *Pipeline) infer(ctx context.Context, b inference.Backend, sc *scan.Scan) (inference.Prediction, error) {
	t, err := scan.ToTensor(sc.Image, b.InputSpec())
	if err != nil {
		return inference.Prediction{}, errors.Join(inference.ErrInferenceFailure, err)
	}
	return b.Predict(ctx, t)
}
