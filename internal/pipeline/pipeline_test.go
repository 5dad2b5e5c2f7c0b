package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oncoscan/internal/audit"
	"oncoscan/internal/database"
	"oncoscan/internal/inference"
	"oncoscan/internal/models"
	"oncoscan/internal/scan"
	"oncoscan/internal/scan/scantest"
	"oncoscan/internal/storage"
)

type failingRecorder struct{ calls int }

// RecordPrediction assigns an id the way the create hook does, then fails.
func (f *failingRecorder) RecordPrediction(_ context.Context, rec *models.PredictionRecord) error {
	f.calls++
	rec.ID = "assigned-before-failure"
	return audit.ErrWriteFailure
}

type failingStore struct{}

func (failingStore) Save(context.Context, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func newManager(t *testing.T, builder inference.Builder) *inference.Manager {
	t.Helper()
	m, err := inference.NewManager(context.Background(), builder,
		func() inference.Config { return inference.Config{Backend: inference.BackendSimulate} }, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func seedUser(t *testing.T) (*audit.Log, models.User) {
	t.Helper()
	db := database.NewTestDB(t)
	u := models.User{Username: "doc_user", PasswordHash: "x", FullName: "Dr. Alice Onco"}
	require.NoError(t, db.Create(&u).Error)
	return audit.New(db), u
}

func TestPredictDICOM(t *testing.T) {
	log, u := seedUser(t)
	uploads, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	p := New(newManager(t, inference.Factory{}), uploads, log, nil, zap.NewNop().Sugar())

	data := scantest.DICOM(8, 8, gradient(64), "MR")
	res, err := p.Predict(context.Background(), Request{UserID: u.ID, Username: u.Username, Filename: "study.dcm", Data: data})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AuditID)
	assert.Equal(t, "MR", res.Modality)
	assert.Equal(t, inference.BackendSimulate, res.Backend)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Contains(t, []string{inference.FindingSuspicious, inference.FindingClear}, res.Prediction)

	recs, err := log.Predictions(context.Background(), &u.ID, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.AuditID, recs[0].ID)
	assert.Equal(t, int64(len(data)), recs[0].SizeBytes)
	assert.Equal(t, storage.Digest(data), recs[0].SHA256)
	assert.Contains(t, recs[0].StorageURI, "file://")
	assert.Equal(t, res.Confidence, recs[0].Probability)
}

func TestPredictPNG(t *testing.T) {
	log, u := seedUser(t)
	p := New(newManager(t, inference.Factory{}), nil, log, nil, zap.NewNop().Sugar())

	res, err := p.Predict(context.Background(), Request{UserID: u.ID, Username: u.Username, Filename: "chest.png", Data: scantest.PNG(16, 16)})
	require.NoError(t, err)
	assert.Equal(t, "CT", res.Modality)
}

func TestPredictRejectsMalformed(t *testing.T) {
	log, u := seedUser(t)
	p := New(newManager(t, inference.Factory{}), nil, log, nil, zap.NewNop().Sugar())

	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Predict(context.Background(), Request{UserID: u.ID, Username: u.Username, Filename: "x.bin", Data: data})
			assert.ErrorIs(t, err, scan.ErrMalformedScan)
		})
	}

	recs, err := log.Predictions(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPredictBackendFailure(t *testing.T) {
	log, u := seedUser(t)
	broken := inference.BuilderFunc(func(cfg inference.Config) (inference.Backend, error) {
		return brokenBackend{Simulated: inference.NewSimulated(cfg)}, nil
	})
	p := New(newManager(t, broken), nil, log, nil, zap.NewNop().Sugar())

	_, err := p.Predict(context.Background(), Request{UserID: u.ID, Username: u.Username, Filename: "chest.png", Data: scantest.PNG(4, 4)})
	assert.ErrorIs(t, err, inference.ErrInferenceFailure)
}

func TestAuditAndStorageFailuresAreNotFatal(t *testing.T) {
	rec := &failingRecorder{}
	p := New(newManager(t, inference.Factory{}), failingStore{}, rec, nil, zap.NewNop().Sugar())

	res, err := p.Predict(context.Background(), Request{UserID: 1, Username: "doc_user", Filename: "chest.png", Data: scantest.PNG(4, 4)})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
	assert.NotEmpty(t, res.Prediction)
	assert.Empty(t, res.AuditID)
}

type brokenBackend struct {
	*inference.Simulated
}

func (brokenBackend) Predict(context.Context, inference.Tensor) (inference.Prediction, error) {
	return inference.Prediction{}, inference.ErrInferenceFailure
}

func gradient(n int) []byte {
	px := make([]byte, n)
	for i := range px {
		px[i] = byte(i * 4)
	}
	return px
}
