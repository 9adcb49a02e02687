package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellis212/insurance-manager-sub000/internal/model"
	"github.com/cellis212/insurance-manager-sub000/internal/store"
)

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &manager.UploadOutput{Location: "s3://" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestArchive_UploadsTurnAsJSON(t *testing.T) {
	up := &fakeUploader{}
	a := newS3Archiver(up, "sims", "fall-2026", quiet())
	commit := &store.TurnCommit{
		Turn:    12,
		World:   model.World{Turn: 12, Phase: model.PhasePeak, Seed: 4},
		Results: []model.TurnResult{{CompanyID: "acme", Turn: 12}},
	}

	require.NoError(t, a.Archive(context.Background(), commit))
	require.Len(t, up.inputs, 1)
	assert.Equal(t, "sims", aws.ToString(up.inputs[0].Bucket))
	assert.Equal(t, "fall-2026/turn-00012.json", aws.ToString(up.inputs[0].Key))
	assert.Equal(t, "application/json", aws.ToString(up.inputs[0].ContentType))

	var got store.TurnCommit
	require.NoError(t, json.Unmarshal(up.bodies[0], &got))
	assert.Equal(t, 12, got.Turn)
	assert.Equal(t, model.PhasePeak, got.World.Phase)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "acme", got.Results[0].CompanyID)
}

func TestArchive_KeyWithoutPrefix(t *testing.T) {
	a := newS3Archiver(&fakeUploader{}, "sims", "", quiet())
	assert.Equal(t, "turn-00003.json", a.Key(3))
}

func TestArchive_UploadError(t *testing.T) {
	a := newS3Archiver(&fakeUploader{err: errors.New("access denied")}, "sims", "", quiet())
	err := a.Archive(context.Background(), &store.TurnCommit{Turn: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload turn 1")
}

func TestNewS3Archiver_RequiresBucket(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), "", "x", nil)
	assert.ErrorIs(t, err, ErrNoBucket)
}
