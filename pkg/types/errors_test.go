package types

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrapKind(t *testing.T) {
	cause := errors.New("moov atom not found")

	err := WrapKind(ErrInputOpen, cause, "probe clip.mp4")

	assert.True(t, errors.Is(err, ErrInputOpen))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrEncode))
	assert.Equal(t, "cannot open input video: probe clip.mp4: moov atom not found", err.Error())
}

func TestWrapKindNil(t *testing.T) {
	assert.NoError(t, WrapKind(ErrEncode, nil, "ignored"))
	assert.NoError(t, WrapKindf(ErrEncode, nil, "ignored %d", 1))
}

func TestBatchReport(t *testing.T) {
	r := &BatchReport{}
	assert.False(t, r.HasFailures())
	assert.Equal(t, 0, r.Total())

	r.Succeeded = append(r.Succeeded, FileResult{Name: "a.mp4"})
	r.Failed = append(r.Failed, FileResult{Name: "b.mp4", Err: ErrInputOpen})
	assert.True(t, r.HasFailures())
	assert.Equal(t, 2, r.Total())
}
