package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		wantErr error
	}{
		{name: "pending to processing", from: JobPending, to: JobProcessing},
		{name: "pending to cancelled", from: JobPending, to: JobCancelled},
		{name: "processing to completed", from: JobProcessing, to: JobCompleted},
		{name: "processing to failed", from: JobProcessing, to: JobFailed},
		{name: "processing to cancelled", from: JobProcessing, to: JobCancelled},
		{name: "pending to completed is invalid", from: JobPending, to: JobCompleted, wantErr: ErrInvalidTransition},
		{name: "completed is terminal", from: JobCompleted, to: JobProcessing, wantErr: ErrJobTerminal},
		{name: "cancelled is terminal", from: JobCancelled, to: JobCompleted, wantErr: ErrJobTerminal},
		{name: "failed is terminal", from: JobFailed, to: JobProcessing, wantErr: ErrJobTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &BatchJob{ID: "job-1", Status: tt.from}
			err := job.TransitionTo(tt.to)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, job.Status, "status must not change on invalid transition")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, job.Status)
			if tt.to.Terminal() {
				assert.False(t, job.CompletedAt.IsZero(), "terminal transition sets CompletedAt")
			}
		})
	}
}

func TestJobTransitionToSameStatusIsNoOp(t *testing.T) {
	job := &BatchJob{Status: JobProcessing}
	require.NoError(t, job.TransitionTo(JobProcessing))
	assert.Equal(t, JobProcessing, job.Status)
}

func TestJobPercentage(t *testing.T) {
	job := &BatchJob{TotalItems: 4, ProcessedCount: 1}
	assert.InDelta(t, 25.0, job.Percentage(), 0.001)

	empty := &BatchJob{}
	assert.InDelta(t, 100.0, empty.Percentage(), 0.001, "empty batch is complete")
}

func TestFieldValueText(t *testing.T) {
	v := FieldValue{Kind: KindList, List: []FieldValue{
		{Kind: KindString, Str: "malignancy"},
		{Kind: KindString, Str: "subtlety"},
		{Kind: KindInt, Int: 5},
	}}
	assert.Equal(t, "malignancy subtlety ", v.Text(), "non-string members contribute nothing")

	nested := FieldValue{Kind: KindNested, Nested: Content{
		"finding": {Kind: KindString, Str: "nodule"},
	}}
	assert.Equal(t, "nodule", nested.Text())
}

func TestFieldKindValid(t *testing.T) {
	for _, k := range []FieldKind{KindString, KindInt, KindFloat, KindDate, KindList, KindNested} {
		assert.True(t, k.Valid(), string(k))
	}
	assert.False(t, FieldKind("blob").Valid())
}
