package jsontree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radnorm/radnorm/internal/core/domain"
)

func TestParseObject(t *testing.T) {
	p := New()
	raw := &domain.RawInput{Content: []byte(`{
		"study_uid": "1.3.6.1.4",
		"nodules": [
			{"id": "n1", "malignancy": 3},
			{"id": "n2", "malignancy": 5}
		],
		"reviewed": true
	}`)}

	root, err := p.Parse(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "root", root.Name)
	assert.Equal(t, "1.3.6.1.4", root.Child("study_uid").Value)
	assert.Equal(t, "true", root.Child("reviewed").Value)

	nodules := root.ChildrenNamed("nodules")
	require.Len(t, nodules, 2, "arrays flatten into repeated children")
	assert.Equal(t, "n1", nodules[0].Child("id").Value)
	assert.Equal(t, "5", nodules[1].Child("malignancy").Value)
}

func TestParseIsOrderIndependent(t *testing.T) {
	p := New()
	a, err := p.Parse(context.Background(), &domain.RawInput{Content: []byte(`{"x": 1, "y": 2}`)})
	require.NoError(t, err)
	b, err := p.Parse(context.Background(), &domain.RawInput{Content: []byte(`{"y": 2, "x": 1}`)})
	require.NoError(t, err)
	assert.Equal(t, a, b, "member order must not affect the tree")
}

func TestParsePreservesNumberText(t *testing.T) {
	p := New()
	root, err := p.Parse(context.Background(), &domain.RawInput{Content: []byte(`{"score": 0.95}`)})
	require.NoError(t, err)
	assert.Equal(t, "0.95", root.Child("score").Value)
}

func TestParseErrors(t *testing.T) {
	p := New()
	for _, content := range []string{`{`, `not json`, `{"a":1} trailing`} {
		_, err := p.Parse(context.Background(), &domain.RawInput{Content: []byte(content)})
		require.ErrorIs(t, err, domain.ErrParse, content)
	}
}
