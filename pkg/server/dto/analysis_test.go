package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph/pkg/graph"
)

func TestRelatedRequestTraversalOptions(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		maxHops   int
		minWeight float64
	}{
		{name: "omitted limits use defaults", body: `{"query":"oauth"}`, maxHops: graph.UseDefault, minWeight: graph.UseDefault},
		{name: "explicit zero is kept", body: `{"query":"oauth","max_hops":0,"min_weight":0}`, maxHops: 0, minWeight: 0},
		{name: "explicit values", body: `{"query":"oauth","max_hops":2,"min_weight":0.4}`, maxHops: 2, minWeight: 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req RelatedRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			opts := req.TraversalOptions()
			assert.Equal(t, tt.maxHops, opts.MaxHops)
			assert.Equal(t, tt.minWeight, opts.MinWeight)
		})
	}
}

func TestRelatedRequestValidateRejectsNegativeLimits(t *testing.T) {
	var req RelatedRequest
	require.NoError(t, json.Unmarshal([]byte(`{"query":"oauth","documents":[{"id":"a","text":"OAuth scopes"}],"max_hops":-1}`), &req))
	assert.ErrorIs(t, req.Validate(0), ErrNegativeTraversal)

	req.MaxHops = nil
	assert.NoError(t, req.Validate(0))
}
