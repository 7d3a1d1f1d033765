package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimit_Allows_Boundary(t *testing.T) {
	limit := Bounded(3)

	assert.True(t, limit.Allows(0))
	assert.True(t, limit.Allows(2))
	// At the limit, one more is not allowed
	assert.False(t, limit.Allows(3))
	assert.False(t, limit.Allows(4))
}

func TestLimit_Unlimited_AllowsEverything(t *testing.T) {
	limit := Unlimited()

	assert.True(t, limit.IsUnlimited())
	assert.True(t, limit.Allows(0))
	assert.True(t, limit.Allows(1_000_000))

	_, bounded := limit.Value()
	assert.False(t, bounded)
}

func TestLimit_ZeroValueIsUnlimited(t *testing.T) {
	var limit Limit
	assert.True(t, limit.IsUnlimited())
}

func TestLimit_JSON_NullMeansUnlimited(t *testing.T) {
	var limit Limit
	require.NoError(t, json.Unmarshal([]byte("null"), &limit))
	assert.True(t, limit.IsUnlimited())

	data, err := json.Marshal(Unlimited())
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestLimit_JSON_LegacyNegativeMeansUnlimited(t *testing.T) {
	var limit Limit
	require.NoError(t, json.Unmarshal([]byte("-1"), &limit))
	assert.True(t, limit.IsUnlimited())
}

func TestLimit_JSON_BoundedRoundTrip(t *testing.T) {
	var limit Limit
	require.NoError(t, json.Unmarshal([]byte("25"), &limit))

	value, bounded := limit.Value()
	assert.True(t, bounded)
	assert.Equal(t, int64(25), value)

	data, err := json.Marshal(limit)
	require.NoError(t, err)
	assert.Equal(t, "25", string(data))
}

func TestPlanLimits_AbsentKeysDefaultToUnlimited(t *testing.T) {
	plan := &Plan{Name: "partial", Features: JSONB(`{"max_products": 10}`)}

	limits, err := plan.Limits()
	require.NoError(t, err)

	value, bounded := limits.For(ResourceProducts).Value()
	assert.True(t, bounded)
	assert.Equal(t, int64(10), value)

	// Orders key is absent entirely
	assert.True(t, limits.For(ResourceOrders).IsUnlimited())
	assert.True(t, limits.For(ResourceStaff).IsUnlimited())
}

func TestPlanLimits_EmptyFeaturesMeansUnlimited(t *testing.T) {
	plan := &Plan{Name: "enterprise"}

	limits, err := plan.Limits()
	require.NoError(t, err)

	for _, resource := range AllResourceTypes {
		assert.True(t, limits.For(resource).IsUnlimited(), "resource %s", resource)
	}
}

func TestPlan_Limits_RejectsMalformedFeatures(t *testing.T) {
	plan := &Plan{Name: "broken", Features: JSONB(`{"max_products": "lots"}`)}

	_, err := plan.Limits()
	assert.Error(t, err)
}

func TestPlan_SetLimits_RoundTrip(t *testing.T) {
	plan := &Plan{Name: "starter"}
	require.NoError(t, plan.SetLimits(PlanLimits{
		Products: Bounded(100),
		Orders:   Bounded(1000),
	}))

	limits, err := plan.Limits()
	require.NoError(t, err)

	value, _ := limits.For(ResourceProducts).Value()
	assert.Equal(t, int64(100), value)
	assert.True(t, limits.For(ResourcePages).IsUnlimited())
}
