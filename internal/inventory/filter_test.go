package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	var nilFilter *Filter
	assert.True(t, nilFilter.Match("anything"))
	assert.False(t, nilFilter.Active())

	empty, err := NewFilter([]string{"", "  "}, false)
	require.NoError(t, err)
	assert.False(t, empty.Active())
	assert.True(t, empty.Match("tools"))

	f, err := NewFilter([]string{"stripe-*", "{redis,mcp}"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"stripe-*", "{redis,mcp}"}, f.Patterns())
	assert.True(t, f.Match("stripe-payments"))
	assert.True(t, f.Match("redis"))
	assert.False(t, f.Match("Redis"))
	assert.False(t, f.Match("openrouter"))

	folded, err := NewFilter([]string{"Stripe-*"}, true)
	require.NoError(t, err)
	assert.True(t, folded.Match("stripe-payments"))
	assert.True(t, folded.Match("STRIPE-x"))

	_, err = NewFilter([]string{"[unclosed"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid plugin pattern "[unclosed"`)
}
