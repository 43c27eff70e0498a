package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/bulk-mapper/pkg/core"
)

func items(inputs ...string) []core.WorkItem {
	out := make([]core.WorkItem, len(inputs))
	for i, in := range inputs {
		out[i] = core.WorkItem{Input: in}
	}
	return out
}

func TestPlan_SkipsExisting(t *testing.T) {
	existing := core.Set{}
	existing.Add(core.Identity{Input: "abc.com"})

	p := Plan(items("abc.com", "yahoo.com"), existing, false)

	assert.Equal(t, items("yahoo.com"), p.ToProcess)
	assert.Equal(t, items("abc.com"), p.Skipped)
}

func TestPlan_ForceProcessesEverything(t *testing.T) {
	existing := core.Set{}
	existing.Add(core.Identity{Input: "abc.com"})

	p := Plan(items("abc.com", "yahoo.com"), existing, true)

	assert.Equal(t, items("abc.com", "yahoo.com"), p.ToProcess)
	assert.Empty(t, p.Skipped)
}

func TestPlan_PreservesOrderAndDuplicates(t *testing.T) {
	existing := core.Set{}
	existing.Add(core.Identity{Input: "b"})

	p := Plan(items("c", "a", "b", "a", "c", "b"), existing, false)

	assert.Equal(t, items("c", "a", "a", "c"), p.ToProcess)
	assert.Equal(t, items("b", "b"), p.Skipped)
}

func TestPlan_HintIsPartOfIdentity(t *testing.T) {
	existing := core.Set{}
	existing.Add(core.Identity{Input: "apple", Hint: "fruit"})

	in := []core.WorkItem{{Input: "apple", Hint: "fruit"}, {Input: "apple", Hint: "company"}, {Input: "apple"}}
	p := Plan(in, existing, false)

	assert.Equal(t, in[1:], p.ToProcess)
	assert.Equal(t, in[:1], p.Skipped)
}

func TestPlan_NilExisting(t *testing.T) {
	p := Plan(items("a", "b"), nil, false)
	assert.Len(t, p.ToProcess, 2)
	assert.Empty(t, p.Skipped)
}

func TestPlan_Empty(t *testing.T) {
	p := Plan(nil, core.Set{}, false)
	assert.Empty(t, p.ToProcess)
	assert.Empty(t, p.Skipped)
}

func TestBatches_Size(t *testing.T) {
	units := Batches(items("a", "b", "c", "d", "e"), 2)

	require.Len(t, units, 3)
	assert.Equal(t, items("a", "b"), units[0].Items)
	assert.Equal(t, items("c", "d"), units[1].Items)
	assert.Equal(t, items("e"), units[2].Items)
	for i, u := range units {
		assert.Equal(t, i, u.Index)
	}
}

func TestBatches_SplitsOnHintChange(t *testing.T) {
	in := []core.WorkItem{
		{Input: "a", Hint: "x"},
		{Input: "b", Hint: "x"},
		{Input: "c", Hint: "y"},
		{Input: "d"},
		{Input: "e"},
	}

	units := Batches(in, 10)

	require.Len(t, units, 3)
	assert.Equal(t, in[0:2], units[0].Items)
	assert.Equal(t, in[2:3], units[1].Items)
	assert.Equal(t, in[3:5], units[2].Items)
}

func TestBatches_InvalidSizeMeansOne(t *testing.T) {
	units := Batches(items("a", "b"), 0)
	assert.Len(t, units, 2)
}

func TestBatches_Empty(t *testing.T) {
	assert.Empty(t, Batches(nil, 4))
}
