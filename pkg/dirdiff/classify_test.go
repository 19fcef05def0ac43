package dirdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/gotdiff/pkg/object"
)

func parsed(t *testing.T, stream string) []ChangeRecord {
	t.Helper()
	records, err := Parse([]byte(stream))
	require.NoError(t, err)
	return records
}

func TestClassify_BlobBuckets(t *testing.T) {
	records := parsed(t,
		raw("100644", "100755", hashOf('a'), hashOf('b'), "M", "both.sh")+
			raw("100644", "000000", hashOf('c'), object.ZeroHash, "D", "deleted.txt")+
			raw("000000", "100644", object.ZeroHash, hashOf('d'), "A", "added.txt")+
			raw("100644", "100644", hashOf('e'), object.ZeroHash, "M", "edited.txt")+
			raw("000000", "100644", object.ZeroHash, object.ZeroHash, "A", "new-untracked.txt"))

	plan := Classify(records)

	assert.Equal(t, SideIndex{
		{Mode: "100644", Hash: hashOf('a'), Path: "both.sh"},
		{Mode: "100644", Hash: hashOf('c'), Path: "deleted.txt"},
		{Mode: "100644", Hash: hashOf('e'), Path: "edited.txt"},
	}, plan.Left)
	assert.Equal(t, SideIndex{
		{Mode: "100755", Hash: hashOf('b'), Path: "both.sh"},
		{Mode: "100644", Hash: hashOf('d'), Path: "added.txt"},
	}, plan.Right)
	assert.Equal(t, []string{"edited.txt", "new-untracked.txt"}, plan.WorkTree)
	assert.Empty(t, plan.Submodules)
}

func TestClassify_WorkTreePathsHaveNoRightEntry(t *testing.T) {
	records := parsed(t,
		raw("100644", "100644", hashOf('a'), hashOf('b'), "M", "f")+
			raw("100644", "100644", hashOf('a'), object.ZeroHash, "M", "f"))

	plan := Classify(records)

	assert.Empty(t, plan.Right)
	assert.Equal(t, []string{"f"}, plan.WorkTree)
	for _, e := range plan.Right {
		assert.NotContains(t, plan.WorkTree, e.Path)
	}
}

func TestClassify_DuplicatesKeepFirstPositionLastValue(t *testing.T) {
	records := parsed(t,
		raw("100644", "100644", hashOf('a'), hashOf('b'), "M", "x")+
			raw("100644", "100644", hashOf('c'), hashOf('d'), "M", "y")+
			raw("100755", "100755", hashOf('e'), hashOf('f'), "M", "x"))

	plan := Classify(records)

	require.Len(t, plan.Left, 2)
	assert.Equal(t, []string{"x", "y"}, plan.Left.Paths())
	assert.Equal(t, IndexEntry{Mode: "100755", Hash: hashOf('e'), Path: "x"}, plan.Left[0])
	assert.Equal(t, IndexEntry{Mode: "100755", Hash: hashOf('f'), Path: "x"}, plan.Right[0])
}

func TestClassify_Submodules(t *testing.T) {
	records := parsed(t,
		raw("160000", "160000", hashOf('1'), hashOf('2'), "M", "libs/both")+
			raw("000000", "160000", object.ZeroHash, hashOf('3'), "A", "libs/added")+
			raw("160000", "000000", hashOf('4'), object.ZeroHash, "D", "libs/removed")+
			raw("160000", "160000", hashOf('5'), object.ZeroHash, "M", "libs/dirty"))

	plan := Classify(records)

	assert.Empty(t, plan.Left)
	assert.Empty(t, plan.Right)
	assert.Empty(t, plan.WorkTree)
	require.Len(t, plan.Submodules, 4)

	both := plan.Submodules[0]
	assert.Equal(t, "libs/both", both.Path)
	assert.Equal(t, hashOf('1'), both.Left.Hash)
	assert.Equal(t, hashOf('2'), both.Right.Hash)

	added := plan.Submodules[1]
	assert.False(t, added.Left.Defined())
	assert.True(t, added.Right.Defined())

	removed := plan.Submodules[2]
	assert.True(t, removed.Left.Defined())
	assert.False(t, removed.Right.Defined())

	dirty := plan.Submodules[3]
	assert.True(t, dirty.Left.Defined())
	assert.False(t, dirty.Right.Defined(), "a zero id is absent, not a commit")
}

func TestClassify_TypeChangeToSubmoduleStaysInOneBucket(t *testing.T) {
	records := parsed(t, raw("100644", "160000", hashOf('a'), hashOf('b'), "T", "vendor/x"))

	plan := Classify(records)

	assert.Empty(t, plan.Left)
	assert.Empty(t, plan.Right)
	require.Len(t, plan.Submodules, 1)
}

func TestClassify_Rename(t *testing.T) {
	records := parsed(t, raw("100644", "100644", hashOf('a'), hashOf('b'), "R090", "a.txt", "b.txt"))

	plan := Classify(records)

	assert.Equal(t, []string{"a.txt"}, plan.Left.Paths())
	assert.Equal(t, []string{"b.txt"}, plan.Right.Paths())
}

func TestClassify_Pure(t *testing.T) {
	records := parsed(t,
		raw("100644", "100644", hashOf('a'), object.ZeroHash, "M", "f")+
			raw("160000", "160000", hashOf('1'), hashOf('2'), "M", "s"))

	assert.Equal(t, Classify(records), Classify(records))
	assert.True(t, Classify(nil).Empty())
}

func TestPlan_WritesNothingForDirtySubmodulesOnly(t *testing.T) {
	dirty := Classify(parsed(t, raw("160000", "160000", object.ZeroHash, object.ZeroHash, "M", "vendor/lib")))
	assert.False(t, dirty.Empty())
	assert.True(t, dirty.writesNothing())

	advanced := Classify(parsed(t, raw("160000", "160000", hashOf('1'), object.ZeroHash, "M", "vendor/lib")))
	assert.False(t, advanced.writesNothing(), "a recorded left commit gets a stub")

	blob := Classify(parsed(t, raw("100644", "100644", hashOf('a'), object.ZeroHash, "M", "a.txt")))
	assert.False(t, blob.writesNothing())
}
