package splitter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/domain/money"
)

func member(id int64, amount string) Member {
	return Member{ID: id, Amount: money.MustFromString(amount)}
}

func TestResolveSplit_ThreeMemberGroup(t *testing.T) {
	// $125.96 = $80.00 + $40.20 + $5.76
	anchor := money.MustFromString("125.96")
	members := []Member{
		member(1, "80.00"),
		member(2, "40.20"),
		member(3, "5.76"),
	}

	group, err := ResolveSplit(anchor, members, Options{})
	require.NoError(t, err)

	assert.Len(t, group.MemberIDs, 3)
	assert.True(t, group.MemberSum().Equal(anchor))
	// Descending-amount order: largest (cash/primary) piece first.
	assert.Equal(t, []int64{1, 2, 3}, group.MemberIDs)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", group.ID.String())
}

func TestResolveSplit_IgnoresNoiseMembers(t *testing.T) {
	anchor := money.MustFromString("125.96")
	members := []Member{
		member(4, "99.99"), // overshoots with any partner
		member(1, "80.00"),
		member(2, "40.20"),
		member(5, "130.00"), // larger than the anchor, never eligible
		member(3, "5.76"),
	}

	group, err := ResolveSplit(anchor, members, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, group.MemberIDs)
}

func TestResolveSplit_AllGroupSizes(t *testing.T) {
	// n equal pieces of $10.00 for n = 2..6.
	for n := 2; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d members", n), func(t *testing.T) {
			var members []Member
			for i := 0; i < n; i++ {
				members = append(members, member(int64(i+1), "10.00"))
			}
			anchor := money.FromCents(int64(n) * 1000)

			group, err := ResolveSplit(anchor, members, Options{})
			require.NoError(t, err)
			assert.Len(t, group.MemberIDs, n)
			assert.True(t, group.MemberSum().WithinCents(anchor, 1))
		})
	}
}

func TestResolveSplit_WithinOneCent(t *testing.T) {
	anchor := money.MustFromString("100.00")
	members := []Member{member(1, "60.00"), member(2, "39.99")}

	group, err := ResolveSplit(anchor, members, Options{})
	require.NoError(t, err)
	assert.Len(t, group.MemberIDs, 2)
}

func TestResolveSplit_NoSubsetFits(t *testing.T) {
	anchor := money.MustFromString("100.00")
	members := []Member{member(1, "60.00"), member(2, "39.00")}

	_, err := ResolveSplit(anchor, members, Options{})
	assert.ErrorIs(t, err, ledger.ErrSplitNotFound)
}

func TestResolveSplit_SingleMemberIsNotASplit(t *testing.T) {
	anchor := money.MustFromString("100.00")
	members := []Member{member(1, "100.00")}

	_, err := ResolveSplit(anchor, members, Options{})
	assert.ErrorIs(t, err, ledger.ErrNotASplit)
}

func TestResolveSplit_MemberCapRespected(t *testing.T) {
	// Seven $10 pieces against a $70 anchor: would need 7 members,
	// beyond the cap.
	anchor := money.MustFromString("70.00")
	var members []Member
	for i := int64(1); i <= 7; i++ {
		members = append(members, member(i, "10.00"))
	}

	_, err := ResolveSplit(anchor, members, Options{})
	assert.ErrorIs(t, err, ledger.ErrSplitNotFound)
}

func TestResolveSplit_BacktracksPastGreedyOvershoot(t *testing.T) {
	// Greedy largest-first picks 70 then cannot use 45; it must back
	// out and take 45 + 35.
	anchor := money.MustFromString("80.00")
	members := []Member{
		member(1, "70.00"),
		member(2, "45.00"),
		member(3, "35.00"),
	}

	group, err := ResolveSplit(anchor, members, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, group.MemberIDs)
}

func TestResolveSplit_RejectsNegativeTolerance(t *testing.T) {
	_, err := ResolveSplit(money.MustFromString("10.00"),
		[]Member{member(1, "5.00"), member(2, "5.00")},
		Options{ToleranceCents: -1})
	assert.ErrorIs(t, err, ledger.ErrToleranceViolation)
}

func TestResolveSplit_DocumentedDiscrepancyStaysUnresolved(t *testing.T) {
	// A group whose claimed members do not sum to the claimed total
	// must come back unresolved, not force-fit.
	anchor := money.MustFromString("2040.00")
	members := []Member{
		member(1, "795.00"),
		member(2, "250.00"),
		member(3, "200.00"),
	}

	_, err := ResolveSplit(anchor, members, Options{})
	assert.ErrorIs(t, err, ledger.ErrSplitNotFound)
}
