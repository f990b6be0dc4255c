package bidding_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cargomesh/freightbid/internal/config"
	"github.com/cargomesh/freightbid/internal/entity"
	rfqrepo "github.com/cargomesh/freightbid/internal/repository/rfq"
	"github.com/cargomesh/freightbid/internal/service/bidding"
	"github.com/cargomesh/freightbid/internal/service/bidding/biddingtest"
	"github.com/cargomesh/freightbid/pkg/errorbank"
)

func newEngine(t *testing.T) (*bidding.Service, *biddingtest.Backend, *biddingtest.Publisher) {
	t.Helper()
	backend := biddingtest.NewBackend()
	publisher := &biddingtest.Publisher{}
	cfg := config.Config{
		Cache: config.Cache{DefaultTTL: time.Minute},
		Messaging: config.Messaging{
			Enabled: true,
			Kafka:   config.Kafka{Topic: "rfq.events"},
		},
	}
	svc := bidding.NewService(backend, backend, nil, cfg, zap.NewNop(), publisher)
	return svc, backend, publisher
}

func orgPrincipal() bidding.Principal {
	return bidding.Principal{ID: uuid.New(), Role: entity.RoleOrg}
}

func vendorPrincipal() bidding.Principal {
	return bidding.Principal{ID: uuid.New(), Role: entity.RoleVendor}
}

func adminPrincipal() bidding.Principal {
	return bidding.Principal{ID: uuid.New(), Role: entity.RoleAdmin}
}

func mustCreateRFQ(t *testing.T, svc *bidding.Service, org bidding.Principal) *entity.RFQ {
	t.Helper()
	rfq, err := svc.CreateRFQ(context.Background(), org, "Rotterdam", "Singapore", "40ft reefer")
	require.NoError(t, err)
	return rfq
}

func mustPublish(t *testing.T, svc *bidding.Service, org bidding.Principal, rfqID uuid.UUID) {
	t.Helper()
	_, err := svc.Publish(context.Background(), org, rfqID)
	require.NoError(t, err)
}

func TestCreateRFQ(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()

	rfq, err := svc.CreateRFQ(context.Background(), org, "Hamburg", "Shanghai", "")
	require.NoError(t, err)
	require.Equal(t, entity.RFQDraft, rfq.Status)
	require.Equal(t, org.ID, rfq.OrgID)

	_, err = svc.CreateRFQ(context.Background(), vendorPrincipal(), "Hamburg", "Shanghai", "")
	require.True(t, errorbank.HasCode(err, bidding.CodeForbidden))

	_, err = svc.CreateRFQ(context.Background(), org, "  ", "Shanghai", "")
	require.Error(t, err)
}

func TestPublishTransitions(t *testing.T) {
	svc, backend, publisher := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)

	updated, err := svc.Publish(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RFQLive, updated.Status)

	round, err := backend.ActiveRound(context.Background(), rfq.ID)
	require.NoError(t, err)
	require.Equal(t, 1, round.RoundNo)
	require.Len(t, publisher.Published(), 1)

	// Already live.
	_, err = svc.Publish(context.Background(), org, rfq.ID)
	require.True(t, errorbank.HasCode(err, bidding.CodeInvalidTransition))
}

func TestPublishAccessControl(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)

	_, err := svc.Publish(context.Background(), vendorPrincipal(), rfq.ID)
	require.True(t, errorbank.HasCode(err, bidding.CodeForbidden))

	// Another organization's RFQ reads as missing, not forbidden.
	_, err = svc.Publish(context.Background(), orgPrincipal(), rfq.ID)
	require.True(t, errorbank.HasCode(err, bidding.CodeNotFound))

	_, err = svc.Publish(context.Background(), org, uuid.New())
	require.True(t, errorbank.HasCode(err, bidding.CodeNotFound))
}

func TestUnpublishReopensAsNextRound(t *testing.T) {
	svc, backend, _ := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq.ID)

	updated, err := svc.Unpublish(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RFQDraft, updated.Status)

	_, err = backend.ActiveRound(context.Background(), rfq.ID)
	require.ErrorIs(t, err, rfqrepo.ErrNoActiveRound)

	mustPublish(t, svc, org, rfq.ID)
	round, err := backend.ActiveRound(context.Background(), rfq.ID)
	require.NoError(t, err)
	require.Equal(t, 2, round.RoundNo)
}

func TestUnpublishBlockedByBids(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq.ID)

	_, err := svc.SubmitBid(context.Background(), vendorPrincipal(), rfq.ID, decimal.NewFromInt(500), 7)
	require.NoError(t, err)

	_, err = svc.Unpublish(context.Background(), org, rfq.ID)
	require.True(t, errorbank.HasCode(err, bidding.CodeRoundHasBids))

	// Still live after the rejected transition.
	got, err := svc.GetRFQ(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RFQLive, got.Status)
}

func TestCloseTransitions(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)

	_, err := svc.Close(context.Background(), org, rfq.ID)
	require.True(t, errorbank.HasCode(err, bidding.CodeInvalidTransition))

	mustPublish(t, svc, org, rfq.ID)
	updated, err := svc.Close(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RFQClosed, updated.Status)

	// CLOSED is terminal.
	_, err = svc.Close(context.Background(), org, rfq.ID)
	require.True(t, errorbank.HasCode(err, bidding.CodeInvalidTransition))
	_, err = svc.Publish(context.Background(), org, rfq.ID)
	require.True(t, errorbank.HasCode(err, bidding.CodeInvalidTransition))
}

func TestSubmitBid(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	vendor := vendorPrincipal()
	rfq := mustCreateRFQ(t, svc, org)

	// Draft is not open for bidding.
	_, err := svc.SubmitBid(context.Background(), vendor, rfq.ID, decimal.NewFromInt(500), 7)
	require.True(t, errorbank.HasCode(err, bidding.CodeRFQNotOpen))

	mustPublish(t, svc, org, rfq.ID)

	bid, err := svc.SubmitBid(context.Background(), vendor, rfq.ID, decimal.NewFromInt(500), 7)
	require.NoError(t, err)
	require.Equal(t, vendor.ID, bid.VendorID)
	require.False(t, bid.IsWinner)

	// One bid per vendor per round.
	_, err = svc.SubmitBid(context.Background(), vendor, rfq.ID, decimal.NewFromInt(450), 6)
	require.True(t, errorbank.HasCode(err, bidding.CodeDuplicateBid))

	// A second vendor is fine.
	_, err = svc.SubmitBid(context.Background(), vendorPrincipal(), rfq.ID, decimal.NewFromInt(450), 6)
	require.NoError(t, err)
}

func TestSubmitBidValidation(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	vendor := vendorPrincipal()
	rfq := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq.ID)

	cases := []struct {
		name        string
		price       decimal.Decimal
		transitDays int
	}{
		{name: "zero price", price: decimal.Zero, transitDays: 7},
		{name: "negative price", price: decimal.NewFromInt(-10), transitDays: 7},
		{name: "zero transit days", price: decimal.NewFromInt(500), transitDays: 0},
		{name: "negative transit days", price: decimal.NewFromInt(500), transitDays: -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitBid(context.Background(), vendor, rfq.ID, tc.price, tc.transitDays)
			require.True(t, errorbank.HasCode(err, bidding.CodeInvalidBidValue))
		})
	}

	_, err := svc.SubmitBid(context.Background(), org, rfq.ID, decimal.NewFromInt(500), 7)
	require.True(t, errorbank.HasCode(err, bidding.CodeForbidden))

	_, err = svc.SubmitBid(context.Background(), vendor, uuid.New(), decimal.NewFromInt(500), 7)
	require.True(t, errorbank.HasCode(err, bidding.CodeNotFound))
}

func TestSubmitBidNewRoundAfterReopen(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	vendor := vendorPrincipal()
	rfq := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq.ID)

	first, err := svc.SubmitBid(context.Background(), vendor, rfq.ID, decimal.NewFromInt(500), 7)
	require.NoError(t, err)

	// Closing ends bidding for good.
	_, err = svc.Close(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	_, err = svc.SubmitBid(context.Background(), vendor, rfq.ID, decimal.NewFromInt(480), 6)
	require.True(t, errorbank.HasCode(err, bidding.CodeRFQNotOpen))

	// Unpublish-republish opens a fresh round the vendor may bid in
	// again.
	rfq2 := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq2.ID)
	_, err = svc.Unpublish(context.Background(), org, rfq2.ID)
	require.NoError(t, err)
	mustPublish(t, svc, org, rfq2.ID)

	second, err := svc.SubmitBid(context.Background(), vendor, rfq2.ID, decimal.NewFromInt(480), 6)
	require.NoError(t, err)
	require.NotEqual(t, first.RoundID, second.RoundID)
}

func TestSelectWinner(t *testing.T) {
	svc, _, publisher := newEngine(t)
	org := orgPrincipal()
	vendor := vendorPrincipal()
	rfq := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq.ID)

	bid, err := svc.SubmitBid(context.Background(), vendor, rfq.ID, decimal.NewFromInt(500), 7)
	require.NoError(t, err)

	before := len(publisher.Published())
	updated, winner, err := svc.SelectWinner(context.Background(), org, rfq.ID, bid.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RFQClosed, updated.Status)
	require.True(t, winner.IsWinner)
	require.Equal(t, bid.ID, winner.ID)
	require.Len(t, publisher.Published(), before+1)

	// Selecting again is rejected, even for the same bid.
	_, _, err = svc.SelectWinner(context.Background(), org, rfq.ID, bid.ID)
	require.True(t, errorbank.HasCode(err, bidding.CodeAlreadyDecided))
}

func TestSelectWinnerRejectsForeignBid(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq.ID)

	_, err := svc.SubmitBid(context.Background(), vendorPrincipal(), rfq.ID, decimal.NewFromInt(500), 7)
	require.NoError(t, err)

	// A bid id that is not part of the active round rolls the whole
	// transition back; the RFQ stays live.
	_, _, err = svc.SelectWinner(context.Background(), org, rfq.ID, uuid.New())
	require.True(t, errorbank.HasCode(err, bidding.CodeBidNotFound))

	got, err := svc.GetRFQ(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RFQLive, got.Status)
}

func TestSelectWinnerOnDraft(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)

	_, _, err := svc.SelectWinner(context.Background(), org, rfq.ID, uuid.New())
	require.True(t, errorbank.HasCode(err, bidding.CodeInvalidTransition))
}

func TestSelectWinnerRace(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq.ID)

	bidA, err := svc.SubmitBid(context.Background(), vendorPrincipal(), rfq.ID, decimal.NewFromInt(500), 7)
	require.NoError(t, err)
	bidB, err := svc.SubmitBid(context.Background(), vendorPrincipal(), rfq.ID, decimal.NewFromInt(450), 9)
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		wins   int
		losses int
	)
	record := func(err error) error {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			wins++
		case errorbank.HasCode(err, bidding.CodeAlreadyDecided):
			losses++
		default:
			return err
		}
		return nil
	}

	var g errgroup.Group
	for _, bidID := range []uuid.UUID{bidA.ID, bidB.ID} {
		bidID := bidID
		g.Go(func() error {
			_, _, err := svc.SelectWinner(context.Background(), org, rfq.ID, bidID)
			return record(err)
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)

	// Exactly one winner flag across the whole RFQ.
	ranked, err := svc.ListRanked(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	winners := 0
	for _, rb := range ranked {
		if rb.Bid.IsWinner {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestListRankedOrdering(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq.ID)

	slow := vendorPrincipal()
	fast := vendorPrincipal()
	cheap := vendorPrincipal()

	_, err := svc.SubmitBid(context.Background(), slow, rfq.ID, decimal.NewFromInt(500), 5)
	require.NoError(t, err)
	_, err = svc.SubmitBid(context.Background(), fast, rfq.ID, decimal.NewFromInt(500), 3)
	require.NoError(t, err)
	_, err = svc.SubmitBid(context.Background(), cheap, rfq.ID, decimal.NewFromInt(400), 10)
	require.NoError(t, err)

	ranked, err := svc.ListRanked(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	require.Equal(t, cheap.ID, ranked[0].Bid.VendorID)
	require.Equal(t, fast.ID, ranked[1].Bid.VendorID)
	require.Equal(t, slow.ID, ranked[2].Bid.VendorID)
	require.Equal(t, []int{1, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})
}

func TestListRankedVendorSeesOnlyOwn(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	vendor := vendorPrincipal()
	rival := vendorPrincipal()
	rfq := mustCreateRFQ(t, svc, org)
	mustPublish(t, svc, org, rfq.ID)

	_, err := svc.SubmitBid(context.Background(), rival, rfq.ID, decimal.NewFromInt(400), 5)
	require.NoError(t, err)
	_, err = svc.SubmitBid(context.Background(), vendor, rfq.ID, decimal.NewFromInt(500), 5)
	require.NoError(t, err)

	ranked, err := svc.ListRanked(context.Background(), vendor, rfq.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	require.Equal(t, vendor.ID, ranked[0].Bid.VendorID)
	// Rank is positional within the full set, so the vendor still sees
	// where it stands.
	require.Equal(t, 2, ranked[0].Rank)
}

func TestListRankedEmptyWithoutRound(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, org)

	ranked, err := svc.ListRanked(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	require.Empty(t, ranked)
}

func TestListRankedClosedSpansRounds(t *testing.T) {
	svc, _, _ := newEngine(t)
	org := orgPrincipal()
	vendor := vendorPrincipal()
	rfq := mustCreateRFQ(t, svc, org)

	// Round 1 gets no bids and is unpublished; round 2 gets the bid.
	mustPublish(t, svc, org, rfq.ID)
	_, err := svc.Unpublish(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	mustPublish(t, svc, org, rfq.ID)

	_, err = svc.SubmitBid(context.Background(), vendor, rfq.ID, decimal.NewFromInt(500), 5)
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), org, rfq.ID)
	require.NoError(t, err)

	ranked, err := svc.ListRanked(context.Background(), org, rfq.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
}

func TestGetRFQVisibility(t *testing.T) {
	svc, _, _ := newEngine(t)
	owner := orgPrincipal()
	rfq := mustCreateRFQ(t, svc, owner)

	cases := []struct {
		name    string
		caller  bidding.Principal
		visible bool
	}{
		{name: "owner sees draft", caller: owner, visible: true},
		{name: "admin sees draft", caller: adminPrincipal(), visible: true},
		{name: "vendor cannot see draft", caller: vendorPrincipal(), visible: false},
		{name: "other org cannot see it", caller: orgPrincipal(), visible: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.GetRFQ(context.Background(), tc.caller, rfq.ID)
			if tc.visible {
				require.NoError(t, err)
				require.Equal(t, rfq.ID, got.ID)
			} else {
				require.True(t, errorbank.HasCode(err, bidding.CodeNotFound))
			}
		})
	}

	mustPublish(t, svc, owner, rfq.ID)
	got, err := svc.GetRFQ(context.Background(), vendorPrincipal(), rfq.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RFQLive, got.Status)
}

func TestListRFQsByRole(t *testing.T) {
	svc, _, _ := newEngine(t)
	orgA := orgPrincipal()
	orgB := orgPrincipal()

	draftA := mustCreateRFQ(t, svc, orgA)
	liveA := mustCreateRFQ(t, svc, orgA)
	mustPublish(t, svc, orgA, liveA.ID)
	mustCreateRFQ(t, svc, orgB)

	own, err := svc.ListRFQs(context.Background(), orgA)
	require.NoError(t, err)
	require.Len(t, own, 2)

	// Vendors only see the published inbox, never drafts.
	inbox, err := svc.ListRFQs(context.Background(), vendorPrincipal())
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, liveA.ID, inbox[0].ID)
	require.NotEqual(t, draftA.ID, inbox[0].ID)

	all, err := svc.ListRFQs(context.Background(), adminPrincipal())
	require.NoError(t, err)
	require.Len(t, all, 3)
}
