package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSessionStart(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	stored := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		req     *Request
		want    time.Time
		wantErr error
	}{
		{
			name: "stored session start wins",
			req: &Request{
				SessionStart: &stored,
				GrandpaOffer: AvailabilityOffer{{Date: "2025-03-09", Hours: []int{9}}},
			},
			want: stored.In(loc),
		},
		{
			name: "earliest grandpa slot",
			req: &Request{
				GrandpaOffer: AvailabilityOffer{
					{Date: "2025-03-12", Hours: []int{9}},
					{Date: "2025-03-11", Hours: []int{16, 10}},
				},
				ProposedTime: "any afternoon",
			},
			want: time.Date(2025, 3, 11, 10, 0, 0, 0, loc),
		},
		{
			name:    "free text only",
			req:     &Request{ProposedTime: "next Tuesday after lunch"},
			wantErr: ErrResolutionAmbiguous,
		},
		{
			name:    "apprentice offer is not used",
			req:     &Request{ApprenticeOffer: AvailabilityOffer{{Date: "2025-03-11", Hours: []int{10}}}},
			wantErr: ErrResolutionAmbiguous,
		},
		{
			name:    "nil request",
			req:     nil,
			wantErr: ErrResolutionAmbiguous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSessionStart(tt.req, loc)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			assert.Equal(t, loc, got.Location())
		})
	}
}

func TestResolveSessionStartIsDeterministic(t *testing.T) {
	req := &Request{
		GrandpaOffer: AvailabilityOffer{
			{Date: "2025-03-11", Hours: []int{14, 10}},
			{Date: "2025-03-10", Hours: []int{18}},
		},
	}

	first, err := ResolveSessionStart(req, time.UTC)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ResolveSessionStart(req.Clone(), time.UTC)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC), first)
}

func TestRequestRoles(t *testing.T) {
	req := &Request{
		Apprentice: Party{ID: "a1", Name: "Ann"},
		Grandpa:    Party{ID: "g1", Name: "George"},
	}

	role, ok := req.RoleOf("a1")
	require.True(t, ok)
	assert.Equal(t, RoleApprentice, role)

	role, ok = req.RoleOf("g1")
	require.True(t, ok)
	assert.Equal(t, RoleGrandpa, role)

	_, ok = req.RoleOf("stranger")
	assert.False(t, ok)
	_, ok = req.RoleOf("")
	assert.False(t, ok)

	counterRole, party := req.Counterpart(RoleGrandpa)
	assert.Equal(t, RoleApprentice, counterRole)
	assert.Equal(t, "Ann", party.Name)
}

func TestRequestFilterMatches(t *testing.T) {
	req := &Request{
		Apprentice: Party{ID: "a1"},
		Grandpa:    Party{ID: "g1"},
		Status:     RequestStatusPending,
	}

	assert.True(t, RequestFilter{PartyID: "a1"}.Matches(req))
	assert.True(t, RequestFilter{PartyID: "g1", Role: RoleGrandpa}.Matches(req))
	assert.False(t, RequestFilter{PartyID: "a1", Role: RoleGrandpa}.Matches(req))
	assert.False(t, RequestFilter{PartyID: "a1", Status: RequestStatusAccepted}.Matches(req))
	assert.False(t, RequestFilter{PartyID: "x"}.Matches(req))
}

func TestRequestStatusClassification(t *testing.T) {
	tests := []struct {
		status    RequestStatus
		terminal  bool
		discloses bool
	}{
		{RequestStatusPending, false, false},
		{RequestStatusAccepted, false, true},
		{RequestStatusConfirmed, false, true},
		{RequestStatusDeclined, true, false},
		{RequestStatusCompleted, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.discloses, tt.status.DisclosesAddress())
		})
	}
}
