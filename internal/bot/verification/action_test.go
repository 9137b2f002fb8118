package verification_test

import (
	"testing"

	"github.com/robalyx/gatekeeper/internal/bot/verification"
	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		customID string
		want     verification.Action
	}{
		{
			name:     "request",
			customID: "verify_user_button",
			want:     verification.Action{Kind: verification.ActionRequest},
		},
		{
			name:     "approve",
			customID: "approve_user:123456789012345678",
			want:     verification.Action{Kind: verification.ActionApprove, TargetID: 123456789012345678},
		},
		{
			name:     "deny",
			customID: "deny_user:123456789012345678",
			want:     verification.Action{Kind: verification.ActionDeny, TargetID: 123456789012345678},
		},
		{
			name:     "approve without id",
			customID: "approve_user:",
			want:     verification.Action{Kind: verification.ActionUnknown},
		},
		{
			name:     "deny with garbage",
			customID: "deny_user:abc",
			want:     verification.Action{Kind: verification.ActionUnknown},
		},
		{
			name:     "unrelated button",
			customID: "dashboard_refresh",
			want:     verification.Action{Kind: verification.ActionUnknown},
		},
		{
			name:     "prefix of request",
			customID: "verify_user",
			want:     verification.Action{Kind: verification.ActionUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, verification.ParseAction(tt.customID))
		})
	}
}

func TestCustomIDRoundTrip(t *testing.T) {
	t.Parallel()

	approve := verification.ParseAction(verification.ApproveCustomID(42))
	assert.Equal(t, verification.Action{Kind: verification.ActionApprove, TargetID: 42}, approve)

	deny := verification.ParseAction(verification.DenyCustomID(42))
	assert.Equal(t, verification.Action{Kind: verification.ActionDeny, TargetID: 42}, deny)
}

func TestActionKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind verification.ActionKind
		want string
	}{
		{kind: verification.ActionRequest, want: "request"},
		{kind: verification.ActionApprove, want: "approve"},
		{kind: verification.ActionDeny, want: "deny"},
		{kind: verification.ActionUnknown, want: "unknown"},
		{kind: verification.ActionKind(42), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}
