package verification

import (
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
)

// ActionKind identifies which verification step a button encodes.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionRequest
	ActionApprove
	ActionDeny
)

func (k ActionKind) String() string {
	switch k {
	case ActionRequest:
		return "request"
	case ActionApprove:
		return "approve"
	case ActionDeny:
		return "deny"
	case ActionUnknown:
	}
	return "unknown"
}

// Action is a decoded button custom ID.
type Action struct {
	Kind     ActionKind
	TargetID snowflake.ID
}

// ParseAction decodes a component custom ID. IDs that are not verification buttons, or
// carry a malformed target, yield ActionUnknown.
func ParseAction(customID string) Action {
	if customID == constants.VerifyButtonCustomID {
		return Action{Kind: ActionRequest}
	}

	if raw, ok := strings.CutPrefix(customID, constants.ApproveCustomIDPrefix); ok {
		if id, err := snowflake.Parse(raw); err == nil && id != 0 {
			return Action{Kind: ActionApprove, TargetID: id}
		}
		return Action{Kind: ActionUnknown}
	}

	if raw, ok := strings.CutPrefix(customID, constants.DenyCustomIDPrefix); ok {
		if id, err := snowflake.Parse(raw); err == nil && id != 0 {
			return Action{Kind: ActionDeny, TargetID: id}
		}
	}

	return Action{Kind: ActionUnknown}
}

// ApproveCustomID builds the approve button ID for a target.
func ApproveCustomID(targetID snowflake.ID) string {
	return constants.ApproveCustomIDPrefix + targetID.String()
}

// DenyCustomID builds the deny button ID for a target.
func DenyCustomID(targetID snowflake.ID) string {
	return constants.DenyCustomIDPrefix + targetID.String()
}
