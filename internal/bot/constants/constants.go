package constants

import "time"

const (
	// Commands.
	PingCommandName        = "ping"
	StatsCommandName       = "stats"
	SearchCommandName      = "search"
	SetupVerifyCommandName = "setup-verify"

	SearchQueryOption  = "query"
	SetupChannelOption = "channel"
	SearchResultLimit  = 5

	// Verification.
	VerifyButtonCustomID  = "verify_user_button"
	ApproveCustomIDPrefix = "approve_user:"
	DenyCustomIDPrefix    = "deny_user:"

	// Ban list.
	BanListMaxDisplay    = 20
	BanListChunkCeiling  = 1000
	BanListMaxReasonSize = 150
	BanListPageSize      = 1000

	// Embed colors.
	InfoEmbedColor    = 0x0099FF
	PendingEmbedColor = 0xFFC107
	SuccessEmbedColor = 0x28A745
	ErrorEmbedColor   = 0xDC3545
	SearchEmbedColor  = 0x4285F4

	// Zero-width space used as an invisible field name.
	InvisibleFieldName = "​"
)

// Delays before the original message and its reply are removed from the ban channel.
const (
	DenyDeleteDelay    = 3 * time.Second
	ActionDeleteDelay  = 5 * time.Second
	HelpDeleteDelay    = 15 * time.Second
	UnknownDeleteDelay = 3 * time.Second
)
