package ban

import (
	"regexp"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// DefaultReason is recorded when a ban is issued without a reason.
const DefaultReason = "理由なし"

// Kind identifies which moderation request a message encodes.
type Kind int

const (
	KindUnknown Kind = iota
	KindHelp
	KindUnban
	KindBan
)

// String returns the name of the kind for logging.
func (k Kind) String() string {
	switch k {
	case KindHelp:
		return "help"
	case KindUnban:
		return "unban"
	case KindBan:
		return "ban"
	case KindUnknown:
	}
	return "unknown"
}

// Command is a decoded moderation request.
type Command struct {
	Kind   Kind
	UserID snowflake.ID
	Reason string
}

var (
	helpPattern          = regexp.MustCompile(`(?i)^!?help$`)
	unbanPattern         = regexp.MustCompile(`(?i)^!?unban\s+(\d{17,19})$`)
	banWithReasonPattern = regexp.MustCompile(`(?s)^(\d{17,19})\s+(.+)$`)
	banPattern           = regexp.MustCompile(`^(\d{17,19})$`)
)

// Parse decodes raw message text into a command. Patterns are tried in a fixed order and
// the first match wins; text matching none of them yields KindUnknown.
func Parse(text string) Command {
	text = strings.TrimSpace(text)

	if helpPattern.MatchString(text) {
		return Command{Kind: KindHelp}
	}

	if m := unbanPattern.FindStringSubmatch(text); m != nil {
		if id, err := snowflake.Parse(m[1]); err == nil {
			return Command{Kind: KindUnban, UserID: id}
		}
	}

	if m := banWithReasonPattern.FindStringSubmatch(text); m != nil {
		if id, err := snowflake.Parse(m[1]); err == nil {
			return Command{Kind: KindBan, UserID: id, Reason: strings.TrimSpace(m[2])}
		}
	}

	if m := banPattern.FindStringSubmatch(text); m != nil {
		if id, err := snowflake.Parse(m[1]); err == nil {
			return Command{Kind: KindBan, UserID: id, Reason: DefaultReason}
		}
	}

	return Command{Kind: KindUnknown}
}
