package vac

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Gateway operations reported in RemoteError.
const (
	OpCreateChannel = "create channel"
	OpDeleteChannel = "delete channel"
	OpMoveMember    = "move member"
	OpOccupancy     = "query occupancy"
	OpLookup        = "lookup channel"
)

// RemoteError is a failed Gateway call.
type RemoteError struct {
	Op        string
	GuildID   string
	ChannelID string
	Err       error
}

func (e *RemoteError) Error() string {
	if e.ChannelID == "" {
		return fmt.Sprintf("%s in guild %s: %v", e.Op, e.GuildID, e.Err)
	}
	return fmt.Sprintf("%s %s in guild %s: %v", e.Op, e.ChannelID, e.GuildID, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// RegistryError is a failed registry read or write.
type RegistryError struct {
	Op      string
	GuildID string
	Field   Field
	Err     error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s %s for guild %s: %v", e.Op, e.Field, e.GuildID, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

func remoteErr(op, guildID, channelID string, err error) error {
	return pkgerrors.WithStack(&RemoteError{Op: op, GuildID: guildID, ChannelID: channelID, Err: err})
}

func registryErr(op, guildID string, field Field, err error) error {
	return pkgerrors.WithStack(&RegistryError{Op: op, GuildID: guildID, Field: field, Err: err})
}
