package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// requiredPermissions are needed on a trigger channel's category to create
// rooms there and move members into them.
var requiredPermissions = []struct {
	bit  int64
	name string
}{
	{discordgo.PermissionViewChannel, "ViewChannel"},
	{discordgo.PermissionManageChannels, "ManageChannels"},
	{discordgo.PermissionVoiceMoveMembers, "MoveMembers"},
}

// missingPermissions lists the required permissions the bot lacks in
// channelID, or nil if the state cannot answer.
func missingPermissions(st *discordgo.State, channelID string) []string {
	if st == nil || st.User == nil {
		return nil
	}
	perms, err := st.UserChannelPermissions(st.User.ID, channelID)
	if err != nil {
		return nil
	}
	return permissionNames(perms)
}

func permissionNames(perms int64) []string {
	if perms&discordgo.PermissionAdministrator != 0 {
		return nil
	}
	var missing []string
	for _, p := range requiredPermissions {
		if perms&p.bit == 0 {
			missing = append(missing, p.name)
		}
	}
	return missing
}

func joinPermissions(names []string) string {
	return strings.Join(names, ", ")
}
