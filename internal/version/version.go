// Package version holds build metadata, overridden with -ldflags "-X".
package version

var (
	AppName = "guild-mng-bot"
	Version = "dev"
)
