package app

const (
	Name = "meshchat"

	ConfigFilename  = "config.json"
	HistoryFilename = "history"
	LogFilename     = "meshchat.log"

	DefaultIPPort = 4403
)

// Overridden at build time via -ldflags "-X meshchat/internal/app.version=...".
var version = "dev"

func Version() string {
	return version
}
