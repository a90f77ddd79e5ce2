package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/mediaconvert-cli/internal/config"
	"github.com/fpang/mediaconvert-cli/internal/logging"
	"github.com/fpang/mediaconvert-cli/internal/socket"
)

// Socket flags
var (
	socketURLFlag string
	actionFlag    string
	dataFlag      string
)

var socketCmd = &cobra.Command{
	Use:   "socket",
	Short: "Open the messaging WebSocket, send one message and log replies",
	Long: `Connects to the messaging endpoint (SOCKET_URL or --url), sends
{"action": <action>, "data": <data>} once, and logs every message received
until the server closes the connection or the command is interrupted.
The session is not re-established after it closes.`,
	Args: cobra.NoArgs,
	RunE: runSocket,
}

func init() {
	socketCmd.Flags().StringVar(&socketURLFlag, "url", "", "WebSocket URL (overrides SOCKET_URL)")
	socketCmd.Flags().StringVar(&actionFlag, "action", socket.DefaultAction, "Route key sent as the action field")
	socketCmd.Flags().StringVar(&dataFlag, "data", socket.DefaultData, "Payload sent as the data field")
	rootCmd.AddCommand(socketCmd)
}

func runSocket(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(config.LoadSocket)
	if err != nil {
		return err
	}
	url := settings.SocketURL
	if socketURLFlag != "" {
		url = socketURLFlag
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	logging.NewRunSummary("socket").
		Version(versionString()).
		Config("url", url).
		Config("action", actionFlag).
		Log()

	session := socket.NewSession(url, socket.Message{Action: actionFlag, Data: dataFlag}, log.Logger)
	if _, err := session.Run(ctx); err != nil {
		return err
	}
	return nil
}
