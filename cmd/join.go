package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BioHazard786/meshcall/internal/config"
	"github.com/BioHazard786/meshcall/internal/ui"
	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

const (
	joinTimeout     = 15 * time.Second
	refreshInterval = 500 * time.Millisecond
)

var (
	flagServer   string
	flagUID      string
	flagToken    string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagUDPPorts string
	flagPlain    bool
	flagCopy     bool
)

var joinCmd = &cobra.Command{
	Use:     "join [channel]",
	Aliases: []string{"j"},
	Short:   "Join a channel and connect to everyone in it",
	Long: `Join a channel on the signaling server and negotiate a WebRTC session
with every other participant. Without a channel name a random one is
created; share it so others can join.

Examples:
  meshcall join --copy
  meshcall join standup
  meshcall join standup --uid alice --server wss://signal.example.com
  meshcall join standup --turn turn.example.com --turn-user u --turn-pass p --relay`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID := config.NewChannelID()
		if len(args) == 1 {
			channelID = args[0]
		}
		return joinChannel(channelID)
	},
}

func joinChannel(channelID string) error {
	cfg, err := config.Load(config.Options{
		Server:     flagServer,
		UID:        flagUID,
		Token:      flagToken,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
		UDPPorts:   flagUDPPorts,
	})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.Default().With("channel", channelID)
	events := &cliEvents{}
	mgr, err := NewManager(cfg, events, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopSpinner := ui.RunConnectionSpinner("Connecting to signaling server...")
	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	err = mgr.Join(joinCtx, channelID, cfg.UID, cfg.Token)
	cancel()
	stopSpinner()
	if err != nil {
		mgr.Leave()
		return err
	}
	joinedAt := time.Now()

	info := ui.ChannelInfo{ChannelID: channelID, UID: cfg.UID, Server: cfg.SignalingURL}
	fmt.Println(info.View())
	if flagCopy {
		copyInvite(channelID, flagServer)
	}

	if flagPlain {
		<-ctx.Done()
	} else {
		runRoster(ctx, info, events, func() []ui.PeerRow { return peerRows(mgr.Peers()) })
	}

	rows := peerRows(mgr.Peers())
	if err := mgr.Leave(); err != nil {
		ui.PrintWarningf("leave: %v", err)
	}

	joined, left, errs := events.counts()
	fmt.Println()
	ui.RenderSessionSummary("Session Summary", ui.SessionSummary{
		ChannelID: channelID,
		UID:       cfg.UID,
		Duration:  time.Since(joinedAt),
		Peers:     rows,
		Joined:    joined,
		Left:      left,
		Errors:    errs,
	})
	return nil
}

// inviteCommand is what another participant runs to join the same channel.
func inviteCommand(channelID, server string) string {
	if server == "" {
		return "meshcall join " + channelID
	}
	return fmt.Sprintf("meshcall join %s --server %s", channelID, server)
}

func copyInvite(channelID, server string) {
	invite := inviteCommand(channelID, server)
	if err := clipboard.WriteAll(invite); err != nil {
		ui.PrintWarningf("could not copy invite: %v", err)
		return
	}
	ui.PrintSuccessf("Copied to clipboard: %s", invite)
}

// runRoster shows the live roster until ctx ends or the user quits.
func runRoster(ctx context.Context, info ui.ChannelInfo, events *cliEvents, peers func() []ui.PeerRow) {
	roster := ui.NewRosterUI(info)
	events.setRoster(roster)
	roster.Start()
	defer func() {
		events.setRoster(nil)
		roster.Stop()
	}()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		roster.SetPeers(peers())
		select {
		case <-ctx.Done():
			return
		case <-roster.Quit():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVar(&flagServer, "server", "", "Signaling server URL (env MESHCALL_SERVER)")
	joinCmd.Flags().StringVar(&flagUID, "uid", "", "Your participant id (env MESHCALL_UID, random if unset)")
	joinCmd.Flags().StringVar(&flagToken, "token", "", "Auth token for the signaling server (env MESHCALL_TOKEN)")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	joinCmd.Flags().StringVar(&flagUDPPorts, "udp-ports", "", "Local ICE UDP port range, min-max (env UDP_PORT_RANGE)")
	joinCmd.Flags().BoolVarP(&flagCopy, "copy", "c", false, "Copy the invite command to the clipboard")
	joinCmd.Flags().BoolVar(&flagPlain, "plain", false, "Print events line by line instead of the live roster")
}
