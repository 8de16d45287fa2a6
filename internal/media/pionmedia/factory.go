// Package pionmedia implements media sessions on pion/webrtc. Each session
// carries one audio and one video sendrecv transceiver and a negotiated
// "meta" data channel used to exchange a Hello.
package pionmedia

import (
	"fmt"
	"log/slog"

	"github.com/BioHazard786/meshcall/internal/config"
	"github.com/BioHazard786/meshcall/internal/media"
	"github.com/BioHazard786/meshcall/internal/netutil"
	"github.com/BioHazard786/meshcall/internal/version"
	"github.com/pion/webrtc/v4"
)

// ClientName is announced in every Hello.
const ClientName = "meshcall"

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger for sessions and pion internals.
func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithSettingEngine lets callers adjust the SettingEngine before the API is
// built.
func WithSettingEngine(fn func(*webrtc.SettingEngine)) Option {
	return func(f *Factory) { f.tune = fn }
}

// WithRelayDetector replaces the CGNAT/VPN check used to force relay-only
// ICE.
func WithRelayDetector(fn func() bool) Option {
	return func(f *Factory) { f.detectRelay = fn }
}

// Factory creates pion-backed media sessions for one local participant.
type Factory struct {
	api      *webrtc.API
	rtc      webrtc.Configuration
	localUID string
	logger   *slog.Logger

	tune        func(*webrtc.SettingEngine)
	detectRelay func() bool
}

// NewFactory builds the webrtc API and peer configuration from cfg.
func NewFactory(cfg *config.Config, opts ...Option) (*Factory, error) {
	f := &Factory{
		localUID:    cfg.UID,
		logger:      slog.Default(),
		detectRelay: netutil.ShouldForceRelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "media")

	api, err := f.newAPI(cfg)
	if err != nil {
		return nil, err
	}
	f.api = api
	f.rtc = f.configuration(cfg)
	return f, nil
}

func (f *Factory) newAPI(cfg *config.Config) (*webrtc.API, error) {
	se := webrtc.SettingEngine{}
	se.LoggerFactory = NewLoggerFactory(f.logger)

	if cfg.UDPPortMin != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.UDPPortMin, cfg.UDPPortMax); err != nil {
			return nil, fmt.Errorf("set ephemeral udp port range: %w", err)
		}
	}
	if f.tune != nil {
		f.tune(&se)
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	return webrtc.NewAPI(webrtc.WithSettingEngine(se), webrtc.WithMediaEngine(m)), nil
}

// configuration returns the ICE servers and transport policy for cfg.
func (f *Factory) configuration(cfg *config.Config) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	// Relay-only needs a TURN server to be useful at all.
	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || (f.detectRelay != nil && f.detectRelay())) {
		policy = webrtc.ICETransportPolicyRelay
		f.logger.Info("using relay-only ICE policy")
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// NewSession creates a peer connection for remoteUID.
func (f *Factory) NewSession(remoteUID string) (media.Session, error) {
	pc, err := f.api.NewPeerConnection(f.rtc)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	s := &Session{
		pc:        pc,
		remoteUID: remoteUID,
		hello:     Hello{UID: f.localUID, Client: ClientName, Version: version.Version},
		logger:    f.logger.With("peer", remoteUID),
	}
	if err := s.setup(); err != nil {
		pc.Close()
		return nil, err
	}
	return s, nil
}
