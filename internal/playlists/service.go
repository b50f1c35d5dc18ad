package playlists

import (
	"log"

	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// DeviceSender pushes an event to one device's session. Implemented by the
// realtime registry; kept narrow so this package never sees session state.
type DeviceSender interface {
	SendToDevice(deviceKey string, event string, payload any) bool
}

// Service couples the repository with assignment propagation: every REST
// mutation that can change a device's effective playlist ends with a single
// content-update push to each affected online device. Offline devices are
// skipped; they get the current effective playlist on their next connect.
type Service struct {
	logger   *log.Logger
	repo     *Repository
	resolver *Resolver
	sender   DeviceSender
}

// NewService creates the playlist service. sender may be nil in tests.
func NewService(repo *Repository, resolver *Resolver, sender DeviceSender, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		logger:   logger,
		repo:     repo,
		resolver: resolver,
		sender:   sender,
	}
}

// Repo exposes the repository for route handlers.
func (s *Service) Repo() *Repository { return s.repo }

// Resolver exposes the resolver for the gateway's on-connect push.
func (s *Service) Resolver() *Resolver { return s.resolver }

// PropagatePlaylist pushes the re-resolved effective playlist to every device
// assigned to the given playlist.
func (s *Service) PropagatePlaylist(playlistID int64) {
	keys, err := s.repo.DeviceKeysForPlaylist(playlistID)
	if err != nil {
		s.logger.Printf("propagation: failed to list devices for playlist %d: %v", playlistID, err)
		return
	}
	s.PushCurrentPlaylists(keys)
}

// PropagateDeviceKey pushes the re-resolved effective playlist to one device.
func (s *Service) PropagateDeviceKey(deviceKey string) {
	s.PushCurrentPlaylists([]string{deviceKey})
}

// PushCurrentPlaylists resolves and pushes content-update to each device in
// the list that is currently online. A push is a full-state replacement, so
// interleavings with other propagations are safe; later pushes supersede.
func (s *Service) PushCurrentPlaylists(deviceKeys []string) {
	if s.sender == nil {
		return
	}
	for _, key := range deviceKeys {
		playlistID, items, err := s.resolver.ResolveByKey(key)
		if err != nil {
			// The mutation is already committed; the next reconnect or
			// mutation re-resolves, so log with device context and move on.
			s.logger.Printf("propagation: resolve failed for device %s: %v", key, err)
			continue
		}
		payload := protocol.ContentUpdate{PlaylistID: playlistID, Items: items}
		if !s.sender.SendToDevice(key, protocol.EventContentUpdate, payload) {
			continue // offline, no buffering
		}
		s.logger.Printf("propagation: pushed content:update to %s (playlist=%d items=%d)", key, playlistID, len(items))
	}
}

// DevicesUsingContent implements the content package's propagation hook.
func (s *Service) DevicesUsingContent(contentID int64) ([]string, error) {
	return s.repo.DeviceKeysUsingContent(contentID)
}
