// Package layer manages the hardware overlay layer lifecycle: reserving
// a layer at open time, applying per-frame configurations, and toggling
// visibility independently of the reservation.
package layer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/visiona/overlaysink/disp"
	"github.com/visiona/overlaysink/video"
)

// ErrNotReserved is returned when a per-frame operation runs without a
// reserved layer.
var ErrNotReserved = errors.New("layer: no layer reserved")

// Manager owns one hardware layer. States move UNRESERVED →
// RESERVED(hidden) → RESERVED(visible) and back; visibility toggles
// independently of reservation, so a layer can stay reserved but hidden
// between frames of different formats.
//
// Manager is driven by a single thread; it performs no locking.
type Manager struct {
	ch  disp.Channel
	gen disp.Generation

	layerID   int
	channelID int

	reserved  bool
	visible   bool
	hasScaler bool
}

// New creates a manager for the given layer and channel ids. Nothing is
// reserved until Reserve is called.
func New(ch disp.Channel, gen disp.Generation, layerID, channelID int) *Manager {
	return &Manager{ch: ch, gen: gen, layerID: layerID, channelID: channelID}
}

// Reserved reports whether the layer is currently reserved.
func (m *Manager) Reserved() bool { return m.reserved }

// Visible reports the current visibility state.
func (m *Manager) Visible() bool { return m.visible }

// HasScaler reports whether the reserved layer can scale.
func (m *Manager) HasScaler() bool { return m.hasScaler }

// Reserve acquires the layer by submitting a disabled full-screen
// placeholder configuration. A rejection (for example no free layer on
// the channel) is returned to the caller but is non-fatal to the sink:
// hardware overlay is simply unavailable and a fallback path is used.
func (m *Manager) Reserve() error {
	screenW, err := m.ch.ScreenWidth()
	if err != nil {
		return fmt.Errorf("layer: screen width query failed: %w", err)
	}
	screenH, err := m.ch.ScreenHeight()
	if err != nil {
		return fmt.Errorf("layer: screen height query failed: %w", err)
	}

	slog.Info("layer: reserving overlay layer",
		"layer_id", m.layerID,
		"channel_id", m.channelID,
		"screen", fmt.Sprintf("%dx%d", screenW, screenH),
	)

	placeholder := disp.LayerConfig{
		Format: disp.PixelFormatARGB8888,
		Crop: disp.FixedRect{
			Width:  disp.FixedCoord(screenW),
			Height: disp.FixedCoord(screenH),
		},
		Screen:     video.Rect{W: screenW, H: screenH},
		ColorSpace: disp.ColorSpaceFor(screenH),
		ZOrder:     disp.OverlayZOrder,
		AlphaMode:  disp.AlphaModeGlobal,
		AlphaValue: disp.OpaqueAlpha,
		Enabled:    false,
	}

	if err := m.ch.SetLayerConfig(disp.Encode(m.gen, placeholder, m.layerID, m.channelID)); err != nil {
		return fmt.Errorf("layer: reserve rejected: %w", err)
	}

	m.reserved = true
	m.visible = false
	m.hasScaler = true
	return nil
}

// Apply submits a per-frame layer configuration and, on success, makes
// the layer visible. A rejected configuration is a frame-level failure
// and leaves the visibility state unchanged.
func (m *Manager) Apply(cfg disp.LayerConfig) error {
	if !m.reserved {
		return ErrNotReserved
	}
	if err := m.ch.SetLayerConfig(disp.Encode(m.gen, cfg, m.layerID, m.channelID)); err != nil {
		return fmt.Errorf("layer: config rejected: %w", err)
	}
	return m.Show()
}

// Show enables the layer. Idempotent: when already visible it returns
// immediately without touching the hardware. On failure the visibility
// state is unchanged and the error is reported.
func (m *Manager) Show() error {
	if m.visible {
		return nil
	}
	if !m.reserved {
		return ErrNotReserved
	}
	if err := m.ch.SetLayerEnable(m.layerID, m.channelID, true); err != nil {
		return fmt.Errorf("layer: enable failed: %w", err)
	}
	m.visible = true
	return nil
}

// Hide disables the layer. Idempotent: a hidden layer produces zero
// hardware calls. Enable failures are logged, not propagated; the frame
// flow must not fail on the way down.
func (m *Manager) Hide() {
	if !m.visible {
		return
	}
	if err := m.ch.SetLayerEnable(m.layerID, m.channelID, false); err != nil {
		slog.Warn("layer: disable failed", "layer_id", m.layerID, "error", err)
		return
	}
	m.visible = false
}

// Release hides the layer if visible, then invalidates the reservation
// and clears the scaler flag. Safe to call even if Reserve never
// succeeded.
func (m *Manager) Release() {
	m.Hide()
	if m.reserved {
		slog.Info("layer: released overlay layer", "layer_id", m.layerID)
	}
	m.reserved = false
	m.layerID = -1
	m.hasScaler = false
}
