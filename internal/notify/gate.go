package notify

import (
	"context"
	"sync"
)

type GateState int

const (
	WaitingBoth GateState = iota
	WaitingSync
	WaitingSettings
	Ready
)

func (s GateState) String() string {
	switch s {
	case WaitingBoth:
		return "waiting_both"
	case WaitingSync:
		return "waiting_sync"
	case WaitingSettings:
		return "waiting_settings"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Gate joins the two independent conditions scheduling depends on: the
// device reminder list has been synchronized and preferences are loaded.
// Either may arrive first; marking is idempotent.
type Gate struct {
	mu       sync.Mutex
	synced   bool
	settings bool
	ready    chan struct{}
}

func NewGate() *Gate {
	return &Gate{ready: make(chan struct{})}
}

func (g *Gate) MarkSynced() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.synced = true
	g.update()
}

func (g *Gate) MarkSettingsReady() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings = true
	g.update()
}

func (g *Gate) update() {
	if g.synced && g.settings {
		select {
		case <-g.ready:
		default:
			close(g.ready)
		}
	}
}

func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.synced && g.settings:
		return Ready
	case g.synced:
		return WaitingSettings
	case g.settings:
		return WaitingSync
	}
	return WaitingBoth
}

// Ready is closed once both conditions hold.
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
