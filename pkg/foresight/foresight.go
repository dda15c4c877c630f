// -- pkg/foresight/foresight.go --

// Package foresight predicts which registered element a user is about to
// interact with and runs that element's callback ahead of the interaction.
//
// Most programs need one manager per document and use Initialize and
// Instance. Programs that need several independent managers, and tests,
// construct them with New.
package foresight

import (
	"sync"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/engine"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/settings"
)

// Core types.
type (
	Manager         = engine.Manager
	Option          = engine.Option
	RegisterOptions = engine.RegisterOptions
	RegisterResult  = engine.RegisterResult
	Snapshot        = engine.Snapshot
	Callback        = registry.Callback

	Element        = dom.Element
	Host           = dom.Host
	ConnectionInfo = dom.ConnectionInfo

	Rect    = geometry.Rect
	Point   = geometry.Point
	HitSlop = geometry.HitSlop

	Settings = settings.Settings
	Partial  = settings.Partial

	Event    = events.Event
	Kind     = events.Kind
	Listener = events.Listener

	HitType          = schemas.HitType
	ElementData      = schemas.ElementData
	UnregisterReason = schemas.UnregisterReason
	SettingChange    = schemas.SettingChange
)

// Options accepted by New and Initialize.
var (
	WithContext         = engine.WithContext
	WithLogger          = engine.WithLogger
	WithClock           = engine.WithClock
	WithFrames          = engine.WithFrames
	WithSettings        = engine.WithSettings
	WithCallbackTimeout = engine.WithCallbackTimeout
)

// Errors returned by New and Register.
var (
	ErrClosed      = engine.ErrClosed
	ErrNilHost     = engine.ErrNilHost
	ErrNilElement  = engine.ErrNilElement
	ErrNilCallback = engine.ErrNilCallback
)

// ReactivateNever disables automatic reactivation when used as
// RegisterOptions.ReactivateAfter.
const ReactivateNever = schemas.ReactivateNever

// New builds an independent manager. It does not touch the process-wide
// instance.
func New(host Host, opts ...Option) (*Manager, error) {
	return engine.New(host, opts...)
}

var (
	instanceMu sync.Mutex
	instance   *Manager
)

// Initialize creates the process-wide manager on first use. Later calls
// return the existing manager and ignore their arguments.
func Initialize(host Host, opts ...Option) (*Manager, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return instance, nil
	}
	m, err := engine.New(host, opts...)
	if err != nil {
		return nil, err
	}
	instance = m
	return instance, nil
}

// Instance returns the process-wide manager, or nil before Initialize.
func Instance() *Manager {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// ResetForTest closes and forgets the process-wide manager. Tests only.
func ResetForTest() {
	instanceMu.Lock()
	m := instance
	instance = nil
	instanceMu.Unlock()
	if m != nil {
		_ = m.Close()
	}
}
