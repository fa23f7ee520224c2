package api

import (
	"net/http"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/notify"
	"github.com/yourname/fixyoursleep/internal/service"
	"github.com/yourname/fixyoursleep/internal/storage"
	"github.com/yourname/fixyoursleep/internal/tracker"
)

type App interface {
	Logger() internal.Logger
	Profiles() storage.ProfileStore
	SleepLogs() storage.SleepLogStore
	Logbook() *tracker.Logbook
	Goals() *tracker.Goals
	KV() kv.Store
	Sessions() *service.Sessions
	Permissions() Permissions
	Devices() DeviceChannel
}

type Permissions interface {
	Permission(userID string) notify.Permission
	SetPermission(userID string, granted bool) notify.Permission
}

// DeviceChannel upgrades an authenticated request to the phone's websocket.
type DeviceChannel interface {
	ServeUser(w http.ResponseWriter, r *http.Request, userID string)
}

// Services is the plain App implementation wired by cmd/server and tests.
type Services struct {
	Log         internal.Logger
	Store       storage.Store
	Book        *tracker.Logbook
	GoalTracker *tracker.Goals
	State       kv.Store
	Sess        *service.Sessions
	Perms       Permissions
	Hub         DeviceChannel
}

func (s *Services) Logger() internal.Logger          { return s.Log }
func (s *Services) Profiles() storage.ProfileStore   { return s.Store }
func (s *Services) SleepLogs() storage.SleepLogStore { return s.Store }
func (s *Services) Logbook() *tracker.Logbook        { return s.Book }
func (s *Services) Goals() *tracker.Goals            { return s.GoalTracker }
func (s *Services) KV() kv.Store                     { return s.State }
func (s *Services) Sessions() *service.Sessions      { return s.Sess }
func (s *Services) Permissions() Permissions         { return s.Perms }
func (s *Services) Devices() DeviceChannel           { return s.Hub }

var _ App = (*Services)(nil)
