package handlers

import (
	"fmt"
	"log/slog"

	cargohandler "cargo-hoist/handlers/cargo"
	"cargo-hoist/hoist"
)

// Handler defines a common interface for workspace kinds.
type Handler interface {
	Name() string
	Detect(projectDir string) bool
	// Load reads the root manifest and every member manifest.
	Load(projectDir string) (*hoist.Workspace, error)
	// Save persists the changed manifests, root first, and returns the paths
	// written. Files written before a failure stay written.
	Save(ws *hoist.Workspace, backupDir string) ([]string, error)
}

// GetHandlers returns all registered handlers and logs their registration.
func GetHandlers(log *slog.Logger) []Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	handlers := []Handler{
		&cargohandler.CargoHandler{Log: log.With("component", "cargo")},
	}

	for _, h := range handlers {
		log.Debug("registered handler", "handler", h.Name())
	}

	return handlers
}

// Detect returns the first handler that recognizes projectDir.
func Detect(projectDir string, log *slog.Logger) (Handler, error) {
	for _, h := range GetHandlers(log) {
		if h.Detect(projectDir) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no supported workspace found in %s", projectDir)
}
