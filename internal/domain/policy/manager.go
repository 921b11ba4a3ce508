package policy

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	apperrors "github.com/oisp/sensor/pkg/errors"
)

// fileFormat is the on-disk shape of a policy file: a flat list of policies
// plus the fallback default action.
type fileFormat struct {
	Default  DefaultAction `yaml:"default"`
	Policies []Policy      `yaml:"policies"`
}

// Manager owns the live policy Set and watches its source file for changes,
// publishing a new Set behind an atomic.Pointer the same way the spec bundle
// loader publishes Registry snapshots.
type Manager struct {
	path    string
	current atomic.Pointer[Set]
	lastSum [32]byte
	log     *zap.Logger
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

func NewManager(path string, log *zap.Logger) *Manager {
	return &Manager{path: path, log: log, stop: make(chan struct{})}
}

// LoadInitial reads the policy file once and publishes the first Set. A
// missing or invalid file falls back to an empty policy set with a default
// allow action, since the sensor must keep running (fail open, not closed,
// per the Decoder's own "never panic on malformed input" contract).
func (m *Manager) LoadInitial() error {
	set, sum, err := m.load()
	if err != nil {
		m.log.Warn("policy file load failed, starting with empty policy set", zap.Error(err))
		m.current.Store(NewSet(nil, DefaultAllow))
		return err
	}
	m.current.Store(set)
	m.lastSum = sum
	return nil
}

// Current returns the live Set. Safe for concurrent use without locking.
func (m *Manager) Current() *Set {
	s := m.current.Load()
	if s == nil {
		return NewSet(nil, DefaultAllow)
	}
	return s
}

func (m *Manager) load() (*Set, [32]byte, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, [32]byte{}, apperrors.NewPolicyError("failed to read policy file", err)
	}
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, [32]byte{}, apperrors.NewPolicyError("failed to parse policy file", err)
	}
	return NewSet(ff.Policies, ff.Default), sha256.Sum256(data), nil
}

// reloadIfChanged re-reads the file, comparing its content hash against the
// last-published one before parsing, so an editor's touch-without-change
// doesn't trigger a pointless swap. A parse failure keeps the previous Set.
func (m *Manager) reloadIfChanged() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		m.log.Warn("policy reload: read failed, keeping previous set", zap.Error(err))
		return
	}
	sum := sha256.Sum256(data)
	if sum == m.lastSum {
		return
	}
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		m.log.Warn("policy reload: parse failed, keeping previous set", zap.Error(err))
		return
	}
	m.current.Store(NewSet(ff.Policies, ff.Default))
	m.lastSum = sum
	m.log.Info("policy set reloaded", zap.String("path", m.path), zap.Int("policies", len(ff.Policies)))
}

// Watch starts the fsnotify-driven hot reload loop, debounced so a burst of
// writes (as most editors produce) collapses into a single reload. Blocks
// until Close is called; intended to run on its own goroutine.
func (m *Manager) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.NewPolicyError("failed to create policy watcher", err)
	}
	m.watcher = watcher
	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return apperrors.NewPolicyError("failed to watch policy directory", err)
	}

	const debounce = 300 * time.Millisecond
	var timer *time.Timer
	for {
		select {
		case <-m.stop:
			watcher.Close()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, m.reloadIfChanged)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("policy watcher error", zap.Error(werr))
		}
	}
}

// Close stops the watch loop.
func (m *Manager) Close() {
	close(m.stop)
}
