// Package distconfig manages the shared distributed-config record
// described in §4.H: compare-and-set version bumps, role resolution,
// per-instance heartbeat registration, and periodic reload. The record
// is persisted through the same storage.Adapter as every other entity,
// so it is backend-agnostic by construction.
package distconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/brainy/brainy/internal/storage"
)

// distributedConfigKey is the reserved metadata key the shared record
// lives under. It is written through Adapter.SaveMetadata, which the
// filesystem and object-store backends place at
// metadata/distributed_config.json.
const distributedConfigKey = "distributed_config"

// Role names the three operational roles a distributed instance can
// take (§4.J). Validated with go-playground/validator's oneof tag.
type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleHybrid Role = "hybrid"
)

var ErrRoleRequired = errors.New("distconfig: role required")
var ErrInvalidRole = errors.New("distconfig: invalid role")
var ErrPartitionCountImmutable = errors.New("distconfig: partitionCount cannot change after first write")

// Record is the shared, version-CAS'd config document.
type Record struct {
	Version        int                 `json:"version" validate:"gte=0"`
	PartitionCount int                 `json:"partitionCount" validate:"required,gt=0"`
	Instances      map[string]Instance `json:"instances"`
}

// Instance is one registered process's heartbeat state.
type Instance struct {
	Role          Role      `json:"role" validate:"oneof=reader writer hybrid"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

// InstanceState is the three-way instance lifecycle classification
// (§4.H: uninitialized -> active -> expired).
type InstanceState string

const (
	InstanceUninitialized InstanceState = "uninitialized"
	InstanceActive        InstanceState = "active"
	InstanceExpired       InstanceState = "expired"
)

// State classifies inst against heartbeatInterval: a zero LastHeartbeat
// means the instance was registered but has never sent a heartbeat
// (uninitialized); a heartbeat older than 3x heartbeatInterval is
// expired (§3 "Config instance entries expire when heartbeat is older
// than 3x interval"); anything else is active.
func (inst Instance) State(heartbeatInterval time.Duration) InstanceState {
	if inst.LastHeartbeat.IsZero() {
		return InstanceUninitialized
	}
	if heartbeatInterval > 0 && time.Since(inst.LastHeartbeat) > 3*heartbeatInterval {
		return InstanceExpired
	}
	return InstanceActive
}

// Options configures a Manager at construction.
type Options struct {
	InstanceID        string
	ConfiguredRole    Role // explicit config value; highest priority
	PartitionCount    int  // only used when creating the record for the first time
	HeartbeatInterval time.Duration
	PollInterval      time.Duration
}

var validate = validator.New()

// Manager owns one instance's view of the shared Record and keeps it
// current via heartbeat and poll loops.
type Manager struct {
	adapter storage.Adapter
	opts    Options

	mu      sync.RWMutex
	record  Record
	role    Role
	started bool
}

// New resolves this instance's role and returns a Manager. It does not
// touch storage until Init is called.
func New(adapter storage.Adapter, opts Options) (*Manager, error) {
	role, err := resolveRole(opts.ConfiguredRole)
	if err != nil {
		return nil, err
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	return &Manager{adapter: adapter, opts: opts, role: role}, nil
}

// resolveRole implements §4.H step 2's priority order: explicit config,
// then the ROLE environment variable, then failure.
func resolveRole(configured Role) (Role, error) {
	if configured != "" {
		if err := validateRole(configured); err != nil {
			return "", err
		}
		return configured, nil
	}
	if envRole := os.Getenv("ROLE"); envRole != "" {
		r := Role(envRole)
		if err := validateRole(r); err != nil {
			return "", err
		}
		return r, nil
	}
	return "", ErrRoleRequired
}

func validateRole(r Role) error {
	if err := validate.Var(r, "oneof=reader writer hybrid"); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRole, r)
	}
	return nil
}

// Role returns this instance's resolved role.
func (m *Manager) Role() Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.role
}

// Init loads the shared record, creating it via CAS if absent, then
// registers this instance and starts its heartbeat clock.
func (m *Manager) Init(ctx context.Context) error {
	rec, err := m.load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		rec = Record{Version: 0, PartitionCount: m.opts.PartitionCount, Instances: map[string]Instance{}}
		if err := m.casStore(ctx, rec, rec.Version); err != nil {
			// lost the creation race; reload whatever the winner wrote
			rec, err = m.load(ctx)
			if err != nil {
				return err
			}
		} else {
			rec.Version++
		}
	} else if err != nil {
		return err
	} else if m.opts.PartitionCount != 0 && rec.PartitionCount != m.opts.PartitionCount {
		return ErrPartitionCountImmutable
	}

	m.mu.Lock()
	m.record = rec
	m.started = true
	m.mu.Unlock()

	return m.Heartbeat(ctx)
}

func (m *Manager) load(ctx context.Context) (Record, error) {
	data, err := m.adapter.GetMetadata(ctx, distributedConfigKey)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// casStore writes rec only if the currently stored version still
// matches expectedVersion. The stored copy carries expectedVersion+1;
// the caller's rec is not modified, so callers bump their own copy.
func (m *Manager) casStore(ctx context.Context, rec Record, expectedVersion int) error {
	current, err := m.load(ctx)
	if err == nil && current.Version != expectedVersion {
		return fmt.Errorf("distconfig: version conflict, expected %d got %d", expectedVersion, current.Version)
	}
	if !errors.Is(err, storage.ErrNotFound) && err != nil {
		return err
	}
	if err := validate.Struct(rec); err != nil {
		return err
	}
	rec.Version = expectedVersion + 1
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.adapter.SaveMetadata(ctx, distributedConfigKey, data)
}

// Heartbeat registers this instance's role and timestamp, bumping the
// shared record's version. It never changes PartitionCount; a configured
// count that differs from the stored one is rejected earlier, by Init.
func (m *Manager) Heartbeat(ctx context.Context) error {
	m.mu.Lock()
	rec := m.record
	role := m.role
	m.mu.Unlock()

	if rec.Instances == nil {
		rec.Instances = map[string]Instance{}
	}
	rec.Instances[m.opts.InstanceID] = Instance{Role: role, LastHeartbeat: time.Now()}

	if err := m.casStore(ctx, rec, rec.Version); err != nil {
		// lost the race; reload the winner's copy and try once more
		latest, loadErr := m.load(ctx)
		if loadErr != nil {
			return loadErr
		}
		if latest.Instances == nil {
			latest.Instances = map[string]Instance{}
		}
		latest.Instances[m.opts.InstanceID] = Instance{Role: role, LastHeartbeat: time.Now()}
		if err := m.casStore(ctx, latest, latest.Version); err != nil {
			return err
		}
		latest.Version++
		m.mu.Lock()
		m.record = latest
		m.mu.Unlock()
		return nil
	}

	rec.Version++
	m.mu.Lock()
	m.record = rec
	m.mu.Unlock()
	return nil
}

// Poll reloads the shared record if its stored version is newer than
// what this instance has cached, per §4.H step 4 ("readers ignore a
// lower version").
func (m *Manager) Poll(ctx context.Context) error {
	latest, err := m.load(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if latest.Version > m.record.Version {
		m.record = latest
	}
	return nil
}

// PartitionCount returns the shared record's fixed partition count.
func (m *Manager) PartitionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.record.PartitionCount
}

// Snapshot returns a copy of the current in-memory record, for the
// health monitor and diagnostics surfaces.
func (m *Manager) Snapshot() Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := m.record
	cp.Instances = make(map[string]Instance, len(m.record.Instances))
	for k, v := range m.record.Instances {
		cp.Instances[k] = v
	}
	return cp
}

// InstanceStates classifies every registered instance using this
// manager's own configured heartbeat interval.
func (m *Manager) InstanceStates() map[string]InstanceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]InstanceState, len(m.record.Instances))
	for id, inst := range m.record.Instances {
		out[id] = inst.State(m.opts.HeartbeatInterval)
	}
	return out
}

// Run blocks, alternating heartbeat and poll ticks, until ctx is
// canceled. Intended to run as part of the root store's timer loop.
func (m *Manager) Run(ctx context.Context) {
	heartbeat := time.NewTicker(m.opts.HeartbeatInterval)
	poll := time.NewTicker(m.opts.PollInterval)
	defer heartbeat.Stop()
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			_ = m.Heartbeat(ctx)
		case <-poll.C:
			_ = m.Poll(ctx)
		}
	}
}
