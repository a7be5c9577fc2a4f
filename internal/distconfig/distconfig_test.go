package distconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brainy/brainy/internal/storage/memstore"
)

func TestResolveRoleFromExplicitConfig(t *testing.T) {
	m, err := New(memstore.New(), Options{InstanceID: "i1", ConfiguredRole: RoleHybrid, PartitionCount: 16})
	if err != nil {
		t.Fatal(err)
	}
	if m.Role() != RoleHybrid {
		t.Fatalf("expected hybrid role, got %s", m.Role())
	}
}

func TestResolveRoleFromEnv(t *testing.T) {
	t.Setenv("ROLE", "reader")
	m, err := New(memstore.New(), Options{InstanceID: "i1", PartitionCount: 16})
	if err != nil {
		t.Fatal(err)
	}
	if m.Role() != RoleReader {
		t.Fatalf("expected reader role from env, got %s", m.Role())
	}
}

func TestResolveRoleMissingFails(t *testing.T) {
	t.Setenv("ROLE", "")
	if _, err := New(memstore.New(), Options{InstanceID: "i1", PartitionCount: 16}); err == nil {
		t.Fatal("expected RoleRequired error")
	}
}

func TestResolveRoleInvalidFails(t *testing.T) {
	if _, err := New(memstore.New(), Options{InstanceID: "i1", ConfiguredRole: "nope", PartitionCount: 16}); err == nil {
		t.Fatal("expected InvalidRole error")
	}
}

func TestInitCreatesRecordOnFirstRun(t *testing.T) {
	m, err := New(memstore.New(), Options{InstanceID: "i1", ConfiguredRole: RoleHybrid, PartitionCount: 16})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.PartitionCount() != 16 {
		t.Fatalf("expected partitionCount 16, got %d", m.PartitionCount())
	}
	snap := m.Snapshot()
	if _, ok := snap.Instances["i1"]; !ok {
		t.Fatal("expected instance i1 registered after Init")
	}
}

func TestTwoInstancesShareRecord(t *testing.T) {
	adapter := memstore.New()
	ctx := context.Background()

	m1, _ := New(adapter, Options{InstanceID: "i1", ConfiguredRole: RoleHybrid, PartitionCount: 16})
	if err := m1.Init(ctx); err != nil {
		t.Fatal(err)
	}
	m2, _ := New(adapter, Options{InstanceID: "i2", ConfiguredRole: RoleReader, PartitionCount: 16})
	if err := m2.Init(ctx); err != nil {
		t.Fatal(err)
	}

	if err := m1.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	snap := m1.Snapshot()
	if len(snap.Instances) != 2 {
		t.Fatalf("expected 2 registered instances after poll, got %d", len(snap.Instances))
	}
}

func TestHeartbeatUpdatesTimestamp(t *testing.T) {
	m, _ := New(memstore.New(), Options{InstanceID: "i1", ConfiguredRole: RoleWriter, PartitionCount: 16})
	ctx := context.Background()
	if err := m.Init(ctx); err != nil {
		t.Fatal(err)
	}
	first := m.Snapshot().Instances["i1"].LastHeartbeat

	time.Sleep(5 * time.Millisecond)
	if err := m.Heartbeat(ctx); err != nil {
		t.Fatal(err)
	}
	second := m.Snapshot().Instances["i1"].LastHeartbeat
	if !second.After(first) {
		t.Fatal("expected heartbeat timestamp to advance")
	}
}

func TestPartitionCountImmutable(t *testing.T) {
	adapter := memstore.New()
	ctx := context.Background()
	m1, _ := New(adapter, Options{InstanceID: "i1", ConfiguredRole: RoleHybrid, PartitionCount: 16})
	if err := m1.Init(ctx); err != nil {
		t.Fatal(err)
	}

	m2, _ := New(adapter, Options{InstanceID: "i2", ConfiguredRole: RoleHybrid, PartitionCount: 32})
	if err := m2.Init(ctx); !errors.Is(err, ErrPartitionCountImmutable) {
		t.Fatalf("expected partitionCount mismatch to be rejected during Init, got %v", err)
	}
}
