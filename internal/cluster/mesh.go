// Package cluster provides the control plane shared across connector
// instances: a Raft-backed membership registry and key/value store
// (raft.go), and an HTTP transport for forwarding events to a sibling
// cluster's connector set (this file). internal/sinkmanager never
// imports this package; it is wired from cmd/connectord as a standalone
// subsystem.
package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/streamgate/streamgate"
)

// Member describes a remote cluster reachable over the mesh.
type Member struct {
	ID       string
	Endpoint string
	Region   string
	Status   string
}

// MeshManager tracks known remote clusters and their reachability.
type MeshManager struct {
	mu      sync.RWMutex
	members map[string]Member
	logger  streamgate.Logger
}

// NewMeshManager builds an empty mesh registry.
func NewMeshManager(logger streamgate.Logger) *MeshManager {
	return &MeshManager{members: make(map[string]Member), logger: logger}
}

func (m *MeshManager) Register(member Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.ID] = member
	if m.logger != nil {
		m.logger.Info("mesh: member registered", "id", member.ID, "region", member.Region)
	}
}

func (m *MeshManager) Get(id string) (Member, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mb, ok := m.members[id]
	return mb, ok
}

func (m *MeshManager) Members() []Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Member, 0, len(m.members))
	for _, mb := range m.members {
		out = append(out, mb)
	}
	return out
}

// MeshSink forwards events to a sibling cluster's HTTP mesh endpoint. It
// is a cross-cluster collaborator, not one of the pkg/sink/* connectors
// internal/sinkmanager drives.
type MeshSink struct {
	target Member
	client *meshClient
}

func NewMeshSink(target Member) *MeshSink {
	return &MeshSink{target: target, client: &meshClient{endpoint: target.Endpoint}}
}

func (s *MeshSink) Forward(ctx context.Context, ev streamgate.Event) error {
	return s.client.forward(ctx, ev)
}

func (s *MeshSink) Ping(ctx context.Context) error {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(ctx, "GET", s.target.Endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("mesh sink: build health request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("mesh sink: health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mesh sink: cluster health check failed: %d", resp.StatusCode)
	}
	return nil
}

type meshClient struct {
	endpoint string
}

func (c *meshClient) forward(ctx context.Context, ev streamgate.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("mesh: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/api/mesh/receive", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mesh: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("mesh: forward request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mesh: target cluster returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
