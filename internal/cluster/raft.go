package cluster

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
	"github.com/streamgate/streamgate"
)

// opKind is the kind of command applied to the FSM's replicated log.
type opKind string

const (
	opSet        opKind = "set"
	opDelete     opKind = "delete"
	opAddNode    opKind = "add_node"
	opRemoveNode opKind = "remove_node"
)

// command is the unit of replication: every write to the cluster's
// shared state goes through Raft as one of these.
type command struct {
	Kind  opKind `json:"kind"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	Node  Member `json:"node,omitempty"`
}

// FSM is the cluster's replicated state: a small key/value store plus
// the membership registry (mirrors original_source's Store, minus the
// RocksDB-backed log/snapshot persistence it used — raft-boltdb plays
// that role here).
type FSM struct {
	mu      sync.RWMutex
	kv      map[string]string
	members map[string]Member
	logger  streamgate.Logger
}

func newFSM(logger streamgate.Logger) *FSM {
	return &FSM{
		kv:      make(map[string]string),
		members: make(map[string]Member),
		logger:  logger,
	}
}

func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("fsm: decode command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Kind {
	case opSet:
		f.kv[cmd.Key] = cmd.Value
	case opDelete:
		delete(f.kv, cmd.Key)
	case opAddNode:
		f.members[cmd.Node.ID] = cmd.Node
	case opRemoveNode:
		delete(f.members, cmd.Node.ID)
	default:
		return fmt.Errorf("fsm: unknown command kind %q", cmd.Kind)
	}
	return nil
}

// Get reads key directly from the local FSM, which may be stale on a
// follower (mirrors original_source's uncommitted `read` endpoint).
func (f *FSM) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.kv[key]
	return v, ok
}

func (f *FSM) Members() []Member {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Member, 0, len(f.members))
	for _, m := range f.members {
		out = append(out, m)
	}
	return out
}

type fsmSnapshot struct {
	KV      map[string]string `json:"kv"`
	Members map[string]Member `json:"members"`
}

func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap := fsmSnapshot{
		KV:      make(map[string]string, len(f.kv)),
		Members: make(map[string]Member, len(f.members)),
	}
	for k, v := range f.kv {
		snap.KV[k] = v
	}
	for id, m := range f.members {
		snap.Members[id] = m
	}
	return snap, nil
}

func (s fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if _, err := sink.Write(data); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s fsmSnapshot) Release() {}

func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("fsm: decode snapshot: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv = snap.KV
	f.members = snap.Members
	if f.kv == nil {
		f.kv = make(map[string]string)
	}
	if f.members == nil {
		f.members = make(map[string]Member)
	}
	return nil
}

// Node wraps a hashicorp/raft.Raft instance serving the cluster's
// membership + KV FSM, storing its log in raft-boltdb under dataDir.
type Node struct {
	Raft *raft.Raft
	FSM  *FSM

	logStore    *raftboltdb.BoltStore
	stableStore *raftboltdb.BoltStore
	transport   *raft.NetworkTransport
}

// NodeConfig configures a single cluster control-plane node.
type NodeConfig struct {
	NodeID    string
	BindAddr  string
	DataDir   string
	Bootstrap bool
	Logger    streamgate.Logger
}

// NewNode starts (or rejoins) a Raft node at cfg.BindAddr, persisting its
// log and stable store in cfg.DataDir/raft.db and its snapshots under
// cfg.DataDir.
func NewNode(cfg NodeConfig) (*Node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("cluster: create data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.Logger = hclog.New(&hclog.LoggerOptions{
		Name:  "raft",
		Level: hclog.Warn,
	})

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("cluster: resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("cluster: new tcp transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("cluster: new snapshot store: %w", err)
	}

	boltPath := filepath.Join(cfg.DataDir, "raft.db")
	boltStore, err := raftboltdb.NewBoltStore(boltPath)
	if err != nil {
		return nil, fmt.Errorf("cluster: new bolt store: %w", err)
	}

	fsm := newFSM(cfg.Logger)
	r, err := raft.NewRaft(raftCfg, fsm, boltStore, boltStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("cluster: new raft: %w", err)
	}

	if cfg.Bootstrap {
		cfgFuture := r.GetConfiguration()
		if err := cfgFuture.Error(); err != nil {
			return nil, fmt.Errorf("cluster: get configuration: %w", err)
		}
		if len(cfgFuture.Configuration().Servers) == 0 {
			r.BootstrapCluster(raft.Configuration{
				Servers: []raft.Server{{
					ID:      raftCfg.LocalID,
					Address: transport.LocalAddr(),
				}},
			})
		}
	}

	return &Node{
		Raft:        r,
		FSM:         fsm,
		logStore:    boltStore,
		stableStore: boltStore,
		transport:   transport,
	}, nil
}

// Join adds voterID at voterAddr to the cluster. Must be called against
// the current leader.
func (n *Node) Join(voterID, voterAddr string) error {
	if n.Raft.State() != raft.Leader {
		return fmt.Errorf("cluster: join must target the leader, this node is %s", n.Raft.State())
	}
	future := n.Raft.AddVoter(raft.ServerID(voterID), raft.ServerAddress(voterAddr), 0, 10*time.Second)
	return future.Error()
}

// Set replicates a key/value write through Raft. Must be called against
// the leader; hashicorp/raft returns raft.ErrNotLeader otherwise.
func (n *Node) Set(key, value string) error {
	return n.apply(command{Kind: opSet, Key: key, Value: value})
}

func (n *Node) Delete(key string) error {
	return n.apply(command{Kind: opDelete, Key: key})
}

func (n *Node) AddMember(m Member) error {
	return n.apply(command{Kind: opAddNode, Node: m})
}

func (n *Node) RemoveMember(id string) error {
	return n.apply(command{Kind: opRemoveNode, Node: Member{ID: id}})
}

func (n *Node) apply(cmd command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("cluster: encode command: %w", err)
	}
	future := n.Raft.Apply(data, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("cluster: apply: %w", err)
	}
	if res := future.Response(); res != nil {
		if err, ok := res.(error); ok {
			return err
		}
	}
	return nil
}

// IsLeader reports whether this node currently holds leadership.
func (n *Node) IsLeader() bool {
	return n.Raft.State() == raft.Leader
}

// Shutdown stops the Raft node and closes its on-disk stores.
func (n *Node) Shutdown() error {
	if err := n.Raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("cluster: raft shutdown: %w", err)
	}
	return n.logStore.Close()
}
