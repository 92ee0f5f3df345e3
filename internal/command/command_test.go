package command

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/animgraph/internal/config"
)

func TestPrepare(t *testing.T) {
	tests := []struct {
		name    string
		cmd     *Command
		wantErr bool
	}{
		{"create", CreateNode(&config.NodeDef{ID: 1, Type: "value"}), false},
		{"create without node", &Command{Kind: KindCreateNode, NodeID: 1}, true},
		{"create with mismatched id", &Command{Kind: KindCreateNode, NodeID: 2, Node: &config.NodeDef{ID: 1}}, true},
		{"connect", ConnectProps(2, 42, "RCTView"), false},
		{"connect without view", &Command{Kind: KindConnectProps, NodeID: 2}, true},
		{"disconnect", DisconnectProps(2, 42), false},
		{"restore", RestoreDefaults(2), false},
		{"restore without node", &Command{Kind: KindRestoreDefaults}, true},
		{"destroy", DestroyNode(3), false},
		{"tick", Tick(16 * time.Millisecond), false},
		{"negative tick", &Command{Kind: KindTick, FrameTimeMs: -1}, true},
		{"set value", &Command{Kind: KindSetValue, NodeID: 1, Value: 0.5}, false},
		{"start animation", &Command{Kind: KindStartAnimation, NodeID: 1, Animation: &config.AnimationDef{Type: "timing"}}, false},
		{"start without animation", &Command{Kind: KindStartAnimation, NodeID: 1}, true},
		{"stop animation", &Command{Kind: KindStopAnimation, AnimationID: "a"}, false},
		{"stop without id", &Command{Kind: KindStopAnimation}, true},
		{"unknown kind", &Command{Kind: "explode", NodeID: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Prepare()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCommand) {
					t.Fatalf("Prepare() error = %v, want ErrInvalidCommand", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Prepare() unexpected error: %v", err)
			}
			if tt.cmd.ID == "" {
				t.Error("Prepare() did not assign an id")
			}
			if tt.cmd.ReceivedAt.IsZero() {
				t.Error("Prepare() did not stamp ReceivedAt")
			}
		})
	}
}

func TestPrepare_KeepsCallerID(t *testing.T) {
	c := DestroyNode(1)
	c.ID = "req-1"
	if err := c.Prepare(); err != nil {
		t.Fatal(err)
	}
	if c.ID != "req-1" {
		t.Errorf("ID = %q, want req-1", c.ID)
	}
}

func TestDecodeCreateNode(t *testing.T) {
	body := `{"kind":"create_node","node":{"id":4,"type":"interpolation","input":[1],"input_range":[0,1],"output_range":[0,100]}}`
	var c Command
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		t.Fatal(err)
	}
	if err := c.Prepare(); err != nil {
		t.Fatal(err)
	}
	if c.NodeID != 4 {
		t.Errorf("NodeID = %d, want 4 (taken from node.id)", c.NodeID)
	}
	if len(c.Node.OutputRange) != 2 || c.Node.OutputRange[1] != 100 {
		t.Errorf("OutputRange = %v", c.Node.OutputRange)
	}
}

func TestTickFrameTime(t *testing.T) {
	c := Tick(1500 * time.Millisecond)
	if got := c.FrameTime(); got != 1500*time.Millisecond {
		t.Errorf("FrameTime() = %v, want 1.5s", got)
	}
}
