package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/animgraph/internal/config"
)

// Kind names an operation on the graph.
type Kind string

const (
	KindCreateNode      Kind = "create_node"
	KindDestroyNode     Kind = "destroy_node"
	KindConnectProps    Kind = "connect_props"
	KindDisconnectProps Kind = "disconnect_props"
	KindRestoreDefaults Kind = "restore_defaults"
	KindTick            Kind = "tick"

	KindSetValue       Kind = "set_value"
	KindSetOffset      Kind = "set_offset"
	KindFlattenOffset  Kind = "flatten_offset"
	KindExtractOffset  Kind = "extract_offset"
	KindStartAnimation Kind = "start_animation"
	KindStopAnimation  Kind = "stop_animation"
)

var ErrInvalidCommand = errors.New("invalid command")

// Command is the canonical input model for every request that reaches the graph.
// Only the fields relevant to Kind are read.
type Command struct {
	ID          string               `json:"id"`
	Kind        Kind                 `json:"kind"`
	NodeID      int64                `json:"node_id,omitempty"`
	Node        *config.NodeDef      `json:"node,omitempty"`      // create_node
	View        int64                `json:"view,omitempty"`      // connect_props, disconnect_props
	ViewType    string               `json:"view_type,omitempty"` // connect_props
	FrameTimeMs float64              `json:"frame_time_ms"`       // tick
	Value       float64              `json:"value"`               // set_value, set_offset
	AnimationID string               `json:"animation_id,omitempty"`
	Animation   *config.AnimationDef `json:"animation,omitempty"` // start_animation
	ReceivedAt  time.Time            `json:"-"`
}

func CreateNode(def *config.NodeDef) *Command {
	return &Command{Kind: KindCreateNode, NodeID: def.ID, Node: def}
}

func DestroyNode(id int64) *Command {
	return &Command{Kind: KindDestroyNode, NodeID: id}
}

func ConnectProps(id, view int64, viewType string) *Command {
	return &Command{Kind: KindConnectProps, NodeID: id, View: view, ViewType: viewType}
}

func DisconnectProps(id, view int64) *Command {
	return &Command{Kind: KindDisconnectProps, NodeID: id, View: view}
}

func RestoreDefaults(id int64) *Command {
	return &Command{Kind: KindRestoreDefaults, NodeID: id}
}

func Tick(frameTime time.Duration) *Command {
	return &Command{Kind: KindTick, FrameTimeMs: float64(frameTime) / float64(time.Millisecond)}
}

// FrameTime returns a tick's frame time.
func (c *Command) FrameTime() time.Duration {
	return time.Duration(c.FrameTimeMs * float64(time.Millisecond))
}

// Prepare checks that the fields Kind needs are present and assigns an id and
// receive time when missing.
func (c *Command) Prepare() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCommand, err)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ReceivedAt.IsZero() {
		c.ReceivedAt = time.Now()
	}
	return nil
}

func (c *Command) validate() error {
	switch c.Kind {
	case KindCreateNode:
		if c.Node == nil {
			return errors.New("create_node requires node")
		}
		if c.NodeID == 0 {
			c.NodeID = c.Node.ID
		}
		if c.Node.ID != c.NodeID {
			return fmt.Errorf("node_id %d does not match node.id %d", c.NodeID, c.Node.ID)
		}
	case KindConnectProps, KindDisconnectProps:
		if c.View == 0 {
			return fmt.Errorf("%s requires view", c.Kind)
		}
	case KindTick:
		if c.FrameTimeMs < 0 {
			return errors.New("frame_time_ms must be non-negative")
		}
		return nil
	case KindStartAnimation:
		if c.Animation == nil {
			return errors.New("start_animation requires animation")
		}
	case KindStopAnimation:
		if c.AnimationID == "" {
			return errors.New("stop_animation requires animation_id")
		}
		return nil
	case KindDestroyNode, KindRestoreDefaults, KindSetValue, KindSetOffset,
		KindFlattenOffset, KindExtractOffset:
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	if c.NodeID <= 0 {
		return fmt.Errorf("%s requires a positive node_id", c.Kind)
	}
	return nil
}
