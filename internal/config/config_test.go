package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sceneYAML = `
version: v1
engine:
  queue_depth: 16
views:
  - handle: 42
    type: RCTView
    props: {opacity: 1.0}
nodes:
  - {id: 1, type: value, value: 0}
  - {id: 2, type: interpolation, input: [1], input_range: [0, 1], output_range: [1, 0.2]}
  - {id: 3, type: props, props: {opacity: 2}}
bindings:
  - {node: 3, view: 42, view_type: RCTView}
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(sceneYAML))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Engine.FrameRate)
	assert.Equal(t, 16, cfg.Engine.QueueDepth)
	assert.Equal(t, 2000, cfg.Engine.CommandTimeoutMs)
	assert.Equal(t, "info", cfg.Engine.LogLevel)
	require.Len(t, cfg.Nodes, 3)
	assert.Equal(t, []int64{1}, cfg.Nodes[1].Input)
	assert.Equal(t, map[string]int64{"opacity": 2}, cfg.Nodes[2].Props)
	assert.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	id := int64(9)
	cases := []struct {
		name    string
		mutate  func(*SceneConfig)
		wantErr string
	}{
		{name: "missing version", mutate: func(c *SceneConfig) { c.Version = "" }, wantErr: "version is required"},
		{name: "negative queue", mutate: func(c *SceneConfig) { c.Engine.QueueDepth = -1 }, wantErr: "queue_depth"},
		{name: "bad log level", mutate: func(c *SceneConfig) { c.Engine.LogLevel = "loud" }, wantErr: "log_level"},
		{name: "duplicate node", mutate: func(c *SceneConfig) {
			c.Nodes = append(c.Nodes, NodeDef{ID: 1, Type: "value"})
		}, wantErr: "duplicate node id 1"},
		{name: "forward reference", mutate: func(c *SceneConfig) {
			c.Nodes[1].Input = []int64{3}
		}, wantErr: "not declared before it"},
		{name: "self reference", mutate: func(c *SceneConfig) {
			c.Nodes[2].Props["opacity"] = 3
		}, wantErr: "references itself"},
		{name: "dangling transform", mutate: func(c *SceneConfig) {
			c.Nodes = append(c.Nodes, NodeDef{ID: 4, Type: "transform", Transforms: []TransformDef{{Property: "scale", NodeID: &id}}})
		}, wantErr: "references node 9"},
		{name: "binding to non-props", mutate: func(c *SceneConfig) { c.Bindings[0].Node = 1 }, wantErr: "not props"},
		{name: "binding to unknown view", mutate: func(c *SceneConfig) { c.Bindings[0].View = 7 }, wantErr: "unknown view 7"},
		{name: "duplicate view", mutate: func(c *SceneConfig) {
			c.Views = append(c.Views, ViewDef{Handle: 42, Type: "RCTView"})
		}, wantErr: "duplicate handle 42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse([]byte(sceneYAML))
			require.NoError(t, err)
			tc.mutate(cfg)
			err = Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestReferences_Stable(t *testing.T) {
	a, b := int64(5), int64(6)
	d := NodeDef{
		Input:      []int64{1},
		Bindings:   map[string]int64{"y": 3, "x": 2},
		Transforms: []TransformDef{{Property: "rotate", NodeID: &a}, {Property: "scale"}},
		Props:      map[string]int64{"opacity": b},
	}
	assert.Equal(t, []int64{1, 2, 3, 5, 6}, d.References())
}

func TestLoader_ReloadNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sceneYAML), 0o644))

	l, err := NewLoader(path)
	require.NoError(t, err)
	assert.Equal(t, 16, l.Config().Engine.QueueDepth)

	got := make(chan *SceneConfig, 1)
	l.OnChange(func(c *SceneConfig) { got <- c })

	updated := "version: v2\nengine:\n  frame_rate: 30\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	_, err = l.Reload()
	require.NoError(t, err)

	select {
	case c := <-got:
		assert.Equal(t, "v2", c.Version)
		assert.Equal(t, 30, c.Engine.FrameRate)
	case <-time.After(time.Second):
		t.Fatal("OnChange callback not invoked")
	}
	assert.Equal(t, "v2", l.Config().Version)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoader_WatchSeesRenameSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sceneYAML), 0o644))

	l, err := NewLoader(path)
	require.NoError(t, err)
	stop, err := l.Watch()
	require.NoError(t, err)
	defer stop()

	tmp := filepath.Join(dir, "scene.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("version: v3\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	assert.Eventually(t, func() bool {
		return l.Config().Version == "v3"
	}, 3*time.Second, 20*time.Millisecond)
}
