package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/dag-cluster/pkg/core/types"
	"github.com/LENAX/dag-cluster/pkg/core/workflow"
)

const sampleYAML = `
swarmflow_name: diamond
fireworks:
  1: [5, 1, [2, 3]]
  2: [10.5, 2, [4]]
  3: [20, 4, [4]]
  4: [5, 1]
scripts:
  4: "echo done"
`

const sampleDAX = `<?xml version="1.0" encoding="UTF-8"?>
<adag xmlns="http://pegasus.isi.edu/schema/DAX" version="2.1" count="1" index="0" name="test" jobCount="3" fileCount="0" childCount="1">
  <job id="ID00000" namespace="Montage" name="mProjectPP" version="1.0" runtime="13.59"/>
  <job id="ID00001" namespace="Montage" name="mProjectPP" version="1.0" runtime="13.83" cores="2"/>
  <job id="ID00002" namespace="Montage" name="mDiffFit" version="1.0"/>
  <child ref="ID00002">
    <parent ref="ID00000"/>
    <parent ref="ID00001"/>
  </child>
</adag>
`

func TestParseYAML(t *testing.T) {
	wf, err := New().ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "diamond", wf.Name)
	assert.Equal(t, workflow.StateReady, wf.State)
	require.Len(t, wf.Tasks, 4)
	assert.Equal(t, map[int][]int{1: {2, 3}, 2: {4}, 3: {4}}, wf.Links)
	assert.Equal(t, []int{1}, wf.RootIDs())

	second, err := wf.GetTask(2)
	require.NoError(t, err)
	assert.Equal(t, 10.5, second.Cost.ExecTime)
	assert.Equal(t, 2, second.Cost.Cores)
	require.Len(t, second.FireTasks, 1)
	assert.Contains(t, second.FireTasks[0].Script[0], "sleep 10.5")

	last, err := wf.GetTask(4)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo done"}, last.FireTasks[0].Script)
}

func TestParseYAML_Invalid(t *testing.T) {
	p := New()

	_, err := p.ParseYAML([]byte("fireworks:\n  1: [1, 1]\n"))
	assert.True(t, errors.Is(err, types.ErrInvalidInput))

	_, err = p.ParseYAML([]byte("swarmflow_name: x\nfireworks:\n  1: [1]\n"))
	assert.True(t, errors.Is(err, types.ErrInvalidInput))

	_, err = p.ParseYAML([]byte("swarmflow_name: x\nfireworks:\n  1: [1, 1, [9]]\n"))
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, err = p.ParseYAML([]byte("swarmflow_name: x\nfireworks: {}\n"))
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestParseDAX(t *testing.T) {
	wf, err := New().ParseDAX([]byte(sampleDAX))
	require.NoError(t, err)

	assert.Equal(t, "Montage_3", wf.Name)
	require.Len(t, wf.Tasks, 3)
	assert.Equal(t, map[int][]int{1: {3}, 2: {3}}, wf.Links)

	first, _ := wf.GetTask(1)
	assert.Equal(t, 1.359, first.Cost.ExecTime)
	assert.Equal(t, 0, first.Cost.Cores)

	second, _ := wf.GetTask(2)
	assert.Equal(t, 1.383, second.Cost.ExecTime)
	assert.Equal(t, 2, second.Cost.Cores)

	third, _ := wf.GetTask(3)
	assert.Equal(t, 0.0, third.Cost.ExecTime)
}

func TestParseDAX_RuntimeScale(t *testing.T) {
	wf, err := New(WithRuntimeScale(1)).ParseDAX([]byte(sampleDAX))
	require.NoError(t, err)

	first, _ := wf.GetTask(1)
	assert.Equal(t, 13.59, first.Cost.ExecTime)
}

func TestParseDAX_UnknownRef(t *testing.T) {
	doc := `<adag jobCount="1"><job id="a" namespace="n"/><child ref="b"><parent ref="a"/></child></adag>`
	_, err := New().ParseDAX([]byte(doc))
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "wf.yml")
	daxPath := filepath.Join(dir, "wf.xml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0644))
	require.NoError(t, os.WriteFile(daxPath, []byte(sampleDAX), 0644))

	p := New()
	wf, err := p.ParseFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "diamond", wf.Name)

	wf, err = p.ParseFile(daxPath)
	require.NoError(t, err)
	assert.Equal(t, "Montage_3", wf.Name)

	jsonPath := filepath.Join(dir, "wf.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0644))
	_, err = p.ParseFile(jsonPath)
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}
