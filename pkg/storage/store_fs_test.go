package storage

import (
	"encoding/json"
	"fmt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"scadabridge/pkg/apis"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *FsStore {
	t.Helper()
	s, err := NewFsStore(filepath.Join(t.TempDir(), "state", "db.json"))
	require.NoError(t, err)
	return s
}

func readRaw(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	raw := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func TestLoadRecoversDamagedDocument(t *testing.T) {
	cases := map[string]*string{
		"missing":    nil,
		"truncated":  strPtr(`{"plc1": {"state": "Encendido", "fo`),
		"incomplete": strPtr(`{"plc1": {"state": "Encendido", "focos": {}}, "log": []}`),
		"not object": strPtr(`[1, 2, 3]`),
		"null robot": strPtr(`{"plc1": {}, "plc2": {}, "plc3": {}, "robot": null, "log": []}`),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t)
			if content != nil {
				require.NoError(t, os.WriteFile(s.Path(), []byte(*content), 0640))
			}

			first, err := s.Load()
			require.NoError(t, err)
			assert.Equal(t, NewDefaultDocument(), first)

			raw := readRaw(t, s.Path())
			for _, key := range RequiredSections {
				assert.Contains(t, raw, key)
			}

			second, err := s.Load()
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestLoadFallsBackToBackup(t *testing.T) {
	s := newTestStore(t)
	doc := NewDefaultDocument()
	doc.Conveyor.State = ConveyorForward
	require.NoError(t, s.Save(doc))
	// second save moves the first one into the backup
	doc.Mixer.Progress = 40
	require.NoError(t, s.Save(doc))

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"plc1":`), 0640))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, ConveyorForward, loaded.Conveyor.State)
	assert.Equal(t, 0, loaded.Mixer.Progress)

	// the damaged primary must not have replaced the good backup
	backup, err := readDocument(s.backupPath)
	require.NoError(t, err)
	assert.Equal(t, ConveyorForward, backup.Conveyor.State)
}

func TestSaveWritesExactFieldNames(t *testing.T) {
	s := newTestStore(t)
	doc := NewDefaultDocument()
	doc.Conveyor = ConveyorState{State: ConveyorReverse, Lights: ConveyorLights{Powered: true, Reverse: true}}
	doc.Packer = MachineState{Progress: 20, Lights: MachineLights{Detected: true}}
	doc.Robot = RobotState{Status: RobotWorking, GcodeLine: 35, TotalLines: RobotTotalLines}
	require.NoError(t, s.Save(doc))

	raw := readRaw(t, s.Path())
	assert.Equal(t, map[string]interface{}{
		"state": "Reversa",
		"focos": map[string]interface{}{"encendido": true, "adelante": false, "reversa": true},
	}, raw["plc1"])
	assert.Equal(t, map[string]interface{}{
		"progress": float64(20),
		"focos":    map[string]interface{}{"deteccion": true, "trabajando": false},
	}, raw["plc3"])
	assert.Equal(t, map[string]interface{}{
		"foco": "trabajando", "gcode_line": float64(35), "total_lines": float64(100),
	}, raw["robot"])
	assert.Equal(t, []interface{}{}, raw["log"])

	_, err := os.Stat(s.tmpPath)
	assert.True(t, os.IsNotExist(err), "temp file left behind")
}

func TestAppendLogKeepsMostRecent(t *testing.T) {
	for _, n := range []int{0, 1, 99, 100, 101, 250} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			s := newTestStore(t)
			for i := 0; i < n; i++ {
				require.NoError(t, s.AppendLog(fmt.Sprintf("entry %d", i)))
			}
			doc, err := s.Load()
			require.NoError(t, err)

			expect := n
			if expect > MaxLogEntries {
				expect = MaxLogEntries
			}
			require.Len(t, doc.Log, expect)
			for i, entry := range doc.Log {
				assert.Equal(t, fmt.Sprintf("entry %d", n-expect+i), entry)
			}
		})
	}
}

func TestMergeReplacesKnownSectionsOnly(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load()
	require.NoError(t, err)

	merged, err := s.Merge([]byte(`{"plc2": {"progress": 55, "focos": {"deteccion": true, "trabajando": true}}, "plc9": {"x": 1}}`))
	require.NoError(t, err)
	assert.Equal(t, 55, merged.Mixer.Progress)
	assert.True(t, merged.Mixer.Lights.Working)

	raw := readRaw(t, s.Path())
	assert.NotContains(t, raw, "plc9")
	assert.Equal(t, ConveyorStandby, merged.Conveyor.State)
}

func TestMergeRejectsMalformed(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Merge([]byte(`[1]`))
	assert.True(t, errors.Is(err, apis.ErrInvalidValue))

	_, err = s.Merge([]byte(`{"log": "not a list"}`))
	assert.True(t, errors.Is(err, apis.ErrInvalidValue))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{}, doc.Log)
}

func TestConcurrentSavesKeepRequiredSections(t *testing.T) {
	s := newTestStore(t)
	wg := &sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			// poll tick: load, derive, save
			doc, err := s.Load()
			assert.NoError(t, err)
			doc.Mixer.Progress = i
			assert.NoError(t, s.Save(doc))
		}(i)
		go func(i int) {
			defer wg.Done()
			// action: append audit entry and save
			assert.NoError(t, s.AppendLog(fmt.Sprintf("action %d", i)))
		}(i)
	}
	wg.Wait()

	raw := readRaw(t, s.Path())
	for _, key := range RequiredSections {
		assert.Contains(t, raw, key)
	}
	_, err := readDocument(s.Path())
	assert.NoError(t, err)
}

func TestDocumentAppendLog(t *testing.T) {
	doc := NewDefaultDocument()
	for i := 0; i < MaxLogEntries+5; i++ {
		doc.AppendLog(fmt.Sprint(i))
	}
	assert.Len(t, doc.Log, MaxLogEntries)
	assert.Equal(t, "5", doc.Log[0])

	copied := doc.DeepCopy()
	copied.Log[0] = "changed"
	assert.Equal(t, "5", doc.Log[0])
}

func strPtr(s string) *string {
	return &s
}

func TestWriteFileAtomicRemovesTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	// a non-empty directory cannot be replaced by a file
	target := filepath.Join(dir, "db.json")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))
	tmp := target + ".tmp"

	err := writeFileAtomic(target, tmp, []byte("{}"))
	require.Error(t, err)
	_, statErr := os.Stat(tmp)
	assert.True(t, os.IsNotExist(statErr))

	ok := filepath.Join(dir, "ok.json")
	require.NoError(t, writeFileAtomic(ok, ok+".tmp", []byte("{}")))
	_, statErr = os.Stat(ok + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
	data, err := os.ReadFile(ok)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
