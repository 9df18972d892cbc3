package storage

import (
	"bytes"
	"encoding/json"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
	"os"
	"path/filepath"
	"scadabridge/pkg/apis"
	"scadabridge/pkg/runtime/constant"
	"scadabridge/pkg/utils/fileutil"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	lockRetryInterval = 10 * time.Millisecond
	lockTimeout       = 5 * time.Second
)

// FsStore keeps the document in a single JSON file. Saves go through a temp
// file and a rename so readers only ever see a complete document, and the
// previous good version is kept in a backup next to it.
type FsStore struct {
	path       string
	backupPath string
	tmpPath    string
	lockPath   string
	mu         sync.Mutex
}

var _ StateStore = (*FsStore)(nil)

func NewFsStore(path string) (*FsStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(absPath)
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		klog.V(2).InfoS("Created", "path", dir)
		if err = os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create state directory %s", dir)
		}
	} else if err != nil {
		return nil, err
	}

	return &FsStore{
		path:       absPath,
		backupPath: absPath + ".bak",
		tmpPath:    absPath + ".tmp",
		lockPath:   absPath + ".lock",
	}, nil
}

func (s *FsStore) Path() string {
	return s.path
}

func (s *FsStore) Load() (*Document, error) {
	release, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.loadLocked(), nil
}

func (s *FsStore) Save(doc *Document) error {
	release, err := s.lock()
	if err != nil {
		return err
	}
	defer release()
	return s.saveLocked(doc, true)
}

func (s *FsStore) AppendLog(message string) error {
	_, err := s.Update(func(doc *Document) error {
		doc.AppendLog(message)
		return nil
	})
	return err
}

func (s *FsStore) Update(fn func(doc *Document) error) (*Document, error) {
	release, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer release()

	doc := s.loadLocked()
	if err = fn(doc); err != nil {
		return nil, err
	}
	if err = s.saveLocked(doc, true); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *FsStore) Merge(patch []byte) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, errors.Wrapf(apis.ErrInvalidValue, "update must be a json object: %v", err)
	}

	release, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer release()

	doc := s.loadLocked()
	current, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}

	ops := replaceOperations(current, fields)
	if len(ops) == 0 {
		return doc, nil
	}
	opsJS, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}
	patchObj, err := jsonpatch.DecodePatch(opsJS)
	if err != nil {
		return nil, errors.Wrapf(apis.ErrInvalidValue, "%v", err)
	}
	patchedJS, err := patchObj.Apply(current)
	if err != nil {
		klog.V(3).InfoS("Failed to apply json patch", "err", err)
		return nil, errors.Wrapf(apis.ErrInvalidValue, "%v", err)
	}
	merged, err := decodeDocument(patchedJS)
	if err != nil {
		klog.V(3).InfoS("Rejected update", "err", err)
		return nil, errors.Wrapf(apis.ErrInvalidValue, "%v", err)
	}
	if err = s.saveLocked(merged, true); err != nil {
		return nil, err
	}
	return merged, nil
}

type patchOperation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

// replaceOperations keeps only keys already present at the top level of
// current, in a stable order.
func replaceOperations(current []byte, fields map[string]json.RawMessage) []patchOperation {
	var present map[string]json.RawMessage
	_ = json.Unmarshal(current, &present)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := present[k]; ok {
			keys = append(keys, k)
		} else {
			klog.V(4).InfoS("Ignored unknown section in update", "section", k)
		}
	}
	sort.Strings(keys)

	ops := make([]patchOperation, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, patchOperation{Op: "replace", Path: "/" + escapePointer(k), Value: fields[k]})
	}
	return ops
}

func escapePointer(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}

func (s *FsStore) lock() (func(), error) {
	s.mu.Lock()
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		s.mu.Unlock()
		return nil, errors.Wrap(err, "open state lock")
	}

	var releaser fileutil.Releaser
	err = wait.PollImmediate(lockRetryInterval, lockTimeout, func() (bool, error) {
		l, err := fileutil.NewLock(f)
		if err == nil {
			releaser = l
			return true, nil
		}
		if fileutil.IsLocked(err) {
			return false, nil
		}
		return false, err
	})
	if err != nil {
		_ = f.Close()
		s.mu.Unlock()
		klog.V(2).InfoS("Failed to lock", "path", s.lockPath, "err", err)
		return nil, errors.Wrap(err, "lock state document")
	}

	return func() {
		_ = releaser.Release()
		_ = f.Close()
		s.mu.Unlock()
	}, nil
}

func (s *FsStore) loadLocked() *Document {
	doc, err := readDocument(s.path)
	if err == nil {
		return doc
	}
	if os.IsNotExist(errors.Cause(err)) {
		klog.V(2).InfoS("State document not found, creating", "path", s.path)
	} else {
		klog.ErrorS(err, "Failed to load state document, trying backup", "path", s.path)
	}

	doc, err = readDocument(s.backupPath)
	if err != nil {
		klog.V(2).InfoS("Backup unusable, falling back to defaults", "path", s.backupPath, "err", err)
		doc = NewDefaultDocument()
	} else {
		klog.V(2).InfoS("Recovered state document from backup", "path", s.backupPath)
	}

	// the primary is unusable, keep the backup as it is
	if err = s.saveLocked(doc, false); err != nil {
		klog.ErrorS(err, "Failed to persist recovered state document", "path", s.path)
	}
	return doc
}

func (s *FsStore) saveLocked(doc *Document, backup bool) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if backup {
		s.backupLocked()
	}
	if err = writeFileAtomic(s.path, s.tmpPath, data); err != nil {
		klog.ErrorS(err, "Failed to write state document", "path", s.path)
		return err
	}
	return nil
}

// backupLocked copies the primary to the backup when it still decodes. A
// failure here never blocks the save.
func (s *FsStore) backupLocked() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			klog.V(2).InfoS("Failed to read state document for backup", "err", err)
		}
		return
	}
	if _, err = decodeDocument(data); err != nil {
		klog.V(2).InfoS("Skipped backup of damaged state document", "err", err)
		return
	}
	if err = writeFileAtomic(s.backupPath, s.backupPath+".tmp", data); err != nil {
		klog.V(2).InfoS("Failed to write state backup", "path", s.backupPath, "err", err)
	}
}

func readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return decodeDocument(data)
}

func decodeDocument(data []byte) (*Document, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, errors.Wrapf(constant.ErrStateCorruption, "%v", err)
	}
	for _, key := range RequiredSections {
		if v, ok := sections[key]; !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, errors.Wrapf(constant.ErrStateCorruption, "missing section %q", key)
		}
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrapf(constant.ErrStateCorruption, "%v", err)
	}
	if doc.Log == nil {
		doc.Log = []string{}
	}
	if len(doc.Log) > MaxLogEntries {
		doc.Log = doc.Log[len(doc.Log)-MaxLogEntries:]
	}
	if doc.Robot.TotalLines == 0 {
		doc.Robot.TotalLines = RobotTotalLines
	}
	return doc, nil
}

func encodeDocument(doc *Document) ([]byte, error) {
	if doc.Log == nil {
		doc.Log = []string{}
	}
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic never leaves tmpPath behind, whichever step fails.
func writeFileAtomic(path, tmpPath string, data []byte) (err error) {
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return err
	}
	syncDir(filepath.Dir(path))
	return nil
}

// syncDir persists the rename. Not every platform can fsync a directory, so
// a failure is only logged.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		klog.V(4).InfoS("Failed to open state directory for sync", "path", dir, "err", err)
		return
	}
	defer d.Close()
	if err = d.Sync(); err != nil {
		klog.V(4).InfoS("Failed to sync state directory", "path", dir, "err", err)
	}
}
