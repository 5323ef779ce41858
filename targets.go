package subwatch

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var (
	ErrTargetsNotFound = errors.New("targets file not found")
	ErrInvalidTargets  = errors.New("invalid targets file")
)

// Written when the targets file does not exist. The target is disabled so a
// fresh install never scans example.com by accident.
var targetsTemplate = TargetList{
	Targets: []*Target{
		{
			Domain:      "example.com",
			Enabled:     false,
			Description: "Sample domain - change this to your target",
			Priority:    "medium",
		},
	},
	Config: json.RawMessage(`{"notification_enabled": true, "scan_timeout": 300}`),
}

// Reads and writes the target list JSON document.
type TargetStore struct {
	fs    afero.Fs
	fpath string
}

func NewTargetStore(fs afero.Fs, fpath string) *TargetStore {
	return &TargetStore{fs: fs, fpath: fpath}
}

func (s *TargetStore) Path() string {
	return s.fpath
}

func (s *TargetStore) Load() (*TargetList, error) {
	data, err := afero.ReadFile(s.fs, s.fpath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrTargetsNotFound, s.fpath)
		}
		return nil, errors.Wrapf(err, "failed to read targets file %s", s.fpath)
	}

	var list TargetList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errors.Wrapf(ErrInvalidTargets, "%s: %v", s.fpath, err)
	}
	return &list, nil
}

func (s *TargetStore) Save(list *TargetList) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode targets")
	}

	if dir := filepath.Dir(s.fpath); dir != "" {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	if err := afero.WriteFile(s.fs, s.fpath, append(data, '\n'), 0644); err != nil {
		return errors.Wrapf(err, "failed to write targets file %s", s.fpath)
	}
	return nil
}

// Writes the template target list when there is no file yet. Returns
// whether a file was created.
func (s *TargetStore) CreateTemplate() (bool, error) {
	exists, err := afero.Exists(s.fs, s.fpath)
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", s.fpath)
	}
	if exists {
		return false, nil
	}

	tmpl := targetsTemplate
	if err := s.Save(&tmpl); err != nil {
		return false, err
	}
	return true, nil
}
