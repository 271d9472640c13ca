package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var errNotExist = errors.New("record does not exist")

// jsonStore keeps one JSON document per record under <root>/<kind>/<id>.json.
type jsonStore struct {
	dir string
}

func newJSONStore(root, kind string) *jsonStore {
	return &jsonStore{dir: filepath.Join(root, kind)}
}

func validateID(id string) error {
	if id == "" {
		return errors.New("identifier cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("identifier contains invalid characters")
	}

	return nil
}

func (s *jsonStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *jsonStore) read(id string, out any) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(s.path(id)) // #nosec G304 -- id is validated above
	if err != nil {
		if os.IsNotExist(err) {
			return errNotExist
		}

		return fmt.Errorf("failed to read %s: %w", id, err)
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return nil
}

// write replaces the document atomically through a temp file rename.
func (s *jsonStore) write(id string, value any) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	err = os.MkdirAll(s.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	tmp := s.path(id) + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	err = os.Rename(tmp, s.path(id))
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", id, err)
	}

	return nil
}

func (s *jsonStore) remove(id string) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	err = os.Remove(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return errNotExist
		}

		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return nil
}

func (s *jsonStore) ids() ([]string, error) {
	files, err := fs.Glob(os.DirFS(s.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
