// Package keystore persists DynamoDB access-key pairs to disk, keyed by a
// project's DynamoDB prefix. The on-disk record is the source of truth for
// "does this IAM user already have a live access key that we know about".
package keystore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/homeport/provisioner/internal/domain/provision"
	"github.com/homeport/provisioner/internal/pkg/logger"
)

// Store is a filesystem-backed credential store.
type Store struct {
	// StateDir is concatenated directly with the prefix to build the file
	// path, not joined via filepath.Join. Two StateDir values that differ
	// only by a trailing separator therefore name different files; this is
	// intentional (see the access-key record invariant in the design notes)
	// and must not be "fixed" by normalizing the path.
	StateDir string
}

// New constructs a Store rooted at stateDir.
func New(stateDir string) *Store {
	return &Store{StateDir: stateDir}
}

func (s *Store) path(prefix string) string {
	return s.StateDir + prefix + ".txt"
}

// Save writes the access-key pair for prefix as a two-line ASCII file:
// access-key ID on line 1, secret on line 2. The write is a plain
// truncating write; there is no atomic rename.
func (s *Store) Save(prefix string, key provision.AccessKey) error {
	f, err := os.OpenFile(s.path(prefix), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return provision.Wrap(provision.KindCreateAccessKey, fmt.Errorf("open access key file: %w", err))
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s\n%s\n", key.ID, key.Secret); err != nil {
		return provision.Wrap(provision.KindCreateAccessKey, fmt.Errorf("write access key file: %w", err))
	}
	return nil
}

// Load reads the access-key pair for prefix. ok is false, with a nil error,
// if the file does not exist or is malformed (fewer than two lines): the
// absence of a usable key is not itself a failure, only a signal that a new
// one must be created.
func (s *Store) Load(prefix string) (key provision.AccessKey, ok bool, err error) {
	f, err := os.Open(s.path(prefix))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return provision.AccessKey{}, false, nil
		}
		return provision.AccessKey{}, false, provision.Wrap(provision.KindGetAccessKeyID, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return provision.AccessKey{}, false, provision.Wrap(provision.KindGetAccessKeyID, err)
	}
	if len(lines) < 2 || strings.TrimSpace(lines[0]) == "" {
		logger.Warn("access key file malformed, treating as absent", "prefix", prefix)
		return provision.AccessKey{}, false, nil
	}
	return provision.AccessKey{ID: lines[0], Secret: lines[1]}, true, nil
}

// Delete removes the access-key file for prefix. A file that is already
// gone is not an error: the only caller of Delete (the DynamoDB
// orchestrator's delete path) has just successfully Loaded it, so this
// widening of the original "propagate the OS error" behavior never changes
// observable behavior on the documented happy path.
func (s *Store) Delete(prefix string) error {
	if err := os.Remove(s.path(prefix)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return provision.Wrap(provision.KindDeleteAccessKey, err)
	}
	return nil
}
