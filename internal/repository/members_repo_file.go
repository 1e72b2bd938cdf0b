package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/projecthub/invited/pkg/model"
)

var _ MembersRepository = &MembersFileRepository{}

// MembersFileRepository keeps project memberships in a yaml file and pushes
// them to the sink every time the file changes.
type MembersFileRepository struct {
	file   string
	sink   MembersSink
	logger *slog.Logger

	watcher *fsnotify.Watcher
}

func NewMembersFileRepo(file string, sink MembersSink) *MembersFileRepository {
	return &MembersFileRepository{
		file:   file,
		sink:   sink,
		logger: slog.Default().With("logger", "members"),
	}
}

// ReadMembers reads the members file. A missing file is an empty list.
func ReadMembers(file string) ([]*model.Membership, error) {
	dat, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	members := make([]*model.Membership, 0)

	if err := yaml.Unmarshal(dat, &members); err != nil {
		return nil, fmt.Errorf("bad members file %s: %w", file, err)
	}

	res := make([]*model.Membership, 0, len(members))
	seen := make(map[string]bool)

	for _, m := range members {
		if m == nil || m.ProjectID == "" || m.UserID == "" {
			continue
		}

		if !m.Role.Valid() {
			return nil, fmt.Errorf("bad role %q for user %s in project %s", m.Role, m.UserID, m.ProjectID)
		}

		key := m.ProjectID + "/" + m.UserID
		if seen[key] {
			return nil, fmt.Errorf("duplicate member %s in project %s", m.UserID, m.ProjectID)
		}

		seen[key] = true
		res = append(res, m)
	}

	return res, nil
}

func WriteMembers(file string, members []*model.Membership) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}

	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)

	if err := enc.Encode(members); err != nil {
		return err
	}

	return enc.Close()
}

func (r *MembersFileRepository) load() error {
	members, err := ReadMembers(r.file)
	if err != nil {
		return err
	}

	if err := r.sink.ReplaceMemberships(members); err != nil {
		return err
	}

	r.logger.Info(fmt.Sprintf("loaded %d memberships from %s", len(members), r.file))

	return nil
}

// Start loads the file and watches its directory, so editors that replace the
// file on save are noticed too.
func (r *MembersFileRepository) Start() error {
	if err := r.load(); err != nil {
		return err
	}

	var err error

	r.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := r.watcher.Add(filepath.Dir(r.file)); err != nil {
		_ = r.watcher.Close()
		return err
	}

	go r.watch(r.watcher)

	return nil
}

func (r *MembersFileRepository) watch(w *fsnotify.Watcher) {
	name := filepath.Clean(r.file)

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}

			r.logger.Debug(fmt.Sprintf("event: %v", event))

			if filepath.Clean(event.Name) != name || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			r.logger.Info("members file is modified, reloading")

			if err := r.load(); err != nil {
				r.logger.Error("reload error", slog.Any("error", err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}

			r.logger.Error("error", slog.Any("error", err))
		}
	}
}

func (r *MembersFileRepository) Stop() {
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
}
