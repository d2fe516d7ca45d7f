// Package roles implements the capability reset maintenance action: the
// stored role table is deleted and repopulated with the stock roles.
package roles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kberrors "github.com/conneroisu/kbdebug/internal/errors"
	"gopkg.in/yaml.v3"
)

// Role is a named set of capabilities.
type Role struct {
	Name         string   `yaml:"name"`
	DisplayName  string   `yaml:"display_name"`
	Capabilities []string `yaml:"capabilities"`
}

// Store persists the role table.
type Store interface {
	Delete(ctx context.Context) error
	Populate(ctx context.Context, roles []Role) error
}

// Reset deletes the stored roles and repopulates the defaults.
func Reset(ctx context.Context, store Store) error {
	if err := store.Delete(ctx); err != nil {
		return fmt.Errorf("deleting roles: %w", err)
	}
	if err := store.Populate(ctx, Defaults()); err != nil {
		return fmt.Errorf("populating roles: %w", err)
	}
	return nil
}

// Defaults returns the stock role table, most privileged first.
func Defaults() []Role {
	subscriber := []string{"read"}
	contributor := append([]string{"edit_posts", "delete_posts"}, subscriber...)
	author := append([]string{"upload_files", "publish_posts", "edit_published_posts", "delete_published_posts"}, contributor...)
	editor := append([]string{
		"moderate_comments", "manage_categories", "manage_links", "unfiltered_html",
		"edit_others_posts", "edit_pages", "edit_others_pages", "edit_published_pages",
		"publish_pages", "delete_pages", "delete_others_pages", "delete_published_pages",
		"delete_others_posts", "delete_private_posts", "edit_private_posts", "read_private_posts",
		"delete_private_pages", "edit_private_pages", "read_private_pages",
	}, author...)
	administrator := append([]string{
		"switch_themes", "edit_themes", "activate_plugins", "edit_plugins", "edit_users",
		"edit_files", "manage_options", "import", "list_users", "remove_users",
		"promote_users", "edit_theme_options", "delete_users", "create_users",
		"install_plugins", "update_plugins", "delete_plugins", "update_core",
	}, editor...)

	return []Role{
		{Name: "administrator", DisplayName: "Administrator", Capabilities: administrator},
		{Name: "editor", DisplayName: "Editor", Capabilities: editor},
		{Name: "author", DisplayName: "Author", Capabilities: author},
		{Name: "contributor", DisplayName: "Contributor", Capabilities: contributor},
		{Name: "subscriber", DisplayName: "Subscriber", Capabilities: subscriber},
	}
}

// FileStore keeps the role table in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Delete removes the role file. A missing file is not an error.
func (s *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return kberrors.NewIOError("ERR_ROLES_DELETE", "removing role file", err).
			WithContext("path", s.path)
	}
	return nil
}

// Populate writes roles, replacing the file atomically.
func (s *FileStore) Populate(ctx context.Context, roles []Role) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := yaml.Marshal(roles)
	if err != nil {
		return kberrors.NewInternalError("ERR_ROLES_ENCODE", "encoding roles", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return kberrors.NewIOError("ERR_ROLES_WRITE", "creating role directory", err).
			WithContext("path", dir)
	}

	tmp, err := os.CreateTemp(dir, ".roles-*.yml")
	if err != nil {
		return kberrors.NewIOError("ERR_ROLES_WRITE", "creating temp role file", err).
			WithContext("path", dir)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return kberrors.NewIOError("ERR_ROLES_WRITE", "writing role file", err).
			WithContext("path", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return kberrors.NewIOError("ERR_ROLES_WRITE", "closing role file", err).
			WithContext("path", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return kberrors.NewIOError("ERR_ROLES_WRITE", "replacing role file", err).
			WithContext("path", s.path)
	}
	return nil
}

// Load reads the stored roles. A missing file yields no roles.
func (s *FileStore) Load(ctx context.Context) ([]Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, kberrors.NewIOError("ERR_ROLES_READ", "reading role file", err).
			WithContext("path", s.path)
	}

	var roles []Role
	if err := yaml.Unmarshal(data, &roles); err != nil {
		return nil, kberrors.NewValidationError("ERR_ROLES_DECODE", "decoding role file").
			WithContext("path", s.path).WithContext("cause", err.Error())
	}
	return roles, nil
}
