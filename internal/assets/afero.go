package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// AferoBackend stores each namespace as a directory under root. Production
// uses afero.NewOsFs(); tests use afero.NewMemMapFs().
type AferoBackend struct {
	fs   afero.Fs
	root string
}

func NewAferoBackend(fs afero.Fs, root string) *AferoBackend {
	if root == "" {
		root = "."
	}
	return &AferoBackend{fs: fs, root: root}
}

func (b *AferoBackend) dir(namespace string) (string, error) {
	if !validName(namespace) {
		return "", fmt.Errorf("invalid namespace %q", namespace)
	}
	return path.Join(b.root, namespace), nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

func (b *AferoBackend) List(ctx context.Context, namespace string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := b.dir(namespace)
	if err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(b.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	objects := make([]Object, 0, len(infos))
	for _, fi := range infos {
		// Hidden entries are in-flight temp files.
		if fi.IsDir() || strings.HasPrefix(fi.Name(), ".") {
			continue
		}
		objects = append(objects, Object{
			Name:      fi.Name(),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime().UTC(),
		})
	}
	return objects, nil
}

func (b *AferoBackend) Delete(ctx context.Context, namespace string, names ...string) error {
	dir, err := b.dir(namespace)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !validName(name) {
			return fmt.Errorf("invalid object name %q", name)
		}
		if err := b.fs.Remove(path.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// Put writes data to a temp file and renames it into place so readers never
// observe a partial object.
func (b *AferoBackend) Put(ctx context.Context, namespace, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validName(name) {
		return fmt.Errorf("invalid object name %q", name)
	}
	dir, err := b.dir(namespace)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}

	tmp := path.Join(dir, "."+uuid.NewString()+".tmp")
	if err := afero.WriteFile(b.fs, tmp, data, 0o644); err != nil {
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("write temp object: %w", err)
	}
	if err := b.fs.Rename(tmp, path.Join(dir, name)); err != nil {
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("rename object: %w", err)
	}
	return nil
}

func (b *AferoBackend) Open(ctx context.Context, namespace, name string) ([]byte, Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, Object{}, err
	}
	dir, err := b.dir(namespace)
	if err != nil {
		return nil, Object{}, err
	}
	if !validName(name) {
		return nil, Object{}, ErrObjectNotFound
	}

	p := path.Join(dir, name)
	fi, err := b.fs.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Object{}, ErrObjectNotFound
		}
		return nil, Object{}, err
	}
	data, err := afero.ReadFile(b.fs, p)
	if err != nil {
		return nil, Object{}, err
	}

	return data, Object{
		Name:        name,
		Size:        fi.Size(),
		ContentType: mimetype.Detect(data).String(),
		CreatedAt:   fi.ModTime().UTC(),
	}, nil
}
