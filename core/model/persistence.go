package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// SaveModelToWriter はモデルを gob 形式で io.Writer に書き込む
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader は io.Reader から gob 形式のモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// SaveModel はモデルをファイルに保存する。書き込みは一時ファイル経由で行い、
// 途中で失敗しても既存のファイルは壊れない。
//
//	forest := ensemble.NewRandomForestRegressor()
//	// ... 学習 ...
//	err := model.SaveModel(forest, "wine_quality_model.gob")
func SaveModel(model interface{}, filename string) error {
	staged, err := StageFile(filename, func(w io.Writer) error {
		return SaveModelToWriter(model, w)
	})
	if err != nil {
		return err
	}
	return staged.Commit()
}

// LoadModel はファイルからモデルを読み込む
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()
	return LoadModelFromReader(model, file)
}

// StagedFile is a fully written and synced temporary file waiting to replace
// its destination.
type StagedFile struct {
	tmp  string
	dest string
}

// StageFile writes the content produced by write to a temporary file in the
// destination directory and fsyncs it. Nothing is visible at dest until Commit.
func StageFile(dest string, write func(w io.Writer) error) (*StagedFile, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", dir)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create temp file for %s", dest)
	}
	tmp := f.Name()

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, errors.Wrapf(err, "failed to sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, errors.Wrapf(err, "failed to close %s", tmp)
	}
	return &StagedFile{tmp: tmp, dest: dest}, nil
}

// Dest returns the final path.
func (s *StagedFile) Dest() string {
	return s.dest
}

// Commit atomically renames the staged file over its destination.
func (s *StagedFile) Commit() error {
	if err := os.Rename(s.tmp, s.dest); err != nil {
		os.Remove(s.tmp)
		return errors.Wrapf(err, "failed to replace %s", s.dest)
	}
	return nil
}

// Abort discards the staged file.
func (s *StagedFile) Abort() {
	os.Remove(s.tmp)
}

// CommitAll commits the staged files in order. If any rename fails, the files
// already committed are rolled back to their previous content (or removed when
// they did not exist) and the rest are aborted.
func CommitAll(files ...*StagedFile) error {
	type undo struct {
		dest, backup string
	}
	var done []undo

	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			u := done[i]
			if u.backup == "" {
				os.Remove(u.dest)
				continue
			}
			os.Rename(u.backup, u.dest)
		}
	}

	for i, f := range files {
		backup, err := backupFile(f.dest)
		if err == nil {
			err = f.Commit()
			if err != nil && backup != "" {
				os.Remove(backup)
			}
		} else {
			f.Abort()
		}
		if err != nil {
			rollback()
			for _, rest := range files[i+1:] {
				rest.Abort()
			}
			return err
		}
		done = append(done, undo{dest: f.dest, backup: backup})
	}

	for _, u := range done {
		if u.backup != "" {
			os.Remove(u.backup)
		}
	}
	return nil
}

// backupFile hard-links dest to a sibling path so it survives a rename over
// dest. It returns "" when dest does not exist.
func backupFile(dest string) (string, error) {
	info, err := os.Lstat(dest)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to stat %s", dest)
	}
	if !info.Mode().IsRegular() {
		return "", errors.Newf("%s is not a regular file", dest)
	}

	backup := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".bak")
	os.Remove(backup)
	if err := os.Link(dest, backup); err == nil {
		return backup, nil
	}

	staged, err := StageFile(backup, func(w io.Writer) error {
		src, err := os.Open(dest)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to back up %s", dest)
	}
	if err := staged.Commit(); err != nil {
		return "", err
	}
	return backup, nil
}
