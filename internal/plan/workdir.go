package plan

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tmt/internal/workdir"
)

const (
	worktreeDirName = "tree"
	dataDirName     = "data"
)

// initWorkdir creates the plan workdir below the run workdir together with
// the data directory, its environment and source script files, and the
// worktree.
func (p *Plan) initWorkdir() error {
	root := p.run.Workdir()
	if root == "" {
		return &GeneralError{Message: fmt.Sprintf("run workdir of plan '%s' is not initialized", p.name)}
	}
	p.workdir = filepath.Join(root, planPath(p.name))
	p.dataDir = filepath.Join(p.workdir, dataDirName)
	if err := os.MkdirAll(p.dataDir, 0755); err != nil {
		return &GeneralError{Message: "failed to create plan workdir", Err: err}
	}

	for _, file := range []string{p.EnvironmentFile(), p.SourceScript()} {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return &GeneralError{Message: "failed to create " + filepath.Base(file), Err: err}
		}
		f.Close()
	}

	if p.tree == nil || p.tree.Root == "" {
		return nil
	}
	p.worktree = filepath.Join(p.workdir, worktreeDirName)
	if err := copyTree(p.tree.Root, p.worktree); err != nil {
		return &GeneralError{Message: "failed to create worktree", Err: err}
	}
	return nil
}

// planPath maps "/plans/smoke" to "plans/smoke", sanitizing every component.
func planPath(name string) string {
	var parts []string
	for _, part := range strings.Split(name, "/") {
		if part == "" {
			continue
		}
		parts = append(parts, workdir.SanitizeName(part))
	}
	if len(parts) == 0 {
		return "default-plan"
	}
	return filepath.Join(parts...)
}

// copyTree copies src into dst honoring .gitignore files. rsync is used when
// available.
func copyTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	// dst may live inside src when the run workdir is placed in the tree.
	var skip string
	if rel, err := filepath.Rel(src, dst); err == nil && !strings.HasPrefix(rel, "..") {
		skip = strings.Split(filepath.ToSlash(rel), "/")[0]
	}

	if rsync, err := exec.LookPath("rsync"); err == nil {
		args := []string{"-ar", "--exclude", "/.git", "--filter=:- .gitignore"}
		if skip != "" {
			args = append(args, "--exclude", "/"+skip)
		}
		args = append(args, src+"/", dst)
		if out, err := exec.Command(rsync, args...).CombinedOutput(); err != nil {
			return fmt.Errorf("rsync: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	return copyDir(src, dst, skip)
}

// copyDir is the fallback without rsync, also used to seed derived plans.
// dst is created when missing. It skips .git and the top-level entry named
// skip but does not interpret .gitignore.
func copyDir(src, dst, skip string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return os.MkdirAll(dst, 0755)
		}
		if d.Name() == ".git" || (skip != "" && rel == skip) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return os.Symlink(link, target)
		default:
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
