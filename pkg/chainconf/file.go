package chainconf

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var (
	ErrNotPrivileged  = errors.New("root privileges required")
	ErrConfigNotFound = errors.New("config file not found")
)

// File is a proxychains configuration file on disk. Update is a full
// read, rewrite and atomic replace cycle; there is no locking against
// other processes updating the same path.
type File struct {
	// Path of the configuration file
	Path string
	// BackupTag is inserted into backup names: <path>.bak.<tag>.<unix>
	BackupTag string

	log        logrus.FieldLogger
	privileged func() error
	writeTemp  func(f *os.File, data []byte) error
	rename     func(oldpath, newpath string) error
	ownership  func(path string, info fs.FileInfo) error
	now        func() time.Time
}

func NewFile(path, backupTag string, log logrus.FieldLogger) *File {
	return &File{
		Path:       path,
		BackupTag:  backupTag,
		log:        orDiscard(log).WithField("conf", path),
		privileged: requireRoot,
		writeTemp:  writeAndSync,
		rename:     os.Rename,
		ownership:  applyOwnership,
		now:        time.Now,
	}
}

// Update rewrites the file so that strategy is active and the proxy list
// holds addrs. The previous content is copied to a timestamped backup
// first and restored from it if the new content cannot be put in place.
func (f *File) Update(strategy Strategy, t ProxyType, addrs []string) error {
	if err := f.privileged(); err != nil {
		f.log.Errorf("updating the config needs root privileges: %v", err)
		return err
	}

	info, err := os.Stat(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrConfigNotFound, f.Path)
		}
		f.log.Error(err)
		return err
	}

	backup := f.backupPath()
	f.log.Infof("backing up to %s", backup)
	if err := copyFile(f.Path, backup, info); err != nil {
		f.log.Errorf("backup failed: %v", err)
		return fmt.Errorf("backup %s: %w", f.Path, err)
	}

	if err := f.replace(strategy, t, addrs); err != nil {
		f.log.Errorf("update failed: %v", err)
		f.restore(backup, info)
		return err
	}

	if err := f.ownership(f.Path, info); err != nil {
		f.log.Warnf("restoring mode or owner: %v", err)
	}

	f.log.Infof("config updated: strategy %s, %d %s proxies", strategy, len(addrs), t)
	return nil
}

func (f *File) replace(strategy Strategy, t ProxyType, addrs []string) error {
	current, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.Path, err)
	}

	doc, sum := Rewrite(string(current), strategy, addrs, t, f.log)
	f.log.Debugf("rewrite: %+v", sum)

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), "."+filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := f.writeTemp(tmp, []byte(doc)); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := f.rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace %s: %w", f.Path, err)
	}
	return nil
}

func (f *File) restore(backup string, info fs.FileInfo) {
	f.log.Infof("restoring from %s", backup)
	if err := copyFile(backup, f.Path, info); err != nil {
		f.log.Errorf("restore failed: %v", err)
	}
}

func (f *File) backupPath() string {
	p := f.Path + ".bak."
	if f.BackupTag != "" {
		p += f.BackupTag + "."
	}
	return p + strconv.FormatInt(f.now().Unix(), 10)
}

//  ██╗  ██╗███████╗██╗     ██████╗ ███████╗██████╗ ███████╗
//  ██║  ██║██╔════╝██║     ██╔══██╗██╔════╝██╔══██╗██╔════╝
//  ███████║█████╗  ██║     ██████╔╝█████╗  ██████╔╝███████╗
//  ██╔══██║██╔══╝  ██║     ██╔═══╝ ██╔══╝  ██╔══██╗╚════██║
//  ██║  ██║███████╗███████╗██║     ███████╗██║  ██║███████║
//  ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝     ╚══════╝╚═╝  ╚═╝╚══════╝
//

func requireRoot() error {
	if uid := unix.Geteuid(); uid != 0 {
		return fmt.Errorf("%w: running as uid %d", ErrNotPrivileged, uid)
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src over dst keeping the mode of info.
func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Chmod(dst, info.Mode().Perm())
}

// applyOwnership sets the permission bits and owner of info on path.
func applyOwnership(path string, info fs.FileInfo) error {
	if err := os.Chmod(path, info.Mode().Perm()); err != nil {
		return err
	}

	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	return os.Chown(path, int(st.Uid), int(st.Gid))
}
