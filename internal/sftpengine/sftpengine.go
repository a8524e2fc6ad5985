// Package sftpengine is the SFTP Engine: it owns the SSH/SFTP session to
// one remote host and the primitive stat/read/fetch operations the
// Snapshot Builder composes into a directory mirror. Authentication is
// key-only: a private key path per host, no password fallback.
package sftpengine

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/gingapard/rensen/internal/rensenerr"
)

const (
	connectTimeout  = 30 * time.Second
	minReadBufBytes = 4096
)

// DirEntry pairs a remote child name with its stat info.
type DirEntry struct {
	Name string
	Stat os.FileInfo
}

// Engine holds one connected SSH/SFTP session.
type Engine struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// ConnectAndAuth dials identifier:port, performs the SSH handshake, and
// authenticates with the private key at keyPath.
func ConnectAndAuth(ctx context.Context, identifier string, port int, user, keyPath string) (*Engine, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, rensenerr.Wrap(rensenerr.Auth, "read private key "+keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, rensenerr.Wrap(rensenerr.Auth, "parse private key "+keyPath, err)
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	addr := net.JoinHostPort(identifier, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, rensenerr.Wrap(rensenerr.Connect, "dial "+addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, rensenerr.Wrap(rensenerr.Handshake, "ssh handshake with "+addr, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, rensenerr.Wrap(rensenerr.Session, "start sftp subsystem", err)
	}

	return &Engine{sshClient: sshClient, sftpClient: sftpClient}, nil
}

// Close releases the SFTP and SSH sessions.
func (e *Engine) Close() error {
	var err error
	if e.sftpClient != nil {
		err = e.sftpClient.Close()
	}
	if e.sshClient != nil {
		if cerr := e.sshClient.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// RemoteStat returns the remote file's metadata.
func (e *Engine) RemoteStat(path string) (os.FileInfo, error) {
	info, err := e.sftpClient.Stat(path)
	if err != nil {
		return nil, rensenerr.Wrap(rensenerr.Metadata, "stat remote file "+path, err)
	}
	return info, nil
}

// RemoteMtime returns the remote file's last-modified time in whole
// seconds since epoch. A missing file surfaces as a Metadata error; the
// Snapshot Builder interprets that as "this file is gone."
func (e *Engine) RemoteMtime(path string) (uint64, error) {
	info, err := e.RemoteStat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.ModTime().Unix()), nil
}

// ReadDir lists the children of a remote directory.
func (e *Engine) ReadDir(path string) ([]DirEntry, error) {
	infos, err := e.sftpClient.ReadDir(path)
	if err != nil {
		return nil, rensenerr.Wrap(rensenerr.Metadata, "read remote directory "+path, err)
	}
	entries := make([]DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = DirEntry{Name: info.Name(), Stat: info}
	}
	return entries, nil
}

// FetchFile streams remotePath to localPath via the SFTP session using a
// small fixed-size buffer, then applies the remote file's size, mode,
// atime, and mtime to the local copy. Transparent read interruptions are
// retried; any other stream error is fatal to this one file.
func (e *Engine) FetchFile(remotePath, localPath string) error {
	remoteFile, err := e.sftpClient.Open(remotePath)
	if err != nil {
		return rensenerr.Wrap(rensenerr.Copy, "open remote file "+remotePath, err)
	}
	defer remoteFile.Close()

	stat, err := e.sftpClient.Stat(remotePath)
	if err != nil {
		return rensenerr.Wrap(rensenerr.Metadata, "stat remote file "+remotePath, err)
	}

	localFile, err := os.Create(localPath)
	if err != nil {
		return rensenerr.Wrap(rensenerr.FS, "create local file "+localPath, err)
	}

	buf := make([]byte, minReadBufBytes)
	for {
		n, rerr := remoteFile.Read(buf)
		if n > 0 {
			if _, werr := localFile.Write(buf[:n]); werr != nil {
				localFile.Close()
				return rensenerr.Wrap(rensenerr.FS, "write local file "+localPath, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			// An interrupted read is retried; anything else is a genuine
			// stream failure.
			if errors.Is(rerr, syscall.EINTR) {
				continue
			}
			localFile.Close()
			return rensenerr.Wrap(rensenerr.Channel, "read remote file "+remotePath, rerr)
		}
	}

	if err := localFile.Close(); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "close local file "+localPath, err)
	}

	return applyMetadata(localPath, stat)
}

func applyMetadata(localPath string, stat os.FileInfo) error {
	if err := os.Chmod(localPath, stat.Mode().Perm()); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "chmod "+localPath, err)
	}
	mtime := stat.ModTime()
	atime := mtime
	if fs, ok := stat.Sys().(*sftp.FileStat); ok {
		atime = time.Unix(int64(fs.Atime), 0)
	}
	if err := os.Chtimes(localPath, atime, mtime); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "set mtime on "+localPath, err)
	}
	return nil
}
