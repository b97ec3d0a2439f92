package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/textproto"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
)

// ftpConn is the part of *ftp.ServerConn the store uses
type ftpConn interface {
	FileSize(path string) (int64, error)
	Stor(path string, r io.Reader) error
	Delete(path string) error
	ChangeDir(path string) error
	MakeDir(path string) error
	Quit() error
}

// FTPStore keeps uploads on an FTP server under basePath. All commands
// share one control connection, serialised by mu.
type FTPStore struct {
	basePath string
	dial     func() (ftpConn, error)

	mu   sync.Mutex
	conn ftpConn
}

func NewFTPStore(host, port, user, password, basePath string) *FTPStore {
	addr := host + ":" + port
	return &FTPStore{
		basePath: strings.Trim(basePath, "/"),
		dial: func() (ftpConn, error) {
			conn, err := ftp.Dial(addr, ftp.DialWithTimeout(10*time.Second))
			if err != nil {
				return nil, fmt.Errorf("failed to connect to FTP: %w", err)
			}
			if err := conn.Login(user, password); err != nil {
				conn.Quit()
				return nil, fmt.Errorf("failed to login to FTP: %w", err)
			}
			return conn, nil
		},
	}
}

// connect establishes connection to FTP server; callers hold mu
func (s *FTPStore) connect() error {
	if s.conn != nil {
		return nil
	}
	conn, err := s.dial()
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// do runs op on the shared connection. When the server has dropped the
// connection it is replaced once and op runs again.
func (s *FTPStore) do(op func(conn ftpConn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(); err != nil {
		return err
	}
	err := op(s.conn)
	if err == nil || !isConnectionError(err) {
		return err
	}

	s.conn.Quit()
	s.conn = nil
	if err := s.connect(); err != nil {
		return err
	}
	return op(s.conn)
}

// isConnectionError tells a broken control connection from an FTP reply
func isConnectionError(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code == ftp.StatusNotAvailable
	}
	var netErr net.Error
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.As(err, &netErr)
}

func isFileUnavailable(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) && protoErr.Code == ftp.StatusFileUnavailable
}

func (s *FTPStore) remotePath(p string) string {
	return path.Join("/", s.basePath, path.Clean("/"+p))
}

// Exists reports whether a file exists at path
func (s *FTPStore) Exists(p string) (bool, error) {
	exists := false
	err := s.do(func(conn ftpConn) error {
		_, err := conn.FileSize(s.remotePath(p))
		exists = err == nil
		return err
	})
	if err != nil {
		if isFileUnavailable(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return exists, nil
}

// Create uploads data to a new path. The existence check and upload run
// under one lock, so writers in this process cannot claim the same name.
func (s *FTPStore) Create(p string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	remote := s.remotePath(p)
	err = s.do(func(conn ftpConn) error {
		_, err := conn.FileSize(remote)
		if err == nil {
			return fmt.Errorf("%s: %w", remote, fs.ErrExist)
		}
		if !isFileUnavailable(err) {
			return err
		}
		return s.store(conn, remote, body)
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// Put uploads data to path, creating parent directories
func (s *FTPStore) Put(p string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	remote := s.remotePath(p)
	if err := s.do(func(conn ftpConn) error { return s.store(conn, remote, body) }); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *FTPStore) store(conn ftpConn, remote string, body []byte) error {
	if err := mkdirAll(conn, path.Dir(remote)); err != nil {
		return err
	}
	return conn.Stor(remote, bytes.NewReader(body))
}

// Delete deletes the file at path
func (s *FTPStore) Delete(p string) error {
	if err := s.do(func(conn ftpConn) error { return conn.Delete(s.remotePath(p)) }); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// MkdirAll creates dir and its parents
func (s *FTPStore) MkdirAll(dir string) error {
	return s.do(func(conn ftpConn) error { return mkdirAll(conn, s.remotePath(dir)) })
}

func mkdirAll(conn ftpConn, remoteDir string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(remoteDir, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		if err := conn.ChangeDir(current); err == nil {
			continue
		} else if isConnectionError(err) {
			return err
		}
		if err := conn.MakeDir(current); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", current, err)
		}
	}
	return nil
}

// Close closes the FTP connection
func (s *FTPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		err := s.conn.Quit()
		s.conn = nil
		return err
	}
	return nil
}
