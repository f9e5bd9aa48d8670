// Package sftpremote implements the remote recording host over SSH/SFTP.
package sftpremote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"wavbatch/internal/config"
	"wavbatch/internal/fetcher"
	"wavbatch/internal/services"
)

// Client lists and retrieves files from the remote host.
type Client struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

// Dial connects to the configured host. Connection and authentication
// failures are returned as configuration errors so the run aborts.
func Dial(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("sftp dial: config is nil")
	}
	if err := cfg.ValidateRemoteCredentials(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "remote credentials", "", err)
	}
	clientConfig, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Remote.Host, strconv.Itoa(cfg.Remote.Port))
	dialer := net.Dialer{Timeout: cfg.RemoteTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "dial", addr, err)
	}
	if deadline := cfg.RemoteTimeout(); deadline > 0 {
		_ = conn.SetDeadline(time.Now().Add(deadline))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "ssh handshake", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "sftp session", addr, err)
	}
	return &Client{ssh: sshClient, sftp: sftpClient}, nil
}

func clientConfig(cfg *config.Config) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod
	if cfg.Remote.KeyPath != "" {
		data, err := os.ReadFile(cfg.Remote.KeyPath)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "fetch", "read private key", cfg.Remote.KeyPath, err)
		}
		var signer ssh.Signer
		if cfg.Remote.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(cfg.Remote.Password))
			if err != nil {
				signer, err = ssh.ParsePrivateKey(data)
			}
		} else {
			signer, err = ssh.ParsePrivateKey(data)
		}
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "fetch", "parse private key", cfg.Remote.KeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Remote.Password != "" {
		methods = append(methods, ssh.Password(cfg.Remote.Password))
	}

	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            cfg.Remote.Username,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         cfg.RemoteTimeout(),
	}, nil
}

func hostKeyCallback(cfg *config.Config) (ssh.HostKeyCallback, error) {
	if cfg.Remote.InsecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec
	}
	known := cfg.Remote.KnownHostsPath
	callback, err := knownhosts.New(known)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "known_hosts", known, err)
	}
	return callback, nil
}

// ReadDir lists dir on the remote host.
func (c *Client) ReadDir(ctx context.Context, dir string) ([]fetcher.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := c.sftp.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sftp readdir %s: %w", dir, err)
	}
	entries := make([]fetcher.Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, fetcher.Entry{
			Name:  info.Name(),
			Dir:   info.IsDir(),
			Size:  info.Size(),
			Mode:  info.Mode(),
			MTime: info.ModTime(),
		})
	}
	return entries, nil
}

// Fetch copies remotePath into localPath and returns the bytes written.
func (c *Client) Fetch(ctx context.Context, remotePath, localPath string) (int64, error) {
	src, err := c.sftp.Open(path.Clean(remotePath))
	if err != nil {
		return 0, fmt.Errorf("sftp open %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", localPath, err)
	}
	written, copyErr := io.Copy(dst, contextReader{ctx: ctx, r: src})
	closeErr := dst.Close()
	if copyErr != nil {
		return written, fmt.Errorf("sftp copy %s: %w", remotePath, copyErr)
	}
	if closeErr != nil {
		return written, fmt.Errorf("close %s: %w", localPath, closeErr)
	}
	return written, nil
}

// Close tears down the SFTP session and the SSH connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.sftp.Close(), c.ssh.Close())
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ fetcher.Remote = (*Client)(nil)
