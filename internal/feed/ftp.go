package feed

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/jlaffaye/ftp"
	log "github.com/sirupsen/logrus"
)

const defaultFTPPort = "21"

// FTPUploader stores feed files over explicit TLS, one connection per file.
type FTPUploader struct {
	addr     string
	host     string
	user     string
	password string
	timeout  time.Duration
}

// NewFTPUploader creates an uploader. host may carry a port, 21 is the default.
func NewFTPUploader(host, user, password string, timeout time.Duration) *FTPUploader {
	addr, name := ftpAddress(host)
	return &FTPUploader{addr: addr, host: name, user: user, password: password, timeout: timeout}
}

// ftpAddress returns the dial address and the TLS server name.
func ftpAddress(host string) (addr, name string) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return host, h
	}
	return net.JoinHostPort(host, defaultFTPPort), host
}

// Upload implements Uploader.
func (u *FTPUploader) Upload(ctx context.Context, name string, data []byte) error {
	conn, err := ftp.Dial(u.addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(u.timeout),
		ftp.DialWithExplicitTLS(&tls.Config{ServerName: u.host, MinVersion: tls.VersionTLS12}),
	)
	if err != nil {
		return fmt.Errorf("connect to ftp %s: %w", u.addr, err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			log.WithError(err).Debug("ftp quit failed")
		}
	}()

	if err := conn.Login(u.user, u.password); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}
	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		return fmt.Errorf("ftp binary mode: %w", err)
	}
	if err := conn.Stor(name, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("ftp store %s: %w", name, err)
	}
	log.WithField("file", name).Info("Feed uploaded")
	return nil
}
