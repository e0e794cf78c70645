// =============================================================================
// SAP Invoice Export - FTP Transmitter
// =============================================================================
//
// This module hands validated documents to the SAP inbound FTP drop.
//
// UPLOAD PROTOCOL:
//   1. Dial and log in (a fresh connection per attempt)
//   2. Change to the remote directory
//   3. Store the document under <name><temp_suffix>
//   4. Rename it to <name>
//
// SAP polls the drop for *.xml, so the temporary name keeps it from picking up
// a partially written file. A failed attempt is retried after
// retry_delay * attempt, up to `retries` extra attempts.
//
// =============================================================================

package transmit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"

	"github.com/freightbill/sap-invoice-export/internal/config"
	"github.com/freightbill/sap-invoice-export/internal/types"
)

var logger = logrus.WithField("component", "transmit")

// =============================================================================
// TYPES
// =============================================================================

// Outcome describes one Send call.
type Outcome struct {
	Sent       bool
	SentAt     time.Time
	RemoteName string
	Attempts   int

	// Log holds one line per attempt.
	Log []string
}

// Status converts the outcome to the status recorded on the invoice.
func (o Outcome) Status() *types.TransmissionStatus {
	return &types.TransmissionStatus{
		Sent:       o.Sent,
		SentAt:     o.SentAt,
		RemoteName: o.RemoteName,
	}
}

func (o *Outcome) logf(format string, args ...interface{}) {
	o.Log = append(o.Log, fmt.Sprintf(format, args...))
}

// Conn is the subset of *ftp.ServerConn used by the transmitter.
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	Stor(path string, r io.Reader) error
	Rename(from, to string) error
	Delete(path string) error
	Quit() error
}

// Dialer opens a connection to addr.
type Dialer func(ctx context.Context, addr string, timeout time.Duration) (Conn, error)

// DialFTP dials a real FTP server.
func DialFTP(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(timeout))
	}
	c, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// =============================================================================
// FTP TRANSMITTER
// =============================================================================

// FTP uploads documents to an FTP server.
type FTP struct {
	cfg  config.FTPConfig
	dial Dialer
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// NewFTP creates a transmitter for cfg.
func NewFTP(cfg config.FTPConfig) *FTP {
	return &FTP{
		cfg:  cfg,
		dial: DialFTP,
		now:  time.Now,
		wait: sleep,
	}
}

// Send uploads data as name.
//
// RETURNS:
//   - The outcome, including attempts made, even when the upload failed.
//   - An error if every attempt failed or ctx was cancelled.
func (f *FTP) Send(ctx context.Context, name string, data []byte) (Outcome, error) {
	out := Outcome{RemoteName: name}
	attempts := f.cfg.Retries + 1

	log := logger.WithFields(logrus.Fields{
		"host": f.cfg.Host,
		"file": name,
	})

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		out.Attempts = attempt

		if err = f.upload(ctx, name, data); err == nil {
			out.Sent = true
			out.SentAt = f.now()
			out.logf("attempt %d: stored %s (%d bytes)", attempt, name, len(data))
			log.WithField("attempt", attempt).Info("Transmitted document")
			return out, nil
		}

		out.logf("attempt %d: %v", attempt, err)
		log.WithError(err).WithField("attempt", attempt).Warn("Transmission attempt failed")

		if attempt == attempts {
			break
		}
		if werr := f.wait(ctx, f.cfg.RetryDelay*time.Duration(attempt)); werr != nil {
			return out, errors.Wrap(werr, "transmission cancelled")
		}
	}

	return out, errors.Wrapf(err, "transmit %s: %d attempts failed", name, attempts)
}

func (f *FTP) upload(ctx context.Context, name string, data []byte) error {
	c, err := f.dial(ctx, f.cfg.Addr(), f.cfg.Timeout)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer func() {
		if qerr := c.Quit(); qerr != nil {
			logger.WithError(qerr).Debug("FTP quit failed")
		}
	}()

	if f.cfg.User != "" {
		if err := c.Login(f.cfg.User, f.cfg.Password); err != nil {
			return errors.Wrap(err, "login")
		}
	}
	if f.cfg.RemoteDir != "" {
		if err := c.ChangeDir(f.cfg.RemoteDir); err != nil {
			return errors.Wrapf(err, "cd %s", f.cfg.RemoteDir)
		}
	}

	if f.cfg.TempSuffix == "" {
		if err := c.Stor(name, bytes.NewReader(data)); err != nil {
			return errors.Wrap(err, "store")
		}
		return nil
	}

	tmp := name + f.cfg.TempSuffix
	if err := c.Stor(tmp, bytes.NewReader(data)); err != nil {
		return errors.Wrapf(err, "store %s", tmp)
	}
	if err := c.Rename(tmp, name); err != nil {
		if derr := c.Delete(tmp); derr != nil {
			logger.WithError(derr).WithField("file", tmp).Warn("Could not remove temporary upload")
		}
		return errors.Wrapf(err, "rename %s", tmp)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
