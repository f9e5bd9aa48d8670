package notifications

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/wneessen/go-mail"

	"wavbatch/internal/config"
)

const (
	userAgent   = "wavbatch/0.1.0"
	sendTimeout = 30 * time.Second
	implicitTLS = 465
)

// Attachment is a file to include with the report.
type Attachment struct {
	Path string
	// Compress gzips the file and appends .gz to its name.
	Compress bool
}

// Report is one status message.
type Report struct {
	Subject     string
	Body        string
	Attachments []Attachment
}

// Service defines the notification surface exposed to the run orchestrator.
type Service interface {
	SendReport(ctx context.Context, report Report) error
	Enabled() bool
}

// NewService builds an SMTP service when mail is enabled. When it is not, a
// noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil || !cfg.Mail.Enabled {
		return noopService{}
	}
	return &mailService{settings: cfg.Mail}
}

type mailService struct {
	settings config.Mail
}

func (s *mailService) Enabled() bool { return true }

func (s *mailService) SendReport(ctx context.Context, report Report) error {
	msg, err := s.buildMessage(report)
	if err != nil {
		return err
	}
	client, err := s.newClient()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send status mail: %w", err)
	}
	return nil
}

func (s *mailService) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.settings.Port),
		mail.WithTimeout(sendTimeout),
	}
	if s.settings.Port == implicitTLS {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	if s.settings.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.settings.Username),
			mail.WithPassword(s.settings.Password),
		)
	}
	client, err := mail.NewClient(s.settings.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

func (s *mailService) buildMessage(report Report) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.settings.From); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(s.settings.To...); err != nil {
		return nil, fmt.Errorf("set to addresses: %w", err)
	}
	if len(s.settings.Cc) > 0 {
		if err := msg.Cc(s.settings.Cc...); err != nil {
			return nil, fmt.Errorf("set cc addresses: %w", err)
		}
	}
	subject := strings.TrimSpace(report.Subject)
	if subject == "" {
		subject = s.settings.Subject
	}
	msg.Subject(subject)
	msg.SetUserAgent(userAgent)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, report.Body)

	for _, att := range report.Attachments {
		if att.Compress {
			data, err := compressFile(att.Path)
			if err != nil {
				return nil, err
			}
			if err := msg.AttachReader(filepath.Base(att.Path)+".gz", bytes.NewReader(data)); err != nil {
				return nil, fmt.Errorf("attach %s: %w", att.Path, err)
			}
			continue
		}
		if _, err := os.Stat(att.Path); err != nil {
			return nil, fmt.Errorf("attach %s: %w", att.Path, err)
		}
		msg.AttachFile(att.Path)
	}
	return msg, nil
}

// compressFile returns the gzip encoding of path.
func compressFile(path string) ([]byte, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer src.Close()

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	gz.Name = filepath.Base(path)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		return nil, fmt.Errorf("compress attachment: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress attachment: %w", err)
	}
	return buf.Bytes(), nil
}

type noopService struct{}

func (noopService) SendReport(context.Context, Report) error { return nil }
func (noopService) Enabled() bool                            { return false }
