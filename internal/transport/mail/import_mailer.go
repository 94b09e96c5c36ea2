package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	gomail "github.com/go-mail/mail/v2"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

// sender is the part of *gomail.Dialer the mailer needs.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type ImportMailer struct {
	from   string
	dialer sender
}

func NewImportMailer(host string, port int, username, password, from string, skipTLSVerify bool) *ImportMailer {
	host = strings.TrimSpace(host)
	d := gomail.NewDialer(host, port, username, password)
	d.StartTLSPolicy = gomail.OpportunisticStartTLS
	d.TLSConfig = &tls.Config{ServerName: host, InsecureSkipVerify: skipTLSVerify}
	return &ImportMailer{from: strings.TrimSpace(from), dialer: d}
}

func (m *ImportMailer) NotifyImportFinished(ctx context.Context, to string, job *domain.ImportJob) error {
	if m == nil || m.dialer == nil {
		return errors.New("mailer not configured")
	}
	if m.from == "" {
		return errors.New("mailer missing sender address")
	}
	if job == nil {
		return errors.New("no import job")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", importSubject(job))
	msg.SetBody("text/plain", importBody(job))
	return m.dialer.DialAndSend(msg)
}

func importSubject(job *domain.ImportJob) string {
	return fmt.Sprintf("%s import %s: %s", strings.ToLower(string(job.EntityType)), job.Status, job.FileName)
}

func importBody(job *domain.ImportJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Import %s finished with status %s.\n\n", job.ID, job.Status)
	fmt.Fprintf(&b, "Total records:      %d\n", job.TotalRecords)
	fmt.Fprintf(&b, "Imported:           %d\n", job.SuccessfulImports)
	fmt.Fprintf(&b, "Failed:             %d\n", job.FailedImports)
	fmt.Fprintf(&b, "Skipped duplicates: %d\n", job.SkippedRecords)
	if job.FailureReason != nil {
		fmt.Fprintf(&b, "\nReason: %s\n", *job.FailureReason)
	}
	if job.FailedImports > 0 || job.SkippedRecords > 0 {
		fmt.Fprintf(&b, "\nDownload the row error report from /api/v1/bulk/import/%s/errors.csv\n", job.ID)
	}
	return b.String()
}
