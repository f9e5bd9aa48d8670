package batchrun

import (
	"context"
	"fmt"
	"log/slog"

	"wavbatch/internal/config"
	"wavbatch/internal/layout"
	"wavbatch/internal/logging"
	"wavbatch/internal/notifications"
	"wavbatch/internal/report"
	"wavbatch/internal/services"
)

// Delivery is the result of the reporting phase.
type Delivery struct {
	Summary     report.Summary
	Rows        []report.Row
	Spreadsheet string
	MailSent    bool
	// MailErr is a delivery failure. Ledger and filesystem work is already
	// durable when it is set, so it is not returned as an error.
	MailErr error
}

// Report reconciles the ledger against the stage directories, rewrites the
// spreadsheet, and mails the summary without fetching anything.
func Report(ctx context.Context, cfg *config.Config, opts Options) (Delivery, error) {
	ctx, s, err := openSession(ctx, cfg, opts, "report")
	if err != nil {
		return Delivery{}, err
	}
	defer s.close()
	return s.deliver(ctx, report.Summary{Date: opts.runDate()})
}

func (s *session) deliver(ctx context.Context, summary report.Summary) (Delivery, error) {
	logger := logging.WithContext(ctx, s.logger)
	var d Delivery

	sources, err := s.store.Sources(ctx)
	if err != nil {
		return d, services.Wrap(services.ErrTransient, "report", "list sources", "Failed to read the ledger", err)
	}
	d.Rows, err = report.NewReconciler(layout.FromConfig(s.cfg)).Reconcile(ctx, sources)
	if err != nil {
		return d, fmt.Errorf("reconcile: %w", err)
	}
	summary.Drifted = report.DriftedNames(d.Rows)
	if len(summary.Drifted) > 0 {
		logging.WarnWithContext(logger, "ledger status differs from stage directories", "ledger_drift",
			logging.Int("drifted", len(summary.Drifted)),
			logging.String(logging.FieldErrorHint, "filesystem status is reported; run report again after fixing the tree"),
			logging.String(logging.FieldImpact, "report shows filesystem status for these recordings"),
		)
	}
	summary.Counts, err = s.store.Counts(ctx)
	if err != nil {
		return d, services.Wrap(services.ErrTransient, "report", "count sources", "Failed to read the ledger", err)
	}
	d.Summary = summary

	d.Spreadsheet = s.cfg.ReportPath()
	if err := report.WriteSpreadsheet(d.Spreadsheet, d.Rows); err != nil {
		return d, services.Wrap(services.ErrExternalTool, "report", "write spreadsheet", "Failed to write the status spreadsheet", err)
	}
	logger.Info("status spreadsheet written",
		logging.String(logging.FieldEventType, "report_written"),
		logging.String("path", d.Spreadsheet),
		logging.Int("rows", len(d.Rows)),
	)

	notifier := s.notifier()
	switch {
	case s.opts.SkipMail:
		logMailDecision(logger, "skipped", "skip_mail_flag")
		return d, nil
	case !notifier.Enabled():
		logMailDecision(logger, "skipped", "mail_disabled")
		return d, nil
	}
	logMailDecision(logger, "send", "mail_enabled")

	attachments := []notifications.Attachment{{Path: d.Spreadsheet}}
	if s.cfg.Mail.AttachLog {
		attachments = append(attachments, notifications.Attachment{Path: s.logPath, Compress: true})
	}
	err = notifier.SendReport(ctx, notifications.Report{
		Subject:     fmt.Sprintf("%s - %s", s.cfg.Mail.Subject, summary.DateLabel()),
		Body:        summary.Body(),
		Attachments: attachments,
	})
	if err != nil {
		d.MailErr = err
		logging.WarnWithContext(logger, "status mail failed", "mail_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check mail.host, mail.port and credentials"),
			logging.String(logging.FieldImpact, "recipients did not receive today's report"),
		)
		return d, nil
	}
	d.MailSent = true
	logger.Info("status mail sent",
		logging.String(logging.FieldEventType, "mail_sent"),
		logging.Int("recipients", len(s.cfg.Mail.To)+len(s.cfg.Mail.Cc)),
	)
	return d, nil
}

func logMailDecision(logger *slog.Logger, result, reason string) {
	logger.Info("status mail decision",
		logging.String(logging.FieldDecisionType, "status_mail"),
		logging.String("decision_result", result),
		logging.String("decision_reason", reason),
	)
}
