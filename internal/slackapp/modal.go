package slackapp

import (
	"context"
	"fmt"
	"strings"

	"github.com/quailyquaily/notionbolt/internal/jobstore"
	"github.com/quailyquaily/notionbolt/reports"
	"github.com/slack-go/slack"
)

func (a *App) openReportModal(ctx context.Context, triggerID, channelID string) error {
	if strings.TrimSpace(triggerID) == "" {
		return fmt.Errorf("missing trigger_id")
	}
	return a.messenger.OpenView(ctx, triggerID, ReportModal(strings.TrimSpace(channelID), "1Q-01"))
}

// handleReportSubmission validates the form synchronously and appends the row in the background.
// A non-nil return is the view_submission response that keeps the modal open with errors.
func (a *App) handleReportSubmission(cb slack.InteractionCallback) *slack.ViewSubmissionResponse {
	sub := parseReportSubmission(cb.View)
	errs := map[string]string{}
	period, err := reports.ParsePeriod(sub.Period)
	if err != nil {
		errs[blockReportPeriod] = "「1Q-03」の形式で入力してね。"
	}
	if sub.Content == "" {
		errs[blockReportContent] = "内容を入力してね。"
	}
	if len(errs) > 0 {
		return slack.NewErrorsViewSubmissionResponse(errs)
	}

	userID := strings.TrimSpace(cb.User.ID)
	notify := strings.TrimSpace(cb.View.PrivateMetadata)
	if notify == "" {
		notify = userID
	}
	report := reports.Report{UserID: userID, Period: period, Tags: sub.Tags, Content: sub.Content}
	a.goJob(jobstore.Job{Kind: jobstore.KindAppend, Channel: notify, UserID: userID}, func(ctx context.Context) (string, error) {
		pageID, err := a.reports.Append(ctx, report)
		if err != nil {
			a.postError(notify, "", err)
			return "", err
		}
		_, err = a.messenger.PostMessage(ctx, notify, Message{
			Text: fmt.Sprintf("<@%s> %s の週報を登録したよ。", userID, period),
		})
		return pageID, err
	})
	return nil
}
