package slackapp

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

const (
	ActionModeSelection   = "mode_selection"
	ActionMonthSelection  = "month_selection"
	ActionOpenReportModal = "open_report_modal"
	CallbackReportModal   = "report_modal"

	blockModeSelect      = "mode_select"
	blockMonthStreaming  = "month_select_stream"
	blockMonthBatch      = "month_select_batch"
	blockResult          = "review_result"
	blockResultActions   = "review_result_actions"
	blockReportPeriod    = "report_period"
	blockReportTags      = "report_tags"
	blockReportContent   = "report_content"
	actionReportPeriod   = "period_input"
	actionReportTags     = "tags_input"
	actionReportContent  = "content_input"
	maxSectionTextLength = 3000
)

const (
	modeSelectText   = "こんにちは。co-py-bot だよ。\nストリーミングモードで実行する？"
	monthSelectText  = "マンスリーレビューを作成したい対象月を選んでね。"
	chatPendingText  = "回答を生成しています。しばらくお待ちください。"
	reportButtonText = "週報を書く"
)

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func markdownText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func option(label, value string) *slack.OptionBlockObject {
	return slack.NewOptionBlockObject(value, plainText(label), nil)
}

// ModeSelectBlocks asks whether the review should stream progress into the channel.
func ModeSelectBlocks() []slack.Block {
	sel := slack.NewOptionsSelectBlockElement(
		slack.OptTypeStatic,
		plainText("選択してください"),
		ActionModeSelection,
		option("はい", "1"),
		option("いいえ", "0"),
	)
	return []slack.Block{
		slack.NewSectionBlock(markdownText(modeSelectText), nil, slack.NewAccessory(sel), slack.SectionBlockOptionBlockID(blockModeSelect)),
	}
}

// MonthSelectBlocks offers the given months. The block id records the streaming choice.
func MonthSelectBlocks(streaming bool, months []int) []slack.Block {
	opts := make([]*slack.OptionBlockObject, 0, len(months))
	for _, m := range months {
		v := strconv.Itoa(m)
		opts = append(opts, option(v+"月", v))
	}
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plainText("対象月を選択"), ActionMonthSelection, opts...)
	return []slack.Block{
		slack.NewSectionBlock(markdownText(monthSelectText), nil, slack.NewAccessory(sel), slack.SectionBlockOptionBlockID(monthBlockID(streaming))),
	}
}

func monthBlockID(streaming bool) string {
	if streaming {
		return blockMonthStreaming
	}
	return blockMonthBatch
}

func streamingFromBlockID(blockID string) bool {
	return strings.TrimSpace(blockID) == blockMonthStreaming
}

// ResultBlocks renders a finished review with a button to add a report.
func ResultBlocks(text string) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(markdownText(truncateRunes(text, maxSectionTextLength)), nil, nil, slack.SectionBlockOptionBlockID(blockResult)),
		slack.NewActionBlock(blockResultActions,
			slack.NewButtonBlockElement(ActionOpenReportModal, "open", plainText(reportButtonText)),
		),
	}
}

// ReportModal builds the weekly report form. channelID is echoed back through private metadata.
func ReportModal(channelID, periodHint string) slack.ModalViewRequest {
	period := slack.NewPlainTextInputBlockElement(plainText(periodHint), actionReportPeriod)
	tags := slack.NewPlainTextInputBlockElement(plainText("研究, 開発"), actionReportTags)
	content := slack.NewPlainTextInputBlockElement(plainText("今週の活動と成果"), actionReportContent)
	content.Multiline = true

	tagsBlock := slack.NewInputBlock(blockReportTags, plainText("タグ (カンマ区切り)"), nil, tags)
	tagsBlock.Optional = true

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackReportModal,
		Title:           plainText("週報"),
		Submit:          plainText("送信"),
		Close:           plainText("キャンセル"),
		PrivateMetadata: channelID,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(blockReportPeriod, plainText("活動報告 (例: 1Q-03)"), nil, period),
			tagsBlock,
			slack.NewInputBlock(blockReportContent, plainText("内容"), nil, content),
		}},
	}
}

type reportSubmission struct {
	Period  string
	Tags    []string
	Content string
}

func parseReportSubmission(view slack.View) reportSubmission {
	var out reportSubmission
	if view.State == nil {
		return out
	}
	values := view.State.Values
	out.Period = strings.TrimSpace(values[blockReportPeriod][actionReportPeriod].Value)
	out.Content = strings.TrimSpace(values[blockReportContent][actionReportContent].Value)
	for _, tag := range strings.FieldsFunc(values[blockReportTags][actionReportTags].Value, func(r rune) bool {
		return r == ',' || r == '、'
	}) {
		if tag = strings.TrimSpace(tag); tag != "" {
			out.Tags = append(out.Tags, tag)
		}
	}
	return out
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
