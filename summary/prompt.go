package summary

import (
	"fmt"

	"github.com/quailyquaily/notionbolt/llm"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

const systemTemplate = `You are an assistant who thinks step by step and includes a thought path in your response.
Your answers are in Japanese.`

const reviewTemplate = `{{.month}}月の週報の内容を以下のルールに従って要約してね。
要約というのは、文章全体の中から重要なトピックを見つけ出し、そのトピックごとに要点をまとめ、エッセンスとなる情報だけに絞り込むことだよ。
長い文章は要約とは言えないから注意してね。
＜ルール＞
・「活動内容と成果の実績」、「課題と解決策」、「できごと・気づき」の３つの大項目を立て、この大項目ごとに要約を記載すること（これ以外の項目は立てないこと）
・上記３つの各項目につき、３箇条ずつ箇条書きで要約を記載すること（４箇条以上は記載しないこと）
・一文につき各37文字以内とすること
・回答全体の総文字数は330文字以内とすること
・回答は12行以内とすること
・「今週の活動と成果の実績」という名前の項目は立てないこと

回答作成に当たっては次の記載例を参考にすること。
文字数や構成は下記記載例から大きく逸脱しないこと。
＜記載例＞
【活動内容と成果の実績】
・モブプログラミングを実施し、APIの使い方を学んだ
・スクラム運営方針を決定し、スプリントの設計を行った
・マンスリーレビューの指摘事項について振り返りを行った
【課題と解決策】
・スケジュール遅延が繰り返し生じている
・まだ悲鳴を上げることに抵抗感が残っている
・評価指標が未作成である
【できごと・気づき】
・モブプロにより他のメンバーとの知見共有がスムーズになった
・輪読会での学びがスプリントの設計に活用できた
・スクラムの精神を学び失敗しても大丈夫な雰囲気の醸成ができた

＜以下の行から先が週報の内容。下記を要約すること。＞
{{.weekly_reports}}`

const chatTemplate = `{{.text}}`

const minutesTemplate = `次の議事メモは「{{.title}}」のものだよ。
決定事項、課題、次回までのアクションの３つに分けて、それぞれ箇条書きで簡潔にまとめてね。

＜議事メモ＞
{{.notes}}`

func reviewPrompt() prompts.ChatPromptTemplate {
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(systemTemplate, nil),
		prompts.NewHumanMessagePromptTemplate(reviewTemplate, []string{"month", "weekly_reports"}),
	})
}

func chatPrompt() prompts.ChatPromptTemplate {
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(systemTemplate, nil),
		prompts.NewHumanMessagePromptTemplate(chatTemplate, []string{"text"}),
	})
}

func minutesPrompt() prompts.ChatPromptTemplate {
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(systemTemplate, nil),
		prompts.NewHumanMessagePromptTemplate(minutesTemplate, []string{"title", "notes"}),
	})
}

// renderMessages formats a chat template into llm messages.
func renderMessages(tmpl prompts.ChatPromptTemplate, values map[string]any) ([]llm.Message, error) {
	msgs, err := tmpl.FormatMessages(values)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: roleOf(m.GetType()), Content: m.GetContent()})
	}
	return out, nil
}

func roleOf(t llms.ChatMessageType) string {
	switch t {
	case llms.ChatMessageTypeSystem:
		return llm.RoleSystem
	case llms.ChatMessageTypeAI:
		return llm.RoleAssistant
	default:
		return llm.RoleUser
	}
}
