package insights

import (
	"errors"
	"strings"

	"github.com/KaramelBytes/datana-cli/internal/analysis"
	"github.com/KaramelBytes/datana-cli/internal/utils"
)

// SystemPrompt frames the model as a retail analyst.
func SystemPrompt(lang string) string {
	if NormalizeLang(lang) == LangVietnamese {
		return "Bạn là chuyên gia phân tích kinh doanh bán lẻ. Trả lời bằng tiếng Việt, ngắn gọn, dựa trên số liệu được cung cấp, không bịa số liệu."
	}
	return "You are a retail business analyst. Answer concisely, ground every claim in the figures provided and never invent numbers."
}

const defaultQuestion = "Summarize the sales performance, explain the main drivers and list 3-5 concrete actions for next month."

// BuildPrompt assembles a single-turn prompt from the analysis and the rule
// output, returning the text with its token estimate.
func BuildPrompt(r *analysis.Result, rec Recommendations, question, lang string) (string, int, error) {
	if r == nil {
		return "", 0, errors.New("analysis is nil")
	}
	if r.KPI.RowCount == 0 {
		return "", 0, errors.New("analysis has no usable rows")
	}
	q := strings.TrimSpace(question)
	if q == "" {
		q = defaultQuestion
	}
	var sb strings.Builder
	sb.WriteString("[INSTRUCTIONS]\n")
	sb.WriteString(q)
	sb.WriteString("\n\n")
	sb.WriteString("[SALES ANALYSIS]\n")
	sb.WriteString(r.Markdown())
	sb.WriteString("\n")
	if !rec.Empty() {
		sb.WriteString("[RULE-BASED FINDINGS]\n")
		sb.WriteString(rec.Markdown())
		sb.WriteString("\n")
	}
	sb.WriteString("[TASK]\n")
	sb.WriteString("Based on the sales analysis above, please: ")
	sb.WriteString(q)
	if NormalizeLang(lang) == LangVietnamese {
		sb.WriteString(" Trả lời bằng tiếng Việt.")
	}
	sb.WriteString("\n")

	prompt := sb.String()
	return prompt, utils.CountTokens(prompt), nil
}
