// Package chart asks the model to pick a visualization for a query result
// and repairs whatever it answers into a well-formed rendering spec. The
// fallback path never fails: any input degrades to a plain table.
package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// TableData is the simple tabular form every chart carries alongside its
// rendering spec.
type TableData struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ChartData is the synthesized visualization: a type among bar/line/pie/
// table, an optional rendering spec, and the table form.
type ChartData struct {
	ChartType string                 `json:"chart_type"`
	ChartSpec map[string]interface{} `json:"chart_spec"`
	TableData *TableData             `json:"table_data"`
}

const systemPrompt = `你是一个数据可视化专家。根据用户的查询问题和 SQL 查询结果，你需要：

1. 判断最合适的图表类型（bar/line/pie/table）
2. 生成完整的图表渲染配置 JSON
3. 同时生成表格数据

返回严格的 JSON 格式（不要包含任何其他文字或 markdown 标记），结构如下：
{
  "chartType": "bar|line|pie|table",
  "chartSpec": { ... 完整的渲染配置 ... },
  "tableData": {
    "columns": ["列名1", "列名2"],
    "rows": [["值1", "值2"], ...]
  }
}

图表选择规则：
- 比较不同类别的数值（如各部门销售额）-> bar（柱状图）
- 展示时间趋势变化（如月度销售额）-> line（折线图）
- 展示占比分布（如产品销售占比）-> pie（饼图）
- 数据行列较多或无明显可视化需求 -> table（纯表格）

配置要求：
- 柱状图/折线图必须包含 xAxis, yAxis, series, tooltip
- 饼图必须包含 series[0].type='pie', series[0].data, tooltip, legend
- 数值使用千分位格式化`

// Synthesizer turns a query result into a chart decision via one model
// call.
type Synthesizer struct {
	chatModel model.ChatModel
	logger    func(string)
}

// NewSynthesizer creates a Synthesizer over a tool-free chat model.
func NewSynthesizer(chatModel model.ChatModel, logger func(string)) *Synthesizer {
	if logger == nil {
		logger = func(string) {}
	}
	return &Synthesizer{chatModel: chatModel, logger: logger}
}

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*\n?")
	fenceCloseRe = regexp.MustCompile("\n?```\\s*$")
)

// Synthesize classifies the result shape and returns a rendering decision.
// It never fails: a model error or unparseable answer degrades to the
// deterministic table fallback.
func (s *Synthesizer) Synthesize(ctx context.Context, question, sqlText, rawResult string) *ChartData {
	msgs := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: fmt.Sprintf(`用户问题: %s

执行的 SQL:
%s

查询结果:
%s

请分析以上数据，选择最合适的图表类型，并生成完整的渲染配置和表格数据。
只返回 JSON，不要任何其他文字。`, question, sqlText, rawResult)},
	}

	resp, err := s.chatModel.Generate(ctx, msgs)
	if err != nil {
		s.logger(fmt.Sprintf("[CHART] model call failed, falling back to table: %v", err))
		return FallbackTable(rawResult, err.Error())
	}

	data, err := parseChartJSON(resp.Content)
	if err != nil {
		s.logger(fmt.Sprintf("[CHART] parse failed, falling back to table: %v", err))
		return FallbackTable(rawResult, err.Error())
	}

	s.logger(fmt.Sprintf("[CHART] type=%s hasSpec=%t", data.ChartType, data.ChartSpec != nil))
	return data
}

// parseChartJSON repairs the model output in three passes: strip thinking
// markup, strip code fences, then brace-extract if the remainder still
// doesn't start with '{'.
func parseChartJSON(content string) (*ChartData, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimSpace(thinkBlockRe.ReplaceAllString(content, ""))

	if strings.HasPrefix(content, "```") {
		content = fenceOpenRe.ReplaceAllString(content, "")
		content = fenceCloseRe.ReplaceAllString(content, "")
	}

	if !strings.HasPrefix(content, "{") {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start != -1 && end > start {
			content = content[start : end+1]
		}
	}

	var raw struct {
		ChartType string                 `json:"chartType"`
		ChartSpec map[string]interface{} `json:"chartSpec"`
		TableData *TableData             `json:"tableData"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, err
	}
	if raw.ChartType == "" {
		raw.ChartType = "table"
	}
	return &ChartData{
		ChartType: raw.ChartType,
		ChartSpec: raw.ChartSpec,
		TableData: raw.TableData,
	}, nil
}
