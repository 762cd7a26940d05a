package chart

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

func TestParseChartJSONPlain(t *testing.T) {
	data, err := parseChartJSON(`{"chartType":"bar","chartSpec":{"series":[]},"tableData":{"columns":["部门"],"rows":[["销售部"]]}}`)
	if err != nil {
		t.Fatalf("parseChartJSON: %v", err)
	}
	if data.ChartType != "bar" {
		t.Errorf("ChartType = %q", data.ChartType)
	}
	if data.TableData == nil || data.TableData.Columns[0] != "部门" {
		t.Errorf("TableData = %+v", data.TableData)
	}
}

func TestParseChartJSONFenced(t *testing.T) {
	data, err := parseChartJSON("```json\n{\"chartType\":\"pie\"}\n```")
	if err != nil {
		t.Fatalf("parseChartJSON: %v", err)
	}
	if data.ChartType != "pie" {
		t.Errorf("ChartType = %q", data.ChartType)
	}
}

func TestParseChartJSONThinkBlock(t *testing.T) {
	data, err := parseChartJSON("<think>\n先看看数据形状\n</think>\n{\"chartType\":\"line\"}")
	if err != nil {
		t.Fatalf("parseChartJSON: %v", err)
	}
	if data.ChartType != "line" {
		t.Errorf("ChartType = %q", data.ChartType)
	}
}

func TestParseChartJSONBraceExtract(t *testing.T) {
	data, err := parseChartJSON(`好的，配置如下：{"chartType":"bar"} 希望有帮助`)
	if err != nil {
		t.Fatalf("parseChartJSON: %v", err)
	}
	if data.ChartType != "bar" {
		t.Errorf("ChartType = %q", data.ChartType)
	}
}

func TestParseChartJSONMissingTypeDefaultsTable(t *testing.T) {
	data, err := parseChartJSON(`{"chartSpec":{}}`)
	if err != nil {
		t.Fatalf("parseChartJSON: %v", err)
	}
	if data.ChartType != "table" {
		t.Errorf("ChartType = %q, want table", data.ChartType)
	}
}

func TestParseChartJSONGarbage(t *testing.T) {
	if _, err := parseChartJSON("这不是 JSON"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestFallbackTableRecords(t *testing.T) {
	raw := `Query executed successfully. Returned 2 rows.

[{"dept":"销售部","n":12},{"dept":"研发部","n":30}]`
	data := FallbackTable(raw, "")
	if data.ChartType != "table" {
		t.Fatalf("ChartType = %q", data.ChartType)
	}
	td := data.TableData
	if td == nil || len(td.Columns) != 2 || td.Columns[0] != "dept" || td.Columns[1] != "n" {
		t.Fatalf("Columns = %v, want sorted [dept n]", td)
	}
	if td.Rows[0][1] != "12" {
		t.Errorf("Rows[0][1] = %q, want clean integer", td.Rows[0][1])
	}
}

func TestFallbackTableTuples(t *testing.T) {
	data := FallbackTable(`[["销售部",12],["研发部",30]]`, "")
	td := data.TableData
	if td.Columns[0] != "列1" || td.Columns[1] != "列2" {
		t.Errorf("Columns = %v", td.Columns)
	}
	if len(td.Rows) != 2 {
		t.Errorf("len(Rows) = %d", len(td.Rows))
	}
}

func TestFallbackTableScalars(t *testing.T) {
	data := FallbackTable(`[1, 2.5, "三"]`, "")
	td := data.TableData
	if td.Columns[0] != "结果" {
		t.Errorf("Columns = %v", td.Columns)
	}
	want := [][]string{{"1"}, {"2.5"}, {"三"}}
	for i, w := range want {
		if td.Rows[i][0] != w[0] {
			t.Errorf("Rows[%d] = %v, want %v", i, td.Rows[i], w)
		}
	}
}

func TestFallbackTableTotality(t *testing.T) {
	cases := []struct {
		raw, errText string
		wantCol      string
		wantCell     string
	}{
		{"", "执行失败", "错误", "执行失败"},
		{"not json at all", "", "结果", "not json at all"},
		{"[]", "", "结果", "[]"},
		{"{broken", "", "结果", "{broken"},
	}
	for _, c := range cases {
		data := FallbackTable(c.raw, c.errText)
		if data == nil || data.TableData == nil {
			t.Fatalf("FallbackTable(%q) returned incomplete data", c.raw)
		}
		if data.ChartType != "table" {
			t.Errorf("ChartType = %q", data.ChartType)
		}
		td := data.TableData
		if td.Columns[0] != c.wantCol || td.Rows[0][0] != c.wantCell {
			t.Errorf("FallbackTable(%q, %q) = %v/%v, want %s/%s", c.raw, c.errText, td.Columns, td.Rows, c.wantCol, c.wantCell)
		}
	}
}

type scriptedModel struct {
	content string
	err     error
}

func (m *scriptedModel) BindTools(tools []*schema.ToolInfo) error { return nil }
func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.content}, nil
}
func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func TestSynthesizeUsesModelAnswer(t *testing.T) {
	s := NewSynthesizer(&scriptedModel{content: `{"chartType":"bar","tableData":{"columns":["部门"],"rows":[["销售部"]]}}`}, nil)
	data := s.Synthesize(context.Background(), "各部门人数", "SELECT dept, COUNT(*) FROM employees GROUP BY dept", `[{"dept":"销售部"}]`)
	if data.ChartType != "bar" {
		t.Errorf("ChartType = %q", data.ChartType)
	}
}

func TestSynthesizeModelErrorFallsBack(t *testing.T) {
	s := NewSynthesizer(&scriptedModel{err: errors.New("上游超时")}, nil)
	data := s.Synthesize(context.Background(), "q", "SELECT 1", `[{"a":1}]`)
	if data.ChartType != "table" || data.TableData == nil {
		t.Fatalf("fallback missing: %+v", data)
	}
}

func TestSynthesizeUnparseableAnswerFallsBack(t *testing.T) {
	s := NewSynthesizer(&scriptedModel{content: "抱歉，我无法生成配置"}, nil)
	data := s.Synthesize(context.Background(), "q", "SELECT 1", "")
	if data.ChartType != "table" || data.TableData == nil {
		t.Fatalf("fallback missing: %+v", data)
	}
	if data.TableData.Columns[0] != "错误" {
		t.Errorf("Columns = %v, want 错误 column for empty raw result", data.TableData.Columns)
	}
}
