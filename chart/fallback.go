package chart

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FallbackTable projects a raw tool result into a plain table. It is the
// last line of defense and always returns a valid ChartData.
func FallbackTable(rawResult, errText string) *ChartData {
	if td := tableFromRaw(rawResult); td != nil {
		return &ChartData{ChartType: "table", TableData: td}
	}

	if strings.TrimSpace(rawResult) != "" {
		return &ChartData{
			ChartType: "table",
			TableData: &TableData{Columns: []string{"结果"}, Rows: [][]string{{rawResult}}},
		}
	}

	return &ChartData{
		ChartType: "table",
		TableData: &TableData{Columns: []string{"错误"}, Rows: [][]string{{errText}}},
	}
}

// tableFromRaw tries to interpret rawResult as a JSON array of records,
// tuples, or scalars. Returns nil if nothing tabular can be extracted.
func tableFromRaw(rawResult string) *TableData {
	start := strings.Index(rawResult, "[")
	end := strings.LastIndex(rawResult, "]")
	if start == -1 || end <= start {
		return nil
	}
	payload := []byte(rawResult[start : end+1])

	var records []map[string]interface{}
	if err := json.Unmarshal(payload, &records); err == nil && len(records) > 0 {
		columns := make([]string, 0, len(records[0]))
		for k := range records[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)

		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			row := make([]string, len(columns))
			for i, c := range columns {
				row[i] = formatCell(rec[c])
			}
			rows = append(rows, row)
		}
		return &TableData{Columns: columns, Rows: rows}
	}

	var tuples [][]interface{}
	if err := json.Unmarshal(payload, &tuples); err == nil && len(tuples) > 0 {
		columns := make([]string, len(tuples[0]))
		for i := range columns {
			columns[i] = fmt.Sprintf("列%d", i+1)
		}
		rows := make([][]string, 0, len(tuples))
		for _, tup := range tuples {
			row := make([]string, len(columns))
			for i := range columns {
				if i < len(tup) {
					row[i] = formatCell(tup[i])
				}
			}
			rows = append(rows, row)
		}
		return &TableData{Columns: columns, Rows: rows}
	}

	var scalars []interface{}
	if err := json.Unmarshal(payload, &scalars); err == nil && len(scalars) > 0 {
		rows := make([][]string, 0, len(scalars))
		for _, v := range scalars {
			rows = append(rows, []string{formatCell(v)})
		}
		return &TableData{Columns: []string{"结果"}, Rows: rows}
	}

	return nil
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON numbers arrive as float64; keep integers clean.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
