// Package table turns backend records into escaped HTML tables.
//
// Records arrive as decoded JSON objects whose shape differs per resource, so
// columns read them through accessors that never fail: a missing, null or
// blank field renders as Placeholder.
package table

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
)

const Placeholder = "-"

// Record is one decoded JSON object. Nested objects are Records too.
type Record map[string]any

type Accessor func(Record) string

type Column struct {
	Header   string
	Accessor Accessor
	// Badge renders the value inside a status pill.
	Badge bool
}

type Columns []Column

// RowAction is a button rendered in the trailing Actions cell. It posts to
// /actions/{Event}/{Key(record)}, or links to Href+Key(record) when Href is
// set.
type RowAction struct {
	Label   string
	Event   string
	Href    string
	Key     Accessor
	Visible func(Record) bool
	Confirm string
}

type Table struct {
	Columns      Columns
	Actions      []RowAction
	EmptyMessage string
}

type cellView struct {
	Value string
	Badge bool
}

type actionView struct {
	Label   string
	URL     string
	Link    bool
	Confirm string
}

type rowView struct {
	Cells   []cellView
	Actions []actionView
}

type tableView struct {
	Headers      []string
	Rows         []rowView
	HasActions   bool
	Span         int
	EmptyMessage string
	CSRF         string
}

var tableTmpl = template.Must(template.New("table").Parse(`<table class="data-table">
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}{{if .HasActions}}<th>Actions</th>{{end}}</tr></thead>
<tbody>
{{- if .Rows}}{{range .Rows}}
<tr>{{range .Cells}}<td>{{if .Badge}}<span class="status-badge status-{{.Value}}">{{.Value}}</span>{{else}}{{.Value}}{{end}}</td>{{end}}{{if $.HasActions}}<td class="row-actions">{{range .Actions}}{{if .Link}}<a class="btn-link" href="{{.URL}}">{{.Label}}</a>{{else}}<form method="post" action="{{.URL}}" class="inline"{{if .Confirm}} data-confirm="{{.Confirm}}"{{end}}><input type="hidden" name="csrf" value="{{$.CSRF}}"><button type="submit">{{.Label}}</button></form>{{end}}{{else}}-{{end}}</td>{{end}}</tr>
{{- end}}{{else}}
<tr class="empty-row"><td colspan="{{.Span}}">{{.EmptyMessage}}</td></tr>
{{- end}}
</tbody>
</table>`))

// Render draws records with the given columns. An empty slice produces a
// single placeholder row spanning every column.
func Render(records []Record, columns Columns, emptyMessage string) (template.HTML, error) {
	return Table{Columns: columns, EmptyMessage: emptyMessage}.Render(records, "")
}

// Render draws the table; csrf is embedded in every row action form.
func (t Table) Render(records []Record, csrf string) (template.HTML, error) {
	view := tableView{
		Headers:      make([]string, 0, len(t.Columns)),
		Rows:         make([]rowView, 0, len(records)),
		HasActions:   len(t.Actions) > 0,
		EmptyMessage: t.EmptyMessage,
		CSRF:         csrf,
	}
	for _, col := range t.Columns {
		view.Headers = append(view.Headers, col.Header)
	}
	view.Span = len(view.Headers)
	if view.HasActions {
		view.Span++
	}

	for _, record := range records {
		row := rowView{Cells: make([]cellView, 0, len(t.Columns))}
		for _, col := range t.Columns {
			row.Cells = append(row.Cells, cellView{Value: cell(col.Accessor, record), Badge: col.Badge})
		}
		for _, action := range t.Actions {
			if action.Visible != nil && !action.Visible(record) {
				continue
			}
			row.Actions = append(row.Actions, actionView{
				Label:   action.Label,
				URL:     actionURL(action, record),
				Link:    action.Href != "",
				Confirm: action.Confirm,
			})
		}
		view.Rows = append(view.Rows, row)
	}

	var buf bytes.Buffer
	if err := tableTmpl.Execute(&buf, view); err != nil {
		return "", errors.Wrap(err, "render table")
	}
	return template.HTML(buf.String()), nil
}

func cell(accessor Accessor, record Record) (value string) {
	if accessor == nil {
		return Placeholder
	}
	defer func() {
		if recover() != nil {
			value = Placeholder
		}
	}()
	value = accessor(record)
	if value == "" {
		return Placeholder
	}
	return value
}

func actionURL(action RowAction, record Record) string {
	path := "/actions/" + url.PathEscape(action.Event)
	if action.Href != "" {
		path = strings.TrimRight(action.Href, "/")
	}
	if action.Key != nil {
		if key := cell(action.Key, record); key != Placeholder {
			path += "/" + url.PathEscape(key)
		}
	}
	return path
}

// Headers lists the column headers in order.
func (c Columns) Headers() []string {
	out := make([]string, 0, len(c))
	for _, col := range c {
		out = append(out, col.Header)
	}
	return out
}

// Rows renders every record as plain cell text, with the same placeholder
// rules as Render.
func (c Columns) Rows(records []Record) [][]string {
	out := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, 0, len(c))
		for _, col := range c {
			row = append(row, cell(col.Accessor, record))
		}
		out = append(out, row)
	}
	return out
}
