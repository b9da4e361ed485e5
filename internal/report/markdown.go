package report

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"gocal/domain/calendar"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Document is everything a rendered run report shows
type Document struct {
	Title     string
	Run       calendar.Run
	Aggregate *calendar.AggregateSeries
}

// Markdown renders the document as GitHub-flavoured markdown
func Markdown(doc Document) string {
	var b strings.Builder
	s := doc.Run.Summary

	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "Run `%s`", doc.Run.ID)
	if doc.Run.SeriesID != "" {
		fmt.Fprintf(&b, " of series `%s`", doc.Run.SeriesID)
	}
	fmt.Fprintf(&b, ", computed %s in %d ms.\n\n", doc.Run.CreatedAt.Format("2006-01-02 15:04:05"), doc.Run.ElapsedMS)

	b.WriteString("## Daily reconstruction\n\n")
	b.WriteString("| metric | value |\n|---|---|\n")
	fmt.Fprintf(&b, "| days | %d |\n", s.Days)
	fmt.Fprintf(&b, "| observations | %d |\n", s.Observations)
	fmt.Fprintf(&b, "| total | %.4f |\n", s.Total)
	fmt.Fprintf(&b, "| mean / median | %.4f / %.4f |\n", s.Mean, s.Median)
	fmt.Fprintf(&b, "| min / max | %.4f / %.4f |\n", s.Min, s.Max)
	fmt.Fprintf(&b, "| p05 / p95 | %.4f / %.4f |\n", s.P05, s.P95)
	fmt.Fprintf(&b, "| max conservation residual | %.3g |\n", s.MaxResidual)
	if doc.Run.WithStdev {
		fmt.Fprintf(&b, "| mean / max stdev | %.4f / %.4f |\n", s.MeanStdev, s.MaxStdev)
	}

	if doc.Aggregate != nil && doc.Aggregate.Available {
		fmt.Fprintf(&b, "\n## %s aggregates\n\n", capitalize(string(doc.Aggregate.Frequency)))
		b.WriteString("| start | end | value | stdev | complete |\n|---|---|---:|---:|:---:|\n")
		for _, p := range doc.Aggregate.Points {
			stdev := "-"
			if doc.Aggregate.HasStdev && !math.IsNaN(p.Stdev) {
				stdev = fmt.Sprintf("%.4f", p.Stdev)
			}
			complete := ""
			if p.Complete {
				complete = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %.4f | %s | %s |\n",
				p.Start.Format(calendar.DateLayout), p.End.Format(calendar.DateLayout), p.Value, stdev, complete)
		}
	}
	return b.String()
}

// HTML renders the document's markdown to an HTML fragment
func HTML(doc Document) []byte {
	doc.Title = template.HTMLEscapeString(doc.Title)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return markdown.ToHTML([]byte(Markdown(doc)), p, renderer)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
