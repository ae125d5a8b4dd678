// Package render draws a results dashboard for the terminal.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/service"
)

const defaultBarWidth = 30

// Renderer formats dashboards for console display
type Renderer struct {
	colorize bool
	barWidth int
}

// NewRenderer creates a new Renderer. With colorize off every style is a no-op,
// which keeps output stable in pipes and tests.
func NewRenderer(colorize bool) *Renderer {
	return &Renderer{
		colorize: colorize,
		barWidth: defaultBarWidth,
	}
}

func (r *Renderer) style(color string) lipgloss.Style {
	if !r.colorize || color == "" {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func (r *Renderer) bold() lipgloss.Style {
	if !r.colorize {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Bold(true)
}

// Badge renders a rating as its label in the rating's color.
func (r *Renderer) Badge(rating domain.Rating) string {
	return r.style(rating.Color).Render("[" + rating.Label + "]")
}

// Bar renders a percentage bar of the renderer's width.
func (r *Renderer) Bar(percent float64, color string) string {
	filled := filledCells(percent, r.barWidth)
	return r.style(color).Render(strings.Repeat("█", filled)) +
		r.style("240").Render(strings.Repeat("░", r.barWidth-filled))
}

// BenchmarkTrack draws the visible window of a benchmark with one marker per reference point.
// Y marks your score, A the average and O the optimal; later markers win a shared cell.
func (r *Renderer) BenchmarkTrack(pos domain.BenchmarkPosition) string {
	cells := []rune(strings.Repeat("─", r.barWidth))
	place := func(pct float64, mark rune) {
		i := int(math.Round(pct / 100 * float64(r.barWidth-1)))
		if i < 0 {
			i = 0
		}
		if i >= r.barWidth {
			i = r.barWidth - 1
		}
		cells[i] = mark
	}
	place(pos.AveragePct, 'A')
	place(pos.OptimalPct, 'O')
	place(pos.YourPct, 'Y')

	return fmt.Sprintf("%s %s %s", formatScore(pos.RangeStart), string(cells), formatScore(pos.RangeEnd))
}

// Dashboard writes the full dashboard to w.
func (r *Renderer) Dashboard(w io.Writer, d *service.Dashboard) error {
	var b strings.Builder

	b.WriteString(r.bold().Render(d.Title))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Overall: %s %s %s\n",
		formatOverall(d.Overall), r.Badge(d.Overall.Rating), d.Overall.Label)
	b.WriteString(r.Bar(d.Overall.Percent, d.Overall.Rating.Color))
	b.WriteString("\n")
	if d.Summary != "" {
		b.WriteString("\n" + d.Summary + "\n")
	}

	for _, cat := range d.Categories {
		r.writeCategory(&b, cat)
	}

	if len(d.NextSteps) > 0 {
		b.WriteString("\n" + r.bold().Render("Next steps") + "\n")
		for _, step := range d.NextSteps {
			b.WriteString("  • " + step + "\n")
		}
	}
	for _, disclaimer := range d.Disclaimers {
		b.WriteString("\n" + r.style("7").Render(disclaimer) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) writeCategory(b *strings.Builder, cat service.CategoryView) {
	b.WriteString("\n")
	fmt.Fprintf(b, "%s  %s/%s %s",
		r.bold().Render(cat.Name), formatScore(cat.Score), formatScore(cat.MaxScore), r.Badge(cat.Rating))
	if cat.Priority != "" {
		fmt.Fprintf(b, " priority: %s", cat.Priority)
	}
	if cat.LevelMismatch {
		fmt.Fprintf(b, " (score suggests %s)", cat.ComputedLevel)
	}
	b.WriteString("\n")

	fmt.Fprintf(b, "  %s %s%%\n", r.Bar(cat.Percent, cat.Rating.Color), formatScore(cat.Percent))
	if cat.Benchmark != nil {
		fmt.Fprintf(b, "  %s  avg %s  optimal %s\n",
			r.BenchmarkTrack(cat.Benchmark.Position),
			formatScore(cat.Benchmark.Average), formatScore(cat.Benchmark.Optimal))
	}
	for _, rec := range cat.Recommendations {
		b.WriteString("  - " + rec + "\n")
	}
}

func filledCells(percent float64, width int) int {
	if math.IsNaN(percent) || percent < 0 {
		return 0
	}
	if percent > 100 {
		percent = 100
	}
	return int(float64(width) * percent / 100)
}

func formatOverall(o service.OverallView) string {
	if o.Unit.IsPercent() {
		return formatScore(o.Score) + "%"
	}
	return fmt.Sprintf("%s %s", formatScore(o.Score), o.Unit)
}

// formatScore drops the fraction of whole numbers.
func formatScore(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
