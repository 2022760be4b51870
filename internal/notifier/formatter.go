package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"BCRPSentinel/internal/collector"
	"BCRPSentinel/internal/model"
)

// maxErrorLen trims aggregated upstream errors so a report stays readable in chat.
const maxErrorLen = 160

// FormatRefreshReport summarizes a catalog refresh into a Telegram message.
func FormatRefreshReport(batch *collector.Batch, took time.Duration) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>BCRPSentinel</b> | %s\n\n", time.Now().Format("2006-01-02 15:04")))

	live, cached := 0, 0
	var stale []string
	for _, r := range batch.Results {
		switch {
		case r.Stale:
			stale = append(stale, r.Record.Code)
		case r.Source == collector.SourceCache:
			cached++
		default:
			live++
		}
	}
	total := len(batch.Results) + len(batch.Errors)
	b.WriteString(fmt.Sprintf("Actualizados: %d/%d (en vivo %d, caché %d) en %s\n",
		len(batch.Results)-len(stale), total, live, cached, took.Round(time.Second)))

	if len(stale) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ <b>Datos posiblemente desactualizados (%d):</b>\n", len(stale)))
		for _, code := range stale {
			b.WriteString(fmt.Sprintf("  • %s\n", indicatorLabel(code)))
		}
	}

	if len(batch.Errors) > 0 {
		b.WriteString(fmt.Sprintf("\n❌ <b>No disponibles (%d):</b>\n", len(batch.Errors)))
		codes := make([]string, 0, len(batch.Errors))
		for code := range batch.Errors {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			b.WriteString(fmt.Sprintf("  • %s: %s\n", indicatorLabel(code), truncate(batch.Errors[code].Error())))
		}
	}

	if len(stale) == 0 && len(batch.Errors) == 0 {
		b.WriteString("\nTodos los indicadores al día ✅")
	}
	return b.String()
}

// FormatStatus lists the latest observation of each served indicator.
func FormatStatus(batch *collector.Batch) string {
	var b strings.Builder
	b.WriteString("📈 <b>Últimos valores</b>\n\n")
	for _, r := range batch.Results {
		p, ok := r.Record.Latest()
		if !ok || !p.IsNumber() {
			b.WriteString(fmt.Sprintf("%s: sin datos\n", html.EscapeString(r.Record.Name)))
			continue
		}
		line := fmt.Sprintf("%s: %.4g (%s)", html.EscapeString(r.Record.Name), p.Value.Float64, p.Date)
		if r.Stale {
			line += " ⚠️"
		}
		b.WriteString(line + "\n")
	}
	for code, err := range batch.Errors {
		b.WriteString(fmt.Sprintf("%s: ❌ %s\n", indicatorLabel(code), truncate(err.Error())))
	}
	return b.String()
}

// FormatCatalog lists the supported indicators grouped by frequency.
func FormatCatalog() string {
	var b strings.Builder
	b.WriteString("📚 <b>Indicadores disponibles</b>\n")
	groups := []struct {
		title string
		list  []model.Indicator
	}{
		{"Diarios", model.DailyIndicators},
		{"Mensuales", model.MonthlyIndicators},
		{"Anuales", model.AnnualIndicators},
	}
	for _, g := range groups {
		b.WriteString(fmt.Sprintf("\n<b>%s</b>\n", g.title))
		for _, ind := range g.list {
			b.WriteString(fmt.Sprintf("  <code>%s</code> %s\n", ind.Code, html.EscapeString(ind.Name)))
		}
	}
	return b.String()
}

func indicatorLabel(code string) string {
	if ind, ok := model.LookupIndicator(code); ok {
		return fmt.Sprintf("%s (<code>%s</code>)", html.EscapeString(ind.Name), code)
	}
	return "<code>" + html.EscapeString(code) + "</code>"
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxErrorLen {
		return html.EscapeString(s)
	}
	return html.EscapeString(string(r[:maxErrorLen])) + "…"
}
