// Command chainview runs the option chain pipeline over a saved proxy payload
// and prints the window and key metrics as terminal tables.
//
//	chainview -file nifty.json -window 10
//	chainview -file sensex.json -exchange BSE -lot
//	chainview -file now.json -prev earlier.json
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mohamedkhairy/strikeview/internal/alert"
	"github.com/mohamedkhairy/strikeview/internal/dashboard"
	"github.com/mohamedkhairy/strikeview/internal/data"
	"github.com/mohamedkhairy/strikeview/internal/metrics"
	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/symbols"
	"github.com/mohamedkhairy/strikeview/pkg/format"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

type options struct {
	file      string
	prev      string
	symbol    string
	exchange  string
	window    int
	highOI    bool
	lot       bool
	overrides string
	logLevel  string
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "raw proxy payload (JSON) to analyze")
	flag.StringVar(&opts.prev, "prev", "", "earlier payload to diff against for alerts")
	flag.StringVar(&opts.symbol, "symbol", "", "symbol, defaults to the payload's")
	flag.StringVar(&opts.exchange, "exchange", "", "NSE or BSE, defaults from the symbol")
	flag.IntVar(&opts.window, "window", 10, "strikes in the ATM window (3-20)")
	flag.BoolVar(&opts.highOI, "high-oi", false, "keep only strikes with above-average OI")
	flag.BoolVar(&opts.lot, "lot", false, "multiply OI by the symbol lot size")
	flag.StringVar(&opts.overrides, "overrides", "", "YAML file of symbol overrides")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.Parse()

	if err := logger.Init(opts.logLevel, "development"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "chainview: %v\n", err)
		os.Exit(1)
	}
}

type analysis struct {
	snap   *models.ChainSnapshot
	result *dashboard.Result
}

func run(out io.Writer, opts options) error {
	if opts.file == "" {
		return fmt.Errorf("-file is required")
	}

	symtab := symbols.Default
	if opts.overrides != "" {
		var err error
		if symtab, err = symbols.LoadOverrides(symbols.Default, opts.overrides); err != nil {
			return err
		}
	}

	cfg := models.WindowConfig{WindowSize: opts.window, HighOIOnly: opts.highOI}
	if err := cfg.ValidateForDisplay(); err != nil {
		return err
	}

	curr, err := analyze(opts.file, opts, symtab, cfg)
	if err != nil {
		return err
	}

	renderSummary(out, curr, symtab)
	renderWindow(out, curr)
	renderMetrics(out, curr)

	if opts.prev != "" {
		prev, err := analyze(opts.prev, opts, symtab, cfg)
		if err != nil {
			return fmt.Errorf("previous payload: %w", err)
		}
		differ := alert.NewDiffer(alert.DefaultThresholds())
		renderAlerts(out, differ.Diff(curr.snap.Symbol, prev.result.Metrics, curr.result.Metrics))
	}
	return nil
}

func analyze(path string, opts options, symtab *symbols.Table, cfg models.WindowConfig) (*analysis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	symbol := strings.ToUpper(opts.symbol)
	exchange := symtab.ExchangeOf(symbol)
	if opts.exchange != "" {
		if exchange, err = models.ParseExchange(opts.exchange); err != nil {
			return nil, err
		}
	}

	snap, err := data.Normalize(exchange, raw)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", path, err)
	}
	if symbol != "" {
		snap.Symbol = symbol
	}

	lotSize := 1
	if opts.lot {
		lotSize = symtab.LotSizeOf(snap.Symbol)
	}

	res, err := dashboard.Compute(snap, cfg, lotSize)
	if err != nil {
		return nil, err
	}
	return &analysis{snap: snap, result: res}, nil
}

func newTable(out io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)
	return t
}

func renderSummary(out io.Writer, a *analysis, symtab *symbols.Table) {
	t := newTable(out, "Chain")
	t.AppendRows([]table.Row{
		{"Symbol", a.snap.Symbol},
		{"Exchange", a.snap.Exchange},
		{"Expiry", a.snap.Expiry},
		{"Spot", format.FormatCurrency(a.snap.UnderlyingPrice)},
		{"As of", a.snap.Timestamp.In(models.IST).Format("02 Jan 2006 15:04 MST")},
		{"Strikes", len(a.snap.Strikes)},
		{"Lot size", symtab.LotSizeOf(a.snap.Symbol)},
	})
	t.Render()
}

func renderWindow(out io.Writer, a *analysis) {
	w := a.result.Window
	title := fmt.Sprintf("Window (ATM %s)", format.FormatCurrency(w.ATMStrike))
	if w.Filtered {
		title += ", high OI only"
	}

	t := newTable(out, title)
	t.AppendHeader(table.Row{"", "Call OI", "Call ΔOI", "Call LTP", "Strike", "Put LTP", "Put ΔOI", "Put OI"})
	for i, s := range w.Strikes {
		marker := ""
		if i == w.ATMIndex {
			marker = "ATM"
		}
		row := table.Row{marker}
		row = append(row, quoteCells(s.Call, false)...)
		row = append(row, format.FormatCurrency(s.StrikePrice))
		row = append(row, quoteCells(s.Put, true)...)
		t.AppendRow(row)
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignCenter},
	})
	t.Render()
}

// quoteCells renders OI, change in OI and LTP; reversed puts LTP first
func quoteCells(q *models.StrikeQuote, reversed bool) table.Row {
	if q == nil {
		return table.Row{"-", "-", "-"}
	}
	cells := table.Row{
		format.ScaleToHumanUnit(float64(q.OpenInterest)),
		format.ScaleToHumanUnit(float64(q.ChangeInOpenInterest)),
		format.FormatCurrency(q.LastTradedPrice),
	}
	if reversed {
		cells[0], cells[2] = cells[2], cells[0]
	}
	return cells
}

func renderMetrics(out io.Writer, a *analysis) {
	p := metrics.NewPanel(a.result.Metrics, a.snap.UnderlyingPrice)

	t := newTable(out, "Key metrics")
	t.AppendRows([]table.Row{
		{"PCR", p.PCR, p.Sentiment},
		{"Max pain", p.MaxPain, p.MaxPainScope},
		{"Call OI", p.TotalCallOI, p.CallDominance},
		{"Put OI", p.TotalPutOI, p.PutDominance},
		{"Call ΔOI", p.TotalCallChangeOI, ""},
		{"Put ΔOI", p.TotalPutChangeOI, ""},
	})
	t.Render()
}

func renderAlerts(out io.Writer, alerts []models.Alert) {
	t := newTable(out, "Alerts")
	t.AppendHeader(table.Row{"Severity", "Alert", "Change", "Detail"})
	for _, a := range alerts {
		t.AppendRow(table.Row{a.Severity, a.Title, a.Value, a.Message})
	}
	if len(alerts) == 0 {
		t.AppendRow(table.Row{"", "no notable change", "", ""})
	}
	t.Render()
}
