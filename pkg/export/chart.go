package export

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderChart writes an HTML page with two charts: prices with the SoC
// trajectory, and the battery, grid and heater flows per slot.
func RenderChart(w io.Writer, rows []Row, title string) error {
	xAxis := make([]string, len(rows))
	var (
		importPrice, exportPrice, soc []opts.LineData
		charge, discharge, imp, exp   []opts.BarData
		heater                        []opts.BarData
	)
	for i, r := range rows {
		xAxis[i] = r.Start.Format("01-02 15:04")
		importPrice = append(importPrice, opts.LineData{Value: r.ImportPriceSEKKWh})
		exportPrice = append(exportPrice, opts.LineData{Value: r.ExportPriceSEKKWh})
		soc = append(soc, opts.LineData{Value: r.ProjectedSoCPct})
		charge = append(charge, opts.BarData{Value: r.ChargeKW})
		discharge = append(discharge, opts.BarData{Value: -r.DischargeKW})
		imp = append(imp, opts.BarData{Value: r.GridImportKW})
		exp = append(exp, opts.BarData{Value: -r.GridExportKW})
		heater = append(heater, opts.BarData{Value: r.WaterHeatKW})
	}

	prices := charts.NewLine()
	prices.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "Prices (SEK/kWh) and projected SoC (%)"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Slot start"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "SEK/kWh"}),
	)
	prices.SetXAxis(xAxis).
		AddSeries("Import price", importPrice).
		AddSeries("Export price", exportPrice)
	prices.ExtendYAxis(opts.YAxis{Name: "SoC %", Min: 0, Max: 100})
	prices.AddSeries("SoC", soc, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))

	flows := charts.NewBar()
	flows.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px"}),
		charts.WithTitleOpts(opts.Title{Title: "Flows (kW)"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Slot start"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "kW"}),
	)
	flows.SetXAxis(xAxis).
		AddSeries("Charge", charge, charts.WithBarChartOpts(opts.BarChart{Stack: "battery"})).
		AddSeries("Discharge", discharge, charts.WithBarChartOpts(opts.BarChart{Stack: "battery"})).
		AddSeries("Import", imp, charts.WithBarChartOpts(opts.BarChart{Stack: "grid"})).
		AddSeries("Export", exp, charts.WithBarChartOpts(opts.BarChart{Stack: "grid"})).
		AddSeries("Water heater", heater)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(prices, flows)
	return page.Render(w)
}
