package showcurves

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"strconv"

	"github.com/go-analyze/charts"
	"github.com/mattn/go-sixel"
	"github.com/mdouchement/boardlink"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var resolution int

	cmd := &cobra.Command{
		Use:   "show-curves",
		Short: "Show the duty curves applied to PWM and SERVO values",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			for _, curve := range []boardlink.Curve{boardlink.PWMCurve, boardlink.ServoCurve} {
				if err := render(curve, resolution); err != nil {
					return fmt.Errorf("%s: %w", curve.Name, err)
				}
			}

			return nil
		},
	}
	cmd.Flags().IntVarP(&resolution, "resolution", "r", 1000, "The width size in pixel of each graph")

	return cmd
}

func render(curve boardlink.Curve, resolution int) error {
	set := charts.LineSeriesList{
		charts.LineSeries{
			Name:   "duty",
			Values: curve.Samples(),
		},
	}

	opt := charts.NewLineChartOptionWithSeries(set)
	opt.Theme = charts.GetTheme(charts.ThemeVividDark)
	opt.Padding = charts.NewBox(20, 20, 20, 20)
	opt.Title.Text = fmt.Sprintf("%s: [%d,%d] => [%d,%d]", curve.Name, curve.InMin, curve.InMax, curve.OutMin, curve.OutMax)
	opt.Title.FontStyle.FontSize = 16
	opt.Title.Offset = charts.OffsetLeft
	opt.Legend = charts.LegendOption{
		Show: boardlink.ToPtr(false),
	}
	opt.Symbol = charts.SymbolNone
	opt.LineStrokeWidth = 2
	opt.XAxis.Show = boardlink.ToPtr(true)
	opt.XAxis.Title = "value"
	opt.XAxis.Labels = []string{} // Reset
	for v := curve.InMin; v <= curve.InMax; v++ {
		opt.XAxis.Labels = append(opt.XAxis.Labels, strconv.Itoa(v))
	}
	opt.XAxis.LabelCount = 10
	opt.YAxis = []charts.YAxisOption{
		{
			Show:                   boardlink.ToPtr(true),
			Title:                  "duty",
			Min:                    boardlink.ToPtr(float64(0)),
			Max:                    boardlink.ToPtr(float64(curve.OutMax)),
			RangeValuePaddingScale: boardlink.ToPtr(float64(0)),
		},
	}
	p := charts.NewPainter(charts.PainterOptions{
		OutputFormat: charts.ChartOutputPNG,
		Width:        resolution,
		Height:       int(float64(resolution) / (16.0 / 9.0)),
	})

	err := p.LineChart(opt)
	if err != nil {
		return err
	}

	mPNG, err := p.Bytes()
	if err != nil {
		return err
	}

	m, _, err := image.Decode(bytes.NewReader(mPNG))
	if err != nil {
		return err
	}

	codec := sixel.NewEncoder(os.Stdout)
	return codec.Encode(m)
}
