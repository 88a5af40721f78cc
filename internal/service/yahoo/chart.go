package yahoo

import (
	"fmt"
	"time"

	"TickerPulse/internal/domain/models"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// series converts the chart payload to bars. Rows with a missing price column are skipped.
func (r *chartResponse) series(symbol string, tf models.Timeframe) (*models.Series, error) {
	if e := r.Chart.Error; e != nil {
		return nil, fmt.Errorf("%w: %s %s", models.ErrDataUnavailable, e.Code, e.Description)
	}
	if len(r.Chart.Result) == 0 || len(r.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, models.ErrDataUnavailable
	}

	res := r.Chart.Result[0]
	q := res.Indicators.Quote[0]
	bars := make([]models.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		o, okO := at(q.Open, i)
		h, okH := at(q.High, i)
		l, okL := at(q.Low, i)
		c, okC := at(q.Close, i)
		if !okO || !okH || !okL || !okC {
			continue
		}
		v, _ := at(q.Volume, i)
		bars = append(bars, models.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	if len(bars) == 0 {
		return nil, models.ErrDataUnavailable
	}
	return models.NewSeries(symbol, tf, bars), nil
}

func at(col []*float64, i int) (float64, bool) {
	if i >= len(col) || col[i] == nil {
		return 0, false
	}
	return *col[i], true
}
