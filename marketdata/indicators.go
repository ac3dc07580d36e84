package marketdata

import (
	"fmt"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

// TechnicalIndicators can be used to calculate technical indicators.
type TechnicalIndicators interface {
	// CloseSMA calculates the simple moving average of the closing prices.
	CloseSMA(symbol string, params SMAParams) (*SMA, error)
}

// SMAParams contains parameters for getting the closing price moving average
type SMAParams struct {
	// Window is the number of most recent bars the average slides over.
	Window int
}

type indicators struct {
	c Client

	// mockable functions
	getBars func(symbol string) ([]Bar, error)
}

type IndicatorsOpts struct {
	Client Client
}

func NewIndicators(opts IndicatorsOpts) TechnicalIndicators {
	c := opts.Client
	if c == nil {
		c = DefaultClient
	}
	return &indicators{
		c:       c,
		getBars: c.GetBars,
	}
}

// Indicators can be used to query technical indicators using the default client.
var Indicators = NewIndicators(IndicatorsOpts{})

// CloseSMA calculates the simple moving average of the closing prices.
func (i *indicators) CloseSMA(symbol string, params SMAParams) (*SMA, error) {
	if params.Window <= 0 {
		return nil, fmt.Errorf("sma window must be positive, got %d", params.Window)
	}
	bars, err := i.getBars(symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return &SMA{}, nil
	}
	ma := movingaverage.New(params.Window)
	for _, bar := range bars {
		ma.Add(bar.Close)
	}
	return &SMA{
		Average: ma.Avg(),
		Bars:    len(bars),
	}, nil
}

// SMA is the simple moving average of the closing prices. It also contains
// the number of bars the history held.
type SMA struct {
	Average float64
	Bars    int
}
